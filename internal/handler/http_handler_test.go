package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/isavelev/yatube/internal/cache"
	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/events"
	"github.com/isavelev/yatube/internal/media"
	"github.com/isavelev/yatube/internal/repository"
	"github.com/isavelev/yatube/internal/service"
	pkgauth "github.com/isavelev/yatube/pkg/auth"
	"github.com/isavelev/yatube/pkg/storage"
)

type testApp struct {
	db       *gorm.DB
	router   *gin.Engine
	sessions *pkgauth.Sessions
	cache    *cache.MemoryPageCache
	auth     service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return newTestAppWithStorage(t, store)
}

func newTestAppWithStorage(t *testing.T, store storage.Storage) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	))

	feedSvc := service.NewFeedService(
		repository.NewGormUserRepository(db),
		repository.NewGormGroupRepository(db),
		repository.NewGormPostRepository(db),
		repository.NewGormCommentRepository(db),
		repository.NewGormFollowRepository(db),
		media.NewProcessor(store),
		events.NoopPublisher{},
	)
	authSvc := service.NewAuthService(repository.NewGormUserRepository(db))

	sessions := pkgauth.NewSessions(pkgauth.Config{Secret: "test-secret", TTL: time.Hour})
	pageCache := cache.NewMemoryPageCache()

	h := NewHandler(feedSvc, authSvc, sessions, store, pageCache, 20*time.Second)

	r := gin.New()
	r.Use(sessions.Identify())
	h.RegisterRoutes(r)

	return &testApp{db: db, router: r, sessions: sessions, cache: pageCache, auth: authSvc}
}

func (a *testApp) user(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, PasswordHash: "x"}
	require.NoError(t, a.db.Create(u).Error)
	return u
}

func (a *testApp) group(t *testing.T, title, slug string) *domain.Group {
	t.Helper()
	g := &domain.Group{Title: title, Slug: slug}
	require.NoError(t, a.db.Create(g).Error)
	return g
}

func (a *testApp) post(t *testing.T, author *domain.User, group *domain.Group, text string, at time.Time) *domain.Post {
	t.Helper()
	p := &domain.Post{Text: text, AuthorID: author.ID, CreatedAt: at}
	if group != nil {
		p.GroupID = &group.ID
	}
	require.NoError(t, a.db.Create(p).Error)
	return p
}

// sessionCookie issues a valid session cookie for the user.
func (a *testApp) sessionCookie(t *testing.T, u *domain.User) *http.Cookie {
	t.Helper()
	token, err := a.sessions.Issue(u.ID, u.Username)
	require.NoError(t, err)
	return &http.Cookie{Name: pkgauth.SessionCookie, Value: token}
}

func (a *testApp) get(t *testing.T, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) followCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, a.db.Model(&domain.Follow{}).Count(&count).Error)
	return count
}

var feedBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLoginRequiredRedirects(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	post := app.post(t, author, nil, "text", feedBase)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/create/"},
		{http.MethodPost, "/create/"},
		{http.MethodGet, "/follow/"},
		{http.MethodGet, fmt.Sprintf("/posts/%d/edit/", post.ID)},
		{http.MethodPost, fmt.Sprintf("/posts/%d/edit/", post.ID)},
		{http.MethodPost, fmt.Sprintf("/posts/%d/comment/", post.ID)},
		{http.MethodGet, "/profile/auth/follow/"},
		{http.MethodGet, "/profile/auth/unfollow/"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tc.method == http.MethodGet {
				w = app.get(t, tc.path, nil)
			} else {
				w = app.postForm(t, tc.path, url.Values{}, nil)
			}
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/auth/login/?next="+url.QueryEscape(tc.path), w.Header().Get("Location"))
		})
	}
}

func TestNotFoundPages(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	cookie := app.sessionCookie(t, author)

	for _, path := range []string{
		"/group/no-such-slug/",
		"/profile/ghost/",
		"/posts/12345/",
		"/posts/abc/",
		"/profile/ghost/follow/",
	} {
		w := app.get(t, path, cookie)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "404", path)
	}
}

func TestFeedPlacement(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	group := app.group(t, "Тестовая группа", "test-slug")
	empty := app.group(t, "Пустая группа", "empty-slug")
	app.post(t, author, group, "Тестовый текст", feedBase)

	// Global feed, group feed, and the author's profile show the post.
	for _, path := range []string{"/", "/group/test-slug/", "/profile/auth/"} {
		w := app.get(t, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "Тестовый текст", path)
	}

	// A group the post was not assigned to stays empty.
	w := app.get(t, "/group/empty-slug/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Тестовый текст")
	assert.Contains(t, w.Body.String(), empty.Title)
}

func TestIndexPaginationClamp(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	for i := 0; i < 13; i++ {
		app.post(t, author, nil, fmt.Sprintf("запись %d", i), feedBase.Add(time.Duration(i)*time.Minute))
	}

	w := app.get(t, "/?page=99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Страница 2 из 2")
	assert.Contains(t, w.Body.String(), "запись 0")

	// A non-numeric page lands on the first page.
	w = app.get(t, "/?page=abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Страница 1 из 2")
	assert.Contains(t, w.Body.String(), "запись 12")
}

func TestCreatePostFlow(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	group := app.group(t, "Группа", "slug")
	cookie := app.sessionCookie(t, author)

	w := app.postForm(t, "/create/", url.Values{
		"text":  {"Свежая запись"},
		"group": {fmt.Sprintf("%d", group.ID)},
	}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/auth/", w.Header().Get("Location"))

	w = app.get(t, "/profile/auth/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Свежая запись")

	w = app.get(t, "/group/slug/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Свежая запись")
}

func TestCreatePost_ValidationRedisplays(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	cookie := app.sessionCookie(t, author)

	// Blank text redisplays the form, nothing is stored.
	w := app.postForm(t, "/create/", url.Values{"text": {"   "}}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgRequired)

	// A non-numeric group value is a validation error, not a 500.
	w = app.postForm(t, "/create/", url.Values{"text": {"ok"}, "group": {"abc"}}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgInvalidGroup)

	var count int64
	require.NoError(t, app.db.Model(&domain.Post{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestEditPost_NonAuthorSilentRedirect(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	intruder := app.user(t, "intruder")
	post := app.post(t, author, nil, "оригинал", feedBase)
	cookie := app.sessionCookie(t, intruder)

	detail := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.get(t, detail+"edit/", cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = app.postForm(t, detail+"edit/", url.Values{"text": {"взломано"}}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	var got domain.Post
	require.NoError(t, app.db.First(&got, post.ID).Error)
	assert.Equal(t, "оригинал", got.Text)
}

func TestEditPost_AuthorSucceeds(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	post := app.post(t, author, nil, "до правки", feedBase)
	cookie := app.sessionCookie(t, author)

	detail := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.get(t, detail+"edit/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "до правки")

	w = app.postForm(t, detail+"edit/", url.Values{"text": {"после правки"}}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = app.get(t, detail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "после правки")
}

func TestEditPost_ResubmitUnchanged(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	post := app.post(t, author, nil, "без изменений", feedBase)
	cookie := app.sessionCookie(t, author)

	detail := fmt.Sprintf("/posts/%d/", post.ID)

	// Submitting the form with identical content is still a valid edit.
	for i := 0; i < 2; i++ {
		w := app.postForm(t, detail+"edit/", url.Values{"text": {"без изменений"}}, cookie)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detail, w.Header().Get("Location"))
	}

	w := app.get(t, detail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "без изменений")
}

func TestImageURLsResolveThroughStorage(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath:  t.TempDir(),
		URLPrefix: "/files/",
	})
	require.NoError(t, err)
	app := newTestAppWithStorage(t, store)

	author := app.user(t, "auth")
	post := app.post(t, author, nil, "с картинкой", feedBase)
	require.NoError(t, app.db.Model(post).Updates(map[string]interface{}{
		"image":       "posts/pic.png",
		"image_thumb": "posts/thumbs/pic.png",
	}).Error)

	// Feed thumbnails and detail images come from the storage backend's
	// URL space, not a hardcoded media prefix.
	w := app.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="/files/posts/thumbs/pic.png"`)
	assert.NotContains(t, w.Body.String(), "/media/")

	w = app.get(t, fmt.Sprintf("/posts/%d/", post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="/files/posts/pic.png"`)
}

func TestAddComment_SilentDropOnBlank(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	post := app.post(t, author, nil, "пост", feedBase)
	cookie := app.sessionCookie(t, author)

	detail := fmt.Sprintf("/posts/%d/", post.ID)

	// Blank comment: redirected back, nothing stored.
	w := app.postForm(t, detail+"comment/", url.Values{"text": {"  "}}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	var count int64
	require.NoError(t, app.db.Model(&domain.Comment{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	w = app.postForm(t, detail+"comment/", url.Values{"text": {"Первый!"}}, cookie)
	require.Equal(t, http.StatusFound, w.Code)

	w = app.get(t, detail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Первый!")
}

func TestFollowUnfollowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	follower := app.user(t, "follower")
	poster := app.user(t, "poster")
	app.post(t, poster, nil, "запись автора", feedBase)
	cookie := app.sessionCookie(t, follower)

	require.EqualValues(t, 0, app.followCount(t))

	// Following twice leaves one edge.
	for i := 0; i < 2; i++ {
		w := app.get(t, "/profile/poster/follow/", cookie)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/profile/poster/", w.Header().Get("Location"))
		assert.EqualValues(t, 1, app.followCount(t))
	}

	w := app.get(t, "/follow/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "запись автора")

	// The profile shows the unfollow link to a follower.
	w = app.get(t, "/profile/poster/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/profile/poster/unfollow/")

	// Unfollowing twice ends at zero edges.
	for i := 0; i < 2; i++ {
		w := app.get(t, "/profile/poster/unfollow/", cookie)
		require.Equal(t, http.StatusFound, w.Code)
		assert.EqualValues(t, 0, app.followCount(t))
	}

	w = app.get(t, "/follow/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "запись автора")
}

func TestIndexCacheServesStalePage(t *testing.T) {
	app := newTestApp(t)
	author := app.user(t, "auth")
	post := app.post(t, author, nil, "скоро удалят", feedBase)

	w := app.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "скоро удалят")

	posts := repository.NewGormPostRepository(app.db)
	require.NoError(t, posts.Delete(context.Background(), post.ID))

	// Within the TTL the cached page still shows the deleted post.
	w = app.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "скоро удалят")

	require.NoError(t, app.cache.Close())

	w = app.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "скоро удалят")
}

func TestSignupLoginLogoutFlow(t *testing.T) {
	app := newTestApp(t)

	// Signup logs the new account in right away.
	w := app.postForm(t, "/auth/signup/", url.Values{
		"username": {"newuser"},
		"password": {"s3cret-pass"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	var sessionValue string
	for _, c := range w.Result().Cookies() {
		if c.Name == pkgauth.SessionCookie {
			sessionValue = c.Value
		}
	}
	require.NotEmpty(t, sessionValue, "signup should set the session cookie")

	// Duplicate username redisplays the signup form.
	w = app.postForm(t, "/auth/signup/", url.Values{
		"username": {"newuser"},
		"password": {"other"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "уже занято")

	// Wrong password redisplays the login form.
	w = app.postForm(t, "/auth/login/", url.Values{
		"username": {"newuser"},
		"password": {"wrong"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Неверное имя пользователя или пароль.")

	// Correct login honors the next parameter.
	w = app.postForm(t, "/auth/login/", url.Values{
		"username": {"newuser"},
		"password": {"s3cret-pass"},
		"next":     {"/create/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/create/", w.Header().Get("Location"))

	// Off-site next values fall back to the root.
	w = app.postForm(t, "/auth/login/", url.Values{
		"username": {"newuser"},
		"password": {"s3cret-pass"},
		"next":     {"//evil.example/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = app.get(t, "/auth/logout/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestProfileHidesFollowLinkFromAnonymous(t *testing.T) {
	app := newTestApp(t)
	app.user(t, "poster")

	w := app.get(t, "/profile/poster/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "/profile/poster/follow/")
}
