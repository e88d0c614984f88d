package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isavelev/yatube/internal/cache"
	"github.com/isavelev/yatube/internal/pagination"
	"github.com/isavelev/yatube/internal/repository"
	"github.com/isavelev/yatube/internal/service"
	"github.com/isavelev/yatube/internal/view"
	pkgauth "github.com/isavelev/yatube/pkg/auth"
	pkglog "github.com/isavelev/yatube/pkg/log"
	"github.com/isavelev/yatube/pkg/storage"
)

const contentTypeHTML = "text/html; charset=utf-8"

// mediaURLTTL bounds the lifetime of presigned image links on S3 backends.
const mediaURLTTL = time.Hour

// Field-level validation messages shown when a form is redisplayed.
const (
	msgRequired     = "Обязательное поле."
	msgInvalidGroup = "Выберите корректную группу."
	msgInvalidImage = "Загрузите корректное изображение."
)

// Handler serves the feed and social-graph routes.
type Handler struct {
	feed     service.FeedService
	accounts service.AuthService
	sessions *pkgauth.Sessions
	media    storage.Storage
	tmpl     *template.Template
	cache    cache.PageCache
	cacheTTL time.Duration
}

// NewHandler creates a new HTTP handler. media resolves image storage keys
// to servable URLs; pageCache may be nil to disable global feed caching.
func NewHandler(
	feed service.FeedService,
	accounts service.AuthService,
	sessions *pkgauth.Sessions,
	media storage.Storage,
	pageCache cache.PageCache,
	cacheTTL time.Duration,
) *Handler {
	h := &Handler{
		feed:     feed,
		accounts: accounts,
		sessions: sessions,
		media:    media,
		cache:    pageCache,
		cacheTTL: cacheTTL,
	}
	h.tmpl = view.Templates(template.FuncMap{"mediaURL": h.mediaURL})
	return h
}

// mediaURL resolves an image storage key to the URL it is served from: the
// static media mount for local storage, a presigned link for S3.
func (h *Handler) mediaURL(key string) string {
	if key == "" {
		return ""
	}
	url, err := h.media.GetURL(context.Background(), key, mediaURLTTL)
	if err != nil {
		logger := pkglog.L()
		logger.Warn().Err(err).Str("key", key).Msg("failed to resolve media url")
		return ""
	}
	return url
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	login := h.sessions.RequireLogin()

	r.GET("/", h.Index)
	r.GET("/group/:slug/", h.GroupPosts)
	r.GET("/profile/:username/", h.Profile)
	r.GET("/profile/:username/follow/", login, h.ProfileFollow)
	r.GET("/profile/:username/unfollow/", login, h.ProfileUnfollow)
	r.GET("/posts/:id/", h.PostDetail)
	r.GET("/posts/:id/edit/", login, h.EditPostForm)
	r.POST("/posts/:id/edit/", login, h.EditPost)
	r.POST("/posts/:id/comment/", login, h.AddComment)
	r.GET("/create/", login, h.CreatePostForm)
	r.POST("/create/", login, h.CreatePost)
	r.GET("/follow/", login, h.FollowIndex)

	auth := r.Group("/auth")
	{
		auth.GET("/signup/", h.SignupForm)
		auth.POST("/signup/", h.Signup)
		auth.GET("/login/", h.LoginForm)
		auth.POST("/login/", h.Login)
		auth.GET("/logout/", h.Logout)
	}
}

// render executes a template into a buffer and writes it as the response,
// returning the body so the caller can cache it.
func (h *Handler) render(c *gin.Context, status int, name string, data interface{}) []byte {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger := pkglog.Ctx(c.Request.Context())
		logger.Error().Err(err).Str("template", name).Msg("template execution failed")
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return nil
	}
	c.Data(status, contentTypeHTML, buf.Bytes())
	return buf.Bytes()
}

func (h *Handler) notFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "not_found.tmpl", nil)
}

func (h *Handler) serverError(c *gin.Context, err error) {
	logger := pkglog.Ctx(c.Request.Context())
	logger.Error().Err(err).Msg("request failed")
	c.String(http.StatusInternalServerError, "Internal Server Error")
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func viewerID(c *gin.Context) *uint {
	if id, ok := pkgauth.CurrentUserID(c); ok {
		return &id
	}
	return nil
}

// Index handles GET /. Rendered pages are cached per page number for a short
// TTL; within that window the page may still show posts already deleted.
func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	page := pagination.ParsePage(c.Query("page"))

	key := cache.IndexKey(page)
	if h.cache != nil {
		body, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			l.Warn().Err(err).Msg("page cache read failed")
		}
		if ok {
			c.Data(http.StatusOK, contentTypeHTML, body)
			return
		}
	}

	feed, err := h.feed.GlobalFeed(ctx, page)
	if err != nil {
		h.serverError(c, err)
		return
	}

	body := h.render(c, http.StatusOK, "index.tmpl", gin.H{"Page": feed})
	if h.cache != nil && body != nil {
		if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
			l.Warn().Err(err).Msg("page cache write failed")
		}
	}
}

// GroupPosts handles GET /group/:slug/.
func (h *Handler) GroupPosts(c *gin.Context) {
	ctx := c.Request.Context()
	page := pagination.ParsePage(c.Query("page"))

	group, feed, err := h.feed.GroupFeed(ctx, c.Param("slug"), page)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			h.notFound(c)
			return
		}
		h.serverError(c, err)
		return
	}

	h.render(c, http.StatusOK, "group_list.tmpl", gin.H{"Group": group, "Page": feed})
}

// Profile handles GET /profile/:username/.
func (h *Handler) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	page := pagination.ParsePage(c.Query("page"))

	profile, err := h.feed.ProfileFeed(ctx, c.Param("username"), viewerID(c), page)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.notFound(c)
			return
		}
		h.serverError(c, err)
		return
	}

	h.render(c, http.StatusOK, "profile.tmpl", gin.H{
		"Author":    profile.Author,
		"Page":      profile.Page,
		"Following": profile.Following,
		"Viewer":    pkgauth.CurrentUsername(c),
	})
}

// PostDetail handles GET /posts/:id/.
func (h *Handler) PostDetail(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseID(c)
	if !ok {
		h.notFound(c)
		return
	}

	detail, err := h.feed.PostDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			h.notFound(c)
			return
		}
		h.serverError(c, err)
		return
	}

	h.render(c, http.StatusOK, "post_detail.tmpl", gin.H{
		"Post":     detail.Post,
		"Comments": detail.Comments,
	})
}

// postInput reads a post submission form. A non-numeric group value is a
// validation error reported the same way as an unknown group.
func postInput(c *gin.Context) (service.PostInput, map[string]string) {
	input := service.PostInput{Text: c.PostForm("text")}

	if raw := strings.TrimSpace(c.PostForm("group")); raw != "" {
		id64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return input, map[string]string{"group": msgInvalidGroup}
		}
		id := uint(id64)
		input.GroupID = &id
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		f, err := file.Open()
		if err == nil {
			input.Image = &service.Upload{Reader: f, Filename: file.Filename}
		}
	}

	return input, nil
}

// validationErrors maps a service error to field messages for redisplay.
func validationErrors(err error) (map[string]string, bool) {
	switch {
	case errors.Is(err, service.ErrTextRequired):
		return map[string]string{"text": msgRequired}, true
	case errors.Is(err, repository.ErrGroupNotFound):
		return map[string]string{"group": msgInvalidGroup}, true
	case errors.Is(err, service.ErrInvalidImage):
		return map[string]string{"image": msgInvalidImage}, true
	}
	return nil, false
}

func (h *Handler) renderPostForm(c *gin.Context, isEdit bool, input service.PostInput, errs map[string]string) {
	h.render(c, http.StatusOK, "create_post.tmpl", gin.H{
		"IsEdit":  isEdit,
		"Text":    input.Text,
		"GroupID": input.GroupID,
		"Errors":  errs,
	})
}

// CreatePostForm handles GET /create/.
func (h *Handler) CreatePostForm(c *gin.Context) {
	h.renderPostForm(c, false, service.PostInput{}, nil)
}

// CreatePost handles POST /create/. On success the caller is redirected to
// their own profile feed; on validation failure the form is redisplayed and
// nothing is persisted.
func (h *Handler) CreatePost(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	input, errs := postInput(c)
	if errs != nil {
		h.renderPostForm(c, false, input, errs)
		return
	}

	if _, err := h.feed.CreatePost(ctx, userID, input); err != nil {
		if errs, ok := validationErrors(err); ok {
			h.renderPostForm(c, false, input, errs)
			return
		}
		h.serverError(c, err)
		return
	}

	c.Redirect(http.StatusFound, "/profile/"+pkgauth.CurrentUsername(c)+"/")
}

// EditPostForm handles GET /posts/:id/edit/. A non-author is silently
// redirected to the read-only detail view.
func (h *Handler) EditPostForm(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	id, ok := parseID(c)
	if !ok {
		h.notFound(c)
		return
	}

	post, err := h.feed.PostForEdit(ctx, userID, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			h.notFound(c)
		case errors.Is(err, service.ErrNotAuthor):
			c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
		default:
			h.serverError(c, err)
		}
		return
	}

	h.renderPostForm(c, true, service.PostInput{Text: post.Text, GroupID: post.GroupID}, nil)
}

// EditPost handles POST /posts/:id/edit/. A non-author's submission changes
// nothing and redirects to the detail view with no error surfaced.
func (h *Handler) EditPost(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	id, ok := parseID(c)
	if !ok {
		h.notFound(c)
		return
	}

	input, errs := postInput(c)
	if errs != nil {
		h.renderPostForm(c, true, input, errs)
		return
	}

	if _, err := h.feed.EditPost(ctx, userID, id, input); err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			h.notFound(c)
			return
		case errors.Is(err, service.ErrNotAuthor):
			c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
			return
		}
		if errs, ok := validationErrors(err); ok {
			h.renderPostForm(c, true, input, errs)
			return
		}
		h.serverError(c, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
}

// AddComment handles POST /posts/:id/comment/. Invalid submissions are
// dropped silently: the caller is redirected to the detail view either way.
func (h *Handler) AddComment(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	id, ok := parseID(c)
	if !ok {
		h.notFound(c)
		return
	}

	if _, err := h.feed.AddComment(ctx, userID, id, c.PostForm("text")); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			h.notFound(c)
			return
		}
		if !errors.Is(err, service.ErrTextRequired) {
			h.serverError(c, err)
			return
		}
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
}

// FollowIndex handles GET /follow/.
func (h *Handler) FollowIndex(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)
	page := pagination.ParsePage(c.Query("page"))

	feed, err := h.feed.FollowingFeed(ctx, userID, page)
	if err != nil {
		h.serverError(c, err)
		return
	}

	h.render(c, http.StatusOK, "follow.tmpl", gin.H{"Page": feed})
}

// ProfileFollow handles GET /profile/:username/follow/.
func (h *Handler) ProfileFollow(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	author, err := h.feed.Follow(ctx, userID, c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.notFound(c)
			return
		}
		h.serverError(c, err)
		return
	}

	c.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}

// ProfileUnfollow handles GET /profile/:username/unfollow/.
func (h *Handler) ProfileUnfollow(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := pkgauth.CurrentUserID(c)

	author, err := h.feed.Unfollow(ctx, userID, c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.notFound(c)
			return
		}
		h.serverError(c, err)
		return
	}

	c.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

// LoginForm handles GET /auth/login/.
func (h *Handler) LoginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login.tmpl", gin.H{"Next": c.Query("next")})
}

// Login handles POST /auth/login/.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.accounts.Login(ctx, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.render(c, http.StatusOK, "login.tmpl", gin.H{
				"Next":  c.PostForm("next"),
				"Error": "Неверное имя пользователя или пароль.",
			})
			return
		}
		h.serverError(c, err)
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.sessions.SetCookie(c, token)

	c.Redirect(http.StatusFound, safeNext(c.PostForm("next")))
}

// SignupForm handles GET /auth/signup/.
func (h *Handler) SignupForm(c *gin.Context) {
	h.render(c, http.StatusOK, "signup.tmpl", gin.H{})
}

// Signup handles POST /auth/signup/. A fresh account is logged in right away.
func (h *Handler) Signup(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.accounts.SignUp(ctx, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			h.render(c, http.StatusOK, "signup.tmpl", gin.H{"Error": "Имя пользователя уже занято."})
		case errors.Is(err, service.ErrInvalidCredentials):
			h.render(c, http.StatusOK, "signup.tmpl", gin.H{"Error": msgRequired})
		default:
			h.serverError(c, err)
		}
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.sessions.SetCookie(c, token)

	c.Redirect(http.StatusFound, "/")
}

// Logout handles GET /auth/logout/.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.ClearCookie(c)
	c.Redirect(http.StatusFound, "/")
}
