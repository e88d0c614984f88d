package auth

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"

	// SessionCookie is the name of the session cookie set on login.
	SessionCookie = "yatube_session"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session has expired")
)

// SessionClaims are the JWT claims carried by the session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Sessions issues and validates signed session cookies and provides the
// login-required gate for gin routes.
type Sessions struct {
	secret    []byte
	ttl       time.Duration
	loginPath string
}

// Config holds session configuration.
type Config struct {
	Secret    string        `mapstructure:"secret"`
	TTL       time.Duration `mapstructure:"ttl"`
	LoginPath string        `mapstructure:"login_path"`
}

// NewSessions creates a session manager. loginPath defaults to /auth/login/.
func NewSessions(cfg Config) *Sessions {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login/"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Sessions{
		secret:    []byte(cfg.Secret),
		ttl:       ttl,
		loginPath: loginPath,
	}
}

// Issue creates a signed session token for the given user.
func (s *Sessions) Issue(userID uint, username string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   userID,
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a session token and returns its claims.
func (s *Sessions) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetCookie attaches a session cookie carrying the token to the response.
func (s *Sessions) SetCookie(c *gin.Context, token string) {
	c.SetCookie(SessionCookie, token, int(s.ttl.Seconds()), "/", "", false, true)
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// Identify reads the session cookie, if any, and stores the actor in the gin
// context. Requests without a valid session pass through anonymously.
func (s *Sessions) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := s.Parse(token)
		if err != nil {
			// Stale or tampered cookie: treat as anonymous.
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// RequireLogin gates a route behind authentication. Anonymous callers are
// redirected to the login page with a `next` parameter preserving the
// originally requested URL.
func (s *Sessions) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); ok {
			c.Next()
			return
		}
		next := url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, s.loginPath+"?next="+next)
		c.Abort()
	}
}

// CurrentUserID extracts the authenticated user's ID from the gin context.
func CurrentUserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	return 0, false
}

// CurrentUsername extracts the authenticated user's name from the gin context.
func CurrentUsername(c *gin.Context) string {
	if v, exists := c.Get(UsernameKey); exists {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}
