package middleware

import (
	"errors"
	"net/http"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/identity"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// ContextKey type for gin context keys to avoid collisions.
type ContextKey string

// ContextUserKey holds the resolved domain.User for the request.
const ContextUserKey ContextKey = "currentUser"

// SessionMiddleware resolves the signed session cookie into a user.
type SessionMiddleware struct {
	users      repository.UserRepository
	decoder    identity.TokenDecoder
	cookieName string
	log        *logger.Logger
}

func NewSessionMiddleware(users repository.UserRepository, decoder identity.TokenDecoder, cookieName string, log *logger.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		users:      users,
		decoder:    decoder,
		cookieName: cookieName,
		log:        log,
	}
}

// RequireUser rejects requests whose session cookie does not resolve
// to an existing user. It never mints guests; that is the anonymous
// endpoint's job.
func (m *SessionMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(m.cookieName)
		if err != nil || raw == "" {
			m.handleAuthError(c, "Missing session credential")
			return
		}

		claims, err := m.decoder.Decode(raw)
		if err != nil {
			m.handleAuthError(c, "Invalid session credential")
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				m.handleAuthError(c, "Unknown user")
				return
			}
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error:     "Failed to load user",
				ErrorCode: http.StatusInternalServerError,
			}, http.StatusInternalServerError)
			c.Abort()
			return
		}

		c.Set(string(ContextUserKey), user)
		c.Next()
	}
}

func (m *SessionMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Session check failed", "path", c.Request.URL.Path, "reason", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: http.StatusForbidden,
	}, http.StatusForbidden)
	c.Abort()
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(string(ContextUserKey))
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}
