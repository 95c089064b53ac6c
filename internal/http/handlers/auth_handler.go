package handlers

import (
	"net/http"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/identity"
	"github.com/exlearn/billing-service/internal/token"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// Session cookies live for one year; demo identities are claimed by a
// later login, not expired.
const sessionCookieMaxAge = 365 * 24 * 60 * 60

// AuthHandler issues anonymous sessions.
type AuthHandler struct {
	resolver           *identity.Resolver
	codec              *token.Codec
	cookieName         string
	userDataCookieName string
	cookieDomain       string
	log                *logger.Logger
}

func NewAuthHandler(resolver *identity.Resolver, codec *token.Codec, cookieName, userDataCookieName, cookieDomain string, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		resolver:           resolver,
		codec:              codec,
		cookieName:         cookieName,
		userDataCookieName: userDataCookieName,
		cookieDomain:       cookieDomain,
		log:                log,
	}
}

type anonymousSessionResponse struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	IsDemo    bool   `json:"is_demo"`
	IsNew     bool   `json:"is_new"`
}

// CreateAnonymousSession handles POST /anonymous. An existing valid
// session cookie is honored; otherwise a demo user is minted and a
// fresh credential issued.
func (h *AuthHandler) CreateAnonymousSession(c *gin.Context) {
	ctx := c.Request.Context()

	raw, _ := c.Cookie(h.cookieName)
	resolved, err := h.resolver.Resolve(ctx, raw)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if resolved.IsNewEphemeral {
		signed, err := h.codec.Issue(resolved.User)
		if err != nil {
			respondError(c, h.log, domain.Wrap(domain.KindInternal, "failed to issue session credential", err))
			return
		}
		h.setSessionCookies(c, signed)
		h.log.Infow("Anonymous session issued", "user_id", resolved.User.ID)
	}

	res.JsonResponse(c.Writer, anonymousSessionResponse{
		UserID:    resolved.User.ID,
		FullName:  resolved.User.FullName,
		AvatarURL: resolved.User.AvatarURL,
		IsDemo:    resolved.User.IsDemo,
		IsNew:     resolved.IsNewEphemeral,
	}, http.StatusOK)
}

// setSessionCookies sets the signed session cookie plus the readable
// claims cookie client code uses to render identity without verifying
// the signature.
func (h *AuthHandler) setSessionCookies(c *gin.Context, signed string) {
	c.SetCookie(h.cookieName, signed, sessionCookieMaxAge, "/", h.cookieDomain, false, true)
	c.SetCookie(h.userDataCookieName, token.RawClaimsSegment(signed), sessionCookieMaxAge, "/", h.cookieDomain, false, false)
}
