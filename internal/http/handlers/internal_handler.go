package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/ledger"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/req"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// InternalHandler serves the service-to-service API. Callers are other
// backend components, authenticated by a shared key in the apiKey
// query parameter.
type InternalHandler struct {
	users             repository.UserRepository
	ledger            ledger.Client
	apiKey            string
	defaultTTLSeconds int64
	log               *logger.Logger
}

func NewInternalHandler(users repository.UserRepository, ledgerClient ledger.Client, apiKey string, defaultTTLSeconds int64, log *logger.Logger) *InternalHandler {
	return &InternalHandler{
		users:             users,
		ledger:            ledgerClient,
		apiKey:            apiKey,
		defaultTTLSeconds: defaultTTLSeconds,
		log:               log,
	}
}

type subscriptionLevelResponse struct {
	UserID            string `json:"user_id"`
	SubscriptionLevel int    `json:"subscription_level"`
}

type grantCreditsRequest struct {
	AddN       int64 `json:"add_n" validate:"required,gt=0"`
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// RequireAPIKey guards the internal route group.
func (h *InternalHandler) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("apiKey")
		if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			h.log.Warnw("Internal API key rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error:     "Invalid API key",
				ErrorCode: http.StatusForbidden,
			}, http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSubscriptionLevel handles GET /internal/users/:userId/subscription.
func (h *InternalHandler) GetSubscriptionLevel(c *gin.Context) {
	userID := c.Param("userId")

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, h.log, domain.E(domain.KindNotFound, "user not found"))
			return
		}
		respondError(c, h.log, domain.Wrap(domain.KindInternal, "failed to load user", err))
		return
	}

	res.JsonResponse(c.Writer, subscriptionLevelResponse{
		UserID:            user.ID,
		SubscriptionLevel: user.HighestSubscriptionLevel(),
	}, http.StatusOK)
}

// GrantCredits handles POST /internal/users/:userId/credits. Grants go
// straight to the ledger; no Stripe usage is reported for them.
func (h *InternalHandler) GrantCredits(c *gin.Context) {
	userID := c.Param("userId")

	body, err := req.Decode[grantCreditsRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to decode grant request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request format"}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}
	if err := req.IsValid(body); err != nil {
		h.log.Warnw("Grant request validation failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, h.log, domain.E(domain.KindNotFound, "user not found"))
			return
		}
		respondError(c, h.log, domain.Wrap(domain.KindInternal, "failed to load user", err))
		return
	}

	ttl := body.TTLSeconds
	if ttl <= 0 {
		ttl = h.defaultTTLSeconds
	}
	if err := h.ledger.GrantCredits(c.Request.Context(), userID, body.AddN, ttl); err != nil {
		respondError(c, h.log, err)
		return
	}

	count, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Infow("Credits granted via internal API", "user_id", userID, "add_n", body.AddN)
	res.JsonResponse(c.Writer, creditsResponse{Count: count}, http.StatusOK)
}
