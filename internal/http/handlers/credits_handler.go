package handlers

import (
	"net/http"
	"strconv"

	"github.com/exlearn/billing-service/internal/billing"
	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/middleware"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/req"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// CreditsHandler exposes balance reads and the metered credits plan.
type CreditsHandler struct {
	service *billing.Service
	log     *logger.Logger
}

func NewCreditsHandler(service *billing.Service, log *logger.Logger) *CreditsHandler {
	return &CreditsHandler{
		service: service,
		log:     log,
	}
}

type creditsResponse struct {
	Count int64 `json:"count"`
}

type enrollRequest struct {
	CardToken string `json:"card_token" validate:"required"`
}

type userSummaryResponse struct {
	UserID            string `json:"user_id"`
	SubscriptionLevel int    `json:"subscription_level"`
	Enrolled          bool   `json:"enrolled"`
}

// GetCredits handles GET /me/credits.
func (h *CreditsHandler) GetCredits(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		respondError(c, h.log, domain.E(domain.KindForbidden, "no authenticated user"))
		return
	}

	count, err := h.service.GetCredits(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, creditsResponse{Count: count}, http.StatusOK)
}

// PurchaseCredits handles POST /me/credits/purchase?purchaseN=.
func (h *CreditsHandler) PurchaseCredits(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		respondError(c, h.log, domain.E(domain.KindForbidden, "no authenticated user"))
		return
	}

	n, err := strconv.ParseInt(c.Query("purchaseN"), 10, 64)
	if err != nil {
		respondError(c, h.log, domain.E(domain.KindBadRequest, "purchaseN must be an integer"))
		return
	}

	count, err := h.service.PurchaseCredits(c.Request.Context(), user, n)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, creditsResponse{Count: count}, http.StatusOK)
}

// Enroll handles POST /me/credits/enroll.
func (h *CreditsHandler) Enroll(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		respondError(c, h.log, domain.E(domain.KindForbidden, "no authenticated user"))
		return
	}

	body, err := req.Decode[enrollRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to decode enroll request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request format"}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}
	if err := req.IsValid(body); err != nil {
		h.log.Warnw("Enroll request validation failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	updated, err := h.service.Enroll(c.Request.Context(), user, body.CardToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, userSummaryResponse{
		UserID:            updated.ID,
		SubscriptionLevel: updated.HighestSubscriptionLevel(),
		Enrolled:          updated.Payment != nil && updated.Payment.Enrolled(),
	}, http.StatusOK)
}

// Unenroll handles POST /me/credits/unenroll.
func (h *CreditsHandler) Unenroll(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		respondError(c, h.log, domain.E(domain.KindForbidden, "no authenticated user"))
		return
	}

	updated, err := h.service.Unenroll(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, userSummaryResponse{
		UserID:            updated.ID,
		SubscriptionLevel: updated.HighestSubscriptionLevel(),
		Enrolled:          updated.Payment != nil && updated.Payment.Enrolled(),
	}, http.StatusOK)
}
