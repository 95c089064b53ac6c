package handlers

import (
	"net/http"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/middleware"
	"github.com/exlearn/billing-service/internal/purchase"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/req"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// PurchaseHandler exposes the purchase pipeline over HTTP.
type PurchaseHandler struct {
	service *purchase.Service
	log     *logger.Logger
}

func NewPurchaseHandler(service *purchase.Service, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: service,
		log:     log,
	}
}

// PurchaseRequest carries the item selection only. Prices are always
// resolved server side; a client-sent amount has nowhere to go.
type PurchaseRequest struct {
	Category          string            `json:"category" validate:"required"`
	Refs              map[string]string `json:"refs" validate:"required"`
	Options           map[string]string `json:"options,omitempty"`
	Quantity          int               `json:"quantity,omitempty"`
	BeneficiaryUserID string            `json:"beneficiary_user_id,omitempty"`
}

// CreatePurchase handles POST /purchase.
func (h *PurchaseHandler) CreatePurchase(c *gin.Context) {
	ctx := c.Request.Context()

	payer, ok := middleware.UserFromContext(c)
	if !ok {
		respondError(c, h.log, domain.E(domain.KindForbidden, "no authenticated user"))
		return
	}

	body, err := req.Decode[PurchaseRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to decode purchase request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request format"}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}
	if err := req.IsValid(body); err != nil {
		h.log.Warnw("Purchase request validation failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	result, err := h.service.Purchase(ctx, purchase.Input{
		Payer:         payer,
		BeneficiaryID: body.BeneficiaryUserID,
		Item: domain.PurchaseItem{
			Category: domain.ItemCategory(body.Category),
			Refs:     body.Refs,
			Options:  body.Options,
			Quantity: body.Quantity,
		},
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, result, http.StatusOK)
}
