package handlers

import (
	"errors"
	"net/http"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"
	"github.com/exlearn/billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// respondError maps a typed failure to an HTTP status and JSON body.
// The wrapped cause is logged, never sent to the client.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := http.StatusInternalServerError
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus()
	}

	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		log.Warnw("Request rejected", "path", c.Request.URL.Path, "kind", string(domain.KindOf(err)), "error", err)
	}

	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     domain.UserMessage(err),
		ErrorCode: status,
		Details:   string(domain.KindOf(err)),
	}, status)
	c.Abort()
}
