package email

import (
	"context"

	"go.uber.org/zap"
)

// logService is the stand-in used when no SendGrid key is configured:
// messages are logged instead of sent.
type logService struct {
	logger *zap.Logger
}

// NewLogService creates an email service that only logs messages.
func NewLogService(logger *zap.Logger) Service {
	return logService{logger: logger}
}

func (s logService) SendEmail(_ context.Context, to, subject, _ string) error {
	s.logger.Info("email suppressed, no delivery provider configured",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
