package email

import (
	"context"
	"fmt"

	sendgridgo "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Service sends transactional email. Callers treat failures as
// warnings; nothing in the purchase pipeline rolls back on a send error.
type Service interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type sendGridClient struct {
	client     *sendgridgo.Client
	sender     string
	senderName string
	logger     *zap.Logger
}

// NewSendGridClient creates a SendGrid-backed email service.
func NewSendGridClient(apiKey, sender, senderName string, logger *zap.Logger) Service {
	return sendGridClient{
		client:     sendgridgo.NewSendClient(apiKey),
		sender:     sender,
		senderName: senderName,
		logger:     logger,
	}
}

func (c sendGridClient) SendEmail(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(c.senderName, c.sender)
	recipient := mail.NewEmail(to, to)

	message := mail.NewSingleEmail(from, subject, recipient, body, "")
	resp, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		c.logger.Error("send email error", zap.Error(err))
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("send email error",
			zap.String("recipient", to),
			zap.Int("status", resp.StatusCode),
			zap.String("response", resp.Body),
		)
		return fmt.Errorf("email: sendgrid returned status %d", resp.StatusCode)
	}

	c.logger.Info("email sent", zap.String("recipient", to))
	return nil
}
