package notification

import (
	"context"
	"fmt"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/email"
	"github.com/exlearn/billing-service/internal/kafka"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/hashicorp/go-multierror"
)

// OrderNotice describes a committed order for notification purposes.
type OrderNotice struct {
	OrderID     string
	Payer       domain.User
	Beneficiary domain.User
	Item        domain.OrderItem
	Description string
	Currency    string
}

// Dispatcher delivers best-effort side effects after an order commits.
// A returned error is a warning, never a failure of the purchase.
type Dispatcher interface {
	OrderCommitted(ctx context.Context, notice OrderNotice) error
}

// EmailDispatcher mails the payer (and the beneficiary, when
// different) plus a platform support copy, then publishes an
// order.created event.
type EmailDispatcher struct {
	mail           email.Service
	events         kafka.OrderProducer // may be nil when Kafka is not configured
	supportAddress string
	log            *logger.Logger
}

// NewEmailDispatcher creates the production dispatcher.
func NewEmailDispatcher(mail email.Service, events kafka.OrderProducer, supportAddress string, log *logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		mail:           mail,
		events:         events,
		supportAddress: supportAddress,
		log:            log,
	}
}

// OrderCommitted sends all notifications, collecting failures into one
// warning-level error.
func (d *EmailDispatcher) OrderCommitted(ctx context.Context, notice OrderNotice) error {
	var result *multierror.Error

	subject := fmt.Sprintf("Your order %s", notice.OrderID)
	body := receiptBody(notice)

	if notice.Payer.PrimaryEmail != "" {
		if err := d.mail.SendEmail(ctx, notice.Payer.PrimaryEmail, subject, body); err != nil {
			result = multierror.Append(result, fmt.Errorf("payer email: %w", err))
		}
	}

	if notice.Beneficiary.ID != notice.Payer.ID && notice.Beneficiary.PrimaryEmail != "" {
		beneficiaryBody := fmt.Sprintf(
			"An order was placed on your behalf.\n\n%s", body)
		if err := d.mail.SendEmail(ctx, notice.Beneficiary.PrimaryEmail, subject, beneficiaryBody); err != nil {
			result = multierror.Append(result, fmt.Errorf("beneficiary email: %w", err))
		}
	}

	if d.supportAddress != "" {
		supportSubject := fmt.Sprintf("Order %s committed", notice.OrderID)
		if err := d.mail.SendEmail(ctx, d.supportAddress, supportSubject, body); err != nil {
			result = multierror.Append(result, fmt.Errorf("support email: %w", err))
		}
	}

	if d.events != nil {
		event := kafka.OrderEvent{
			OrderID:   notice.OrderID,
			UserID:    notice.Beneficiary.ID,
			PayerID:   notice.Payer.ID,
			Category:  notice.Item.Category,
			ItemRefID: notice.Item.ItemRef[notice.Item.Category.DedupRefKey()],
			Amount:    notice.Item.Amount,
			Quantity:  notice.Item.Quantity,
			Currency:  notice.Currency,
		}
		if err := d.events.PublishOrderCreated(ctx, event); err != nil {
			result = multierror.Append(result, fmt.Errorf("order event: %w", err))
		}
	}

	return result.ErrorOrNil()
}

func receiptBody(notice OrderNotice) string {
	return fmt.Sprintf(
		"Order ID: %s\nItem: %s\nQuantity: %d\nAmount: %d credits\n\nThank you for your purchase.",
		notice.OrderID, notice.Description, notice.Item.Quantity, notice.Item.Amount,
	)
}
