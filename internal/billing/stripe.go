package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Metadata key linking a Stripe Customer back to our user ID.
const metadataUserIDKey = "user_id"

// StripeClient wraps the Stripe operations the credits plan needs.
type StripeClient interface {
	// CreateCustomer creates a Stripe customer with the given card
	// token attached and returns its Stripe ID.
	CreateCustomer(ctx context.Context, userID, email, cardToken string) (string, error)

	// CreateMeteredSubscription subscribes the customer to the metered
	// credits price and returns the subscription ID and the
	// subscription item ID usage records are reported against.
	CreateMeteredSubscription(ctx context.Context, customerID, priceID string) (subID, subItemID string, err error)

	// CancelSubscription cancels the subscription immediately. Already
	// canceled or missing subscriptions are not an error.
	CancelSubscription(ctx context.Context, subID string) error

	// CreateUsageRecord reports a credits purchase of the given
	// quantity against the subscription item.
	CreateUsageRecord(ctx context.Context, subItemID string, quantity int64) error
}

type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient creates a Stripe SDK backed client.
func NewStripeClient(apiKey string, log *logger.Logger) StripeClient {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

func (sc *stripeClient) CreateCustomer(ctx context.Context, userID, email, cardToken string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataUserIDKey: userID,
		},
	}
	if cardToken != "" {
		params.Source = stripe.String(cardToken)
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

func (sc *stripeClient) CreateMeteredSubscription(ctx context.Context, customerID, priceID string) (string, string, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(priceID),
			},
		},
		Params: stripe.Params{
			Context: ctx,
		},
	}

	subscription, err := sc.client.Subscriptions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateMeteredSubscription", err)
		return "", "", fmt.Errorf("stripe: failed to create subscription: %w", err)
	}

	if subscription.Items == nil || len(subscription.Items.Data) == 0 {
		return "", "", fmt.Errorf("stripe: subscription %s created without items", subscription.ID)
	}

	subItemID := subscription.Items.Data[0].ID
	sc.log.Infow("Stripe metered subscription created",
		"stripeSubscriptionID", subscription.ID,
		"stripeSubscriptionItemID", subItemID,
		"status", string(subscription.Status))
	return subscription.ID, subItemID, nil
}

func (sc *stripeClient) CancelSubscription(ctx context.Context, subID string) error {
	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}

	_, err := sc.client.Subscriptions.Cancel(subID, params)
	if err != nil {
		stripeErr, ok := err.(*stripe.Error)
		if ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			sc.log.Warnw("Attempted to cancel already canceled/missing Stripe subscription", "stripeSubscriptionID", subID)
			return nil
		}
		logStripeError(sc.log, "CancelSubscription", err)
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	sc.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", subID)
	return nil
}

func (sc *stripeClient) CreateUsageRecord(ctx context.Context, subItemID string, quantity int64) error {
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(subItemID),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(time.Now().Unix()),
		Action:           stripe.String(stripe.UsageRecordActionIncrement),
		Params: stripe.Params{
			Context: ctx,
		},
	}

	record, err := sc.client.UsageRecords.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateUsageRecord", err)
		return fmt.Errorf("stripe: failed to create usage record: %w", err)
	}

	sc.log.Infow("Stripe usage record created",
		"stripeSubscriptionItemID", subItemID, "usageRecordID", record.ID, "quantity", quantity)
	return nil
}

func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
