package purchase

import (
	"context"
	"errors"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/kafka"
	"github.com/exlearn/billing-service/internal/ledger"
	"github.com/exlearn/billing-service/internal/metrics"
	"github.com/exlearn/billing-service/internal/notification"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"
)

// State names the orchestrator pipeline stages, used in logs and to
// reason about where a purchase stopped.
type State string

const (
	StateValidating         State = "validating"
	StatePriceResolved      State = "price_resolved"
	StateIdempotencyChecked State = "idempotency_checked"
	StateDebited            State = "debited"
	StateOrderPersisted     State = "order_persisted"
	StateNotificationsSent  State = "notifications_sent"
)

// PriceResolver is the catalog capability the orchestrator needs.
type PriceResolver interface {
	Resolve(ctx context.Context, item domain.PurchaseItem) (domain.ResolvedPrice, error)
}

// Input is a validated-identity purchase request. Amounts are never
// read from the client; only the category, refs, options and quantity
// are taken from the request body.
type Input struct {
	Payer         domain.User
	BeneficiaryID string // empty means the payer buys for themselves
	Item          domain.PurchaseItem
}

// Result is the caller-facing outcome of a committed (or deduplicated)
// purchase.
type Result struct {
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	AlreadyPurchased bool   `json:"already_purchased,omitempty"`
	Message          string `json:"msg,omitempty"`
	Warning          string `json:"warning,omitempty"`
}

// Service coordinates a purchase: validation, price resolution,
// idempotency, ledger debit, order persistence and notifications.
//
// The debit happens before the order write. A failed write after a
// successful debit is surfaced as a persistence error and reported for
// manual reconciliation; there is deliberately no automatic refund.
type Service struct {
	resolver   PriceResolver
	users      repository.UserRepository
	orders     repository.OrderRepository
	ledger     ledger.Client
	dispatcher notification.Dispatcher
	events     kafka.OrderProducer // may be nil when Kafka is not configured
	metrics    metrics.PurchaseMetrics
	currency   string
	log        *logger.Logger
}

// NewService wires the purchase orchestrator.
func NewService(
	resolver PriceResolver,
	users repository.UserRepository,
	orders repository.OrderRepository,
	ledgerClient ledger.Client,
	dispatcher notification.Dispatcher,
	events kafka.OrderProducer,
	purchaseMetrics metrics.PurchaseMetrics,
	currency string,
	log *logger.Logger,
) *Service {
	return &Service{
		resolver:   resolver,
		users:      users,
		orders:     orders,
		ledger:     ledgerClient,
		dispatcher: dispatcher,
		events:     events,
		metrics:    purchaseMetrics,
		currency:   currency,
		log:        log,
	}
}

// Purchase runs the pipeline for one item and returns the result or a
// typed failure.
func (s *Service) Purchase(ctx context.Context, in Input) (Result, error) {
	category := string(in.Item.Category)
	state := StateValidating
	s.log.Debugw("Purchase started", "state", state, "payer_id", in.Payer.ID, "category", category)

	beneficiary, err := s.validate(ctx, in)
	if err != nil {
		s.metrics.IncPurchase(category, metrics.OutcomeRejected)
		return Result{}, err
	}

	price, err := s.resolver.Resolve(ctx, in.Item)
	if err != nil {
		s.metrics.IncPurchase(category, metrics.OutcomeRejected)
		return Result{}, err
	}
	state = StatePriceResolved
	s.log.Debugw("Price resolved", "state", state, "amount", price.Amount, "quantity", price.Quantity)

	if in.Item.Category.OneTime() {
		existing, err := s.orders.FindByUserAndItemRef(ctx, beneficiary.ID, in.Item.Category, in.Item.DedupRefID())
		if err != nil {
			return Result{}, domain.Wrap(domain.KindInternal, "failed to check for an existing order", err)
		}
		if existing != nil {
			state = StateIdempotencyChecked
			s.log.Infow("Purchase already covered by an existing order",
				"state", state, "order_id", existing.ID, "user_id", beneficiary.ID)
			s.metrics.IncPurchase(category, metrics.OutcomeDuplicate)
			return Result{
				OrderID:          existing.ID,
				Amount:           0,
				AlreadyPurchased: true,
				Message:          "This item has already been purchased for this account.",
			}, nil
		}
	}
	state = StateIdempotencyChecked

	if err := s.ledger.Spend(ctx, in.Payer.ID, price.Amount, true); err != nil {
		s.metrics.IncPurchase(category, metrics.OutcomeRejected)
		if domain.KindOf(err) == domain.KindInsufficientCredits {
			return Result{}, domain.Wrap(domain.KindPaymentFailed,
				"insufficient credits and no valid payment method on file", err)
		}
		return Result{}, err
	}
	state = StateDebited
	s.log.Debugw("Credits debited", "state", state, "payer_id", in.Payer.ID, "amount", price.Amount)

	item := domain.OrderItem{
		Category: in.Item.Category,
		Amount:   price.Amount,
		Quantity: price.Quantity,
		ItemRef:  copyMap(in.Item.Refs),
		Options:  copyMap(in.Item.Options),
	}

	orderID, err := s.orders.Insert(ctx, beneficiary.ID, in.Payer.ID, []domain.OrderItem{item})
	if err != nil {
		// Credits are already spent and cannot be recovered here. This
		// is the documented inconsistency window: flag it loudly for
		// manual reconciliation and return a fatal error, not a
		// payment rejection.
		s.log.Errorw("ORDER PERSIST FAILED AFTER DEBIT - manual reconciliation required",
			"payer_id", in.Payer.ID, "user_id", beneficiary.ID,
			"category", category, "amount", price.Amount, "error", err)
		s.metrics.IncPersistFailure(category)
		s.metrics.IncPurchase(category, metrics.OutcomeFailed)
		s.publishPersistFailed(ctx, in, beneficiary, price)
		return Result{}, domain.Wrap(domain.KindPersistence,
			"your payment was taken but the order could not be recorded; please contact support", err)
	}
	state = StateOrderPersisted
	s.log.Infow("Order persisted", "state", state, "order_id", orderID, "payer_id", in.Payer.ID)

	result := Result{
		OrderID: orderID,
		Amount:  price.Amount,
	}

	notice := notification.OrderNotice{
		OrderID:     orderID,
		Payer:       in.Payer,
		Beneficiary: beneficiary,
		Item:        item,
		Description: price.Description,
		Currency:    s.currency,
	}
	if err := s.dispatcher.OrderCommitted(ctx, notice); err != nil {
		s.log.Warnw("Order notifications failed", "order_id", orderID, "error", err)
		result.Warning = "Order recorded, but confirmation notifications could not be sent."
	}
	state = StateNotificationsSent
	s.log.Debugw("Purchase finished", "state", state, "order_id", orderID)

	s.metrics.IncPurchase(category, metrics.OutcomeCompleted)
	s.metrics.ObserveDebitedAmount(category, float64(price.Amount))
	return result, nil
}

// validate enforces the entry conditions: a billable payer identity, a
// known category and present refs. It also resolves the beneficiary.
func (s *Service) validate(ctx context.Context, in Input) (domain.User, error) {
	if !in.Payer.HasContactEmail() {
		return domain.User{}, domain.E(domain.KindForbidden,
			"purchases require an account with a contact email")
	}
	if !in.Item.Category.Valid() {
		return domain.User{}, domain.E(domain.KindBadRequest, "unknown item category")
	}
	if len(in.Item.Refs) == 0 {
		return domain.User{}, domain.E(domain.KindBadRequest, "item refs are required")
	}
	if in.Item.Quantity < 0 {
		return domain.User{}, domain.E(domain.KindBadRequest, "quantity must not be negative")
	}

	if in.BeneficiaryID == "" || in.BeneficiaryID == in.Payer.ID {
		return in.Payer, nil
	}

	beneficiary, err := s.users.GetByID(ctx, in.BeneficiaryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.E(domain.KindNotFound, "beneficiary user not found")
		}
		return domain.User{}, domain.Wrap(domain.KindInternal, "failed to load beneficiary", err)
	}
	return beneficiary, nil
}

// publishPersistFailed emits the reconciliation event; best effort.
func (s *Service) publishPersistFailed(ctx context.Context, in Input, beneficiary domain.User, price domain.ResolvedPrice) {
	if s.events == nil {
		return
	}
	event := kafka.OrderEvent{
		UserID:    beneficiary.ID,
		PayerID:   in.Payer.ID,
		Category:  in.Item.Category,
		ItemRefID: in.Item.DedupRefID(),
		Amount:    price.Amount,
		Quantity:  price.Quantity,
		Currency:  s.currency,
	}
	if err := s.events.PublishOrderPersistFailed(ctx, event); err != nil {
		s.log.Errorw("Failed to publish reconciliation event", "error", err)
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
