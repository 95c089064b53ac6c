package billing

import (
	"context"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/ledger"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"
)

// Service manages the metered credits plan: enrollment with a saved
// card, on-demand credit purchases reported as Stripe usage, and
// balance reads that always go to the ledger.
type Service struct {
	users      repository.UserRepository
	stripe     StripeClient
	ledger     ledger.Client
	planID     string
	planLevel  int
	ttlSeconds int64
	log        *logger.Logger
}

// NewService wires the credits plan service.
func NewService(
	users repository.UserRepository,
	stripeClient StripeClient,
	ledgerClient ledger.Client,
	planID string,
	planLevel int,
	ttlSeconds int64,
	log *logger.Logger,
) *Service {
	return &Service{
		users:      users,
		stripe:     stripeClient,
		ledger:     ledgerClient,
		planID:     planID,
		planLevel:  planLevel,
		ttlSeconds: ttlSeconds,
		log:        log,
	}
}

// Enroll puts the user on the metered credits plan, creating a Stripe
// customer from the card token when none exists yet.
func (s *Service) Enroll(ctx context.Context, user domain.User, cardToken string) (domain.User, error) {
	if !user.HasContactEmail() {
		return domain.User{}, domain.E(domain.KindForbidden, "credits enrollment requires an account with a contact email")
	}

	profile := domain.PaymentProfile{}
	if user.Payment != nil {
		profile = *user.Payment
	}
	if profile.Enrolled() {
		return domain.User{}, domain.E(domain.KindBadRequest, "user is already enrolled in the credits plan")
	}

	if profile.CustomerID == "" {
		if cardToken == "" {
			return domain.User{}, domain.E(domain.KindBadRequest, "a card token is required to enroll")
		}
		customerID, err := s.stripe.CreateCustomer(ctx, user.ID, user.PrimaryEmail, cardToken)
		if err != nil {
			return domain.User{}, domain.Wrap(domain.KindPaymentFailed, "failed to register payment method", err)
		}
		profile.CustomerID = customerID
		profile.CardSaved = true
	}

	subID, subItemID, err := s.stripe.CreateMeteredSubscription(ctx, profile.CustomerID, s.planID)
	if err != nil {
		return domain.User{}, domain.Wrap(domain.KindPaymentFailed, "failed to start the credits plan", err)
	}
	profile.CreditsSubID = subID
	profile.CreditsSubItemID = subItemID

	user.Payment = &profile
	user.Subscription = withLevel(user.Subscription, s.planLevel)

	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, domain.Wrap(domain.KindInternal, "failed to save enrollment", err)
	}

	s.log.Infow("User enrolled in credits plan", "user_id", user.ID, "sub_id", subID)
	return user, nil
}

// Unenroll cancels the metered subscription and drops the plan's
// subscription level. The Stripe customer and saved card are kept.
func (s *Service) Unenroll(ctx context.Context, user domain.User) (domain.User, error) {
	if user.Payment == nil || !user.Payment.Enrolled() {
		return domain.User{}, domain.E(domain.KindBadRequest, "user is not enrolled in the credits plan")
	}

	if err := s.stripe.CancelSubscription(ctx, user.Payment.CreditsSubID); err != nil {
		return domain.User{}, domain.Wrap(domain.KindInternal, "failed to cancel the credits plan", err)
	}

	profile := *user.Payment
	profile.CreditsSubID = ""
	profile.CreditsSubItemID = ""
	user.Payment = &profile
	user.Subscription = withoutLevel(user.Subscription, s.planLevel)

	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, domain.Wrap(domain.KindInternal, "failed to save unenrollment", err)
	}

	s.log.Infow("User unenrolled from credits plan", "user_id", user.ID)
	return user, nil
}

// PurchaseCredits reports n credits of Stripe usage and grants the
// same n to the ledger, then returns the fresh balance.
func (s *Service) PurchaseCredits(ctx context.Context, user domain.User, n int64) (int64, error) {
	if n <= 0 {
		return 0, domain.E(domain.KindBadRequest, "credits quantity must be positive")
	}
	if user.Payment == nil || !user.Payment.Enrolled() {
		return 0, domain.E(domain.KindForbidden, "user is not enrolled in the credits plan")
	}

	if err := s.stripe.CreateUsageRecord(ctx, user.Payment.CreditsSubItemID, n); err != nil {
		return 0, domain.Wrap(domain.KindPaymentFailed, "failed to charge for credits", err)
	}

	if err := s.ledger.GrantCredits(ctx, user.ID, n, s.ttlSeconds); err != nil {
		// Usage was already reported; the grant must be replayed by hand.
		s.log.Errorw("CREDITS GRANT FAILED AFTER USAGE REPORT - manual reconciliation required",
			"user_id", user.ID, "credits", n, "error", err)
		return 0, err
	}

	return s.ledger.GetBalance(ctx, user.ID)
}

// GetCredits returns the user's spendable balance from the ledger.
func (s *Service) GetCredits(ctx context.Context, userID string) (int64, error) {
	return s.ledger.GetBalance(ctx, userID)
}

func withLevel(entries []domain.SubscriptionEntry, level int) []domain.SubscriptionEntry {
	for _, e := range entries {
		if e.Level == level {
			return entries
		}
	}
	return append(entries, domain.SubscriptionEntry{Level: level})
}

func withoutLevel(entries []domain.SubscriptionEntry, level int) []domain.SubscriptionEntry {
	out := make([]domain.SubscriptionEntry, 0, len(entries))
	for _, e := range entries {
		if e.Level != level {
			out = append(out, e)
		}
	}
	return out
}
