package domain

import "time"

// SubscriptionEntry is one subscription-level record; the highest
// level across entries wins.
type SubscriptionEntry struct {
	Level int `json:"level"`
}

// PaymentProfile holds the external billing identity for a user.
// It is an immutable value: updates replace the whole struct.
type PaymentProfile struct {
	CustomerID        string `json:"customer_id"`
	CardSaved         bool   `json:"card_saved"`
	PreferredCurrency string `json:"preferred_ccy,omitempty"`
	CreditsSubID      string `json:"credits_sub_id,omitempty"`
	CreditsSubItemID  string `json:"credits_sub_item_id,omitempty"`
}

// Enrolled reports whether the profile can back metered credit purchases.
func (p PaymentProfile) Enrolled() bool {
	return p.CustomerID != "" && p.CreditsSubID != "" && p.CreditsSubItemID != ""
}

// User is a platform identity. Demo users are ephemeral guests minted
// on first anonymous access; a later login claims the record in place.
// Users are never hard-deleted.
type User struct {
	ID            string              `json:"id"`
	FullName      string              `json:"full_name"`
	Username      string              `json:"username,omitempty"`
	PrimaryEmail  string              `json:"primary_email,omitempty"`
	PrimaryLocale string              `json:"primary_locale"`
	AvatarURL     string              `json:"avatar_url"`
	IsDemo        bool                `json:"is_demo"`
	IsVerified    bool                `json:"is_verified"`
	Subscription  []SubscriptionEntry `json:"subscription"`
	Payment       *PaymentProfile     `json:"payment,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// HighestSubscriptionLevel returns the most privileged subscription
// level, or 0 when the user has none.
func (u User) HighestSubscriptionLevel() int {
	level := 0
	for _, s := range u.Subscription {
		if s.Level > level {
			level = s.Level
		}
	}
	return level
}

// HasContactEmail reports whether the user can be billed. Purchases
// are blocked for identities without a verifiable contact address,
// which is the platform's proxy for anonymous purchasers.
func (u User) HasContactEmail() bool {
	return u.PrimaryEmail != ""
}
