package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"
)

const (
	apiKeyHeader   = "x-api-key"
	requestTimeout = 10 * time.Second
)

// Client is the interface to the external credit-balance service. It
// is the single source of truth for balances; no local mirror is kept.
//
// Spend is at-most-once from the caller's perspective: there is no
// dedup key and no retry here. Duplicate-debit protection lives in the
// order repository's idempotency check one layer up.
type Client interface {
	// GetBalance returns the user's spendable credit count.
	GetBalance(ctx context.Context, userID string) (int64, error)
	// GrantCredits adds credits with a TTL in seconds.
	GrantCredits(ctx context.Context, userID string, amount, ttlSeconds int64) error
	// Spend debits credits. With allowAutoTopUp the remote service may
	// auto-purchase the shortfall instead of declining.
	Spend(ctx context.Context, userID string, amount int64, allowAutoTopUp bool) error
}

// envelope is the bot-manager response shape: {success, data?}.
type envelope struct {
	Success bool `json:"success"`
	Data    *struct {
		Count int64 `json:"count"`
	} `json:"data,omitempty"`
}

type httpClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     *logger.Logger
}

// NewHTTPClient creates a ledger client against the bot-manager API.
func NewHTTPClient(baseURL, apiKey string, log *logger.Logger) Client {
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

func (c *httpClient) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.E(domain.KindBadRequest, "get balance requires a user id")
	}

	endpoint := c.baseURL + "/v1/boosts?userId=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, domain.Wrap(domain.KindLedgerUnavailable, "credit ledger unavailable", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	env, err := c.do(req)
	if err != nil {
		return 0, err
	}
	if !env.Success {
		c.log.Warnw("Ledger reported failure on balance lookup", "user_id", userID)
		return 0, domain.E(domain.KindLedgerUnavailable, "failed to get credits for user")
	}
	if env.Data == nil {
		return 0, nil
	}
	return env.Data.Count, nil
}

func (c *httpClient) GrantCredits(ctx context.Context, userID string, amount, ttlSeconds int64) error {
	if userID == "" || amount <= 0 || ttlSeconds <= 0 {
		return domain.E(domain.KindBadRequest, "grant credits requires a user id, a positive amount and a positive ttl")
	}

	payload := map[string]interface{}{
		"userId":     userID,
		"addN":       amount,
		"ttlSeconds": ttlSeconds,
	}
	env, err := c.post(ctx, "/v1/boosts", payload)
	if err != nil {
		return err
	}
	if !env.Success {
		c.log.Warnw("Ledger declined credit grant", "user_id", userID, "amount", amount)
		return domain.E(domain.KindLedgerUnavailable, "failed to create credits for user")
	}

	c.log.Debugw("Credits granted", "user_id", userID, "amount", amount, "ttl_seconds", ttlSeconds)
	return nil
}

func (c *httpClient) Spend(ctx context.Context, userID string, amount int64, allowAutoTopUp bool) error {
	if userID == "" || amount <= 0 {
		return domain.E(domain.KindBadRequest, "spend requires a user id and a positive amount")
	}

	payload := map[string]interface{}{
		"userId":               userID,
		"spendN":               amount,
		"purchaseInsufficient": allowAutoTopUp,
	}
	env, err := c.post(ctx, "/v1/boosts/spend", payload)
	if err != nil {
		return err
	}
	if !env.Success {
		c.log.Warnw("Ledger declined spend", "user_id", userID, "amount", amount, "auto_top_up", allowAutoTopUp)
		return domain.E(domain.KindInsufficientCredits, "insufficient credits")
	}

	c.log.Debugw("Credits spent", "user_id", userID, "amount", amount)
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, payload map[string]interface{}) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to encode ledger request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, domain.Wrap(domain.KindLedgerUnavailable, "credit ledger unavailable", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	return c.do(req)
}

func (c *httpClient) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Errorw("Ledger request failed", "url", req.URL.String(), "error", err)
		return nil, domain.Wrap(domain.KindLedgerUnavailable, "credit ledger unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorw("Ledger returned non-success status", "url", req.URL.String(), "status", resp.StatusCode)
		return nil, domain.E(domain.KindLedgerUnavailable,
			fmt.Sprintf("credit ledger returned status %d", resp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, domain.Wrap(domain.KindLedgerUnavailable, "credit ledger returned a malformed response", err)
	}
	return &env, nil
}
