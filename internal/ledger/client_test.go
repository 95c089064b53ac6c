package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.ERROR)
}

func TestGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/boosts", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"count":42}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	count, err := client.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestGetBalanceMissingDataMeansZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	count, err := client.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGrantCreditsSendsPayload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/boosts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"data":{"count":10}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	err := client.GrantCredits(context.Background(), "user-1", 10, 3600)
	require.NoError(t, err)

	assert.Equal(t, "user-1", got["userId"])
	assert.Equal(t, float64(10), got["addN"])
	assert.Equal(t, float64(3600), got["ttlSeconds"])
}

func TestGrantCreditsValidatesLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())

	err := client.GrantCredits(context.Background(), "", 10, 3600)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	err = client.GrantCredits(context.Background(), "user-1", 0, 3600)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	err = client.GrantCredits(context.Background(), "user-1", 10, 0)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	assert.False(t, called)
}

func TestSpendSendsAutoTopUpFlag(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/boosts/spend", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	err := client.Spend(context.Background(), "user-1", 30, true)
	require.NoError(t, err)

	assert.Equal(t, "user-1", got["userId"])
	assert.Equal(t, float64(30), got["spendN"])
	assert.Equal(t, true, got["purchaseInsufficient"])
}

func TestSpendDeclineIsInsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	err := client.Spend(context.Background(), "user-1", 30, false)
	require.Error(t, err)
	assert.Equal(t, domain.KindInsufficientCredits, domain.KindOf(err))
}

func TestNonSuccessStatusIsLedgerUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())

	_, err := client.GetBalance(context.Background(), "user-1")
	assert.Equal(t, domain.KindLedgerUnavailable, domain.KindOf(err))

	err = client.Spend(context.Background(), "user-1", 1, true)
	assert.Equal(t, domain.KindLedgerUnavailable, domain.KindOf(err))
}

func TestTransportErrorIsLedgerUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	_, err := client.GetBalance(context.Background(), "user-1")
	assert.Equal(t, domain.KindLedgerUnavailable, domain.KindOf(err))
}

func TestMalformedResponseIsLedgerUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", testLogger())
	_, err := client.GetBalance(context.Background(), "user-1")
	assert.Equal(t, domain.KindLedgerUnavailable, domain.KindOf(err))
}
