package token

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/exlearn/billing-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewCodecFromKeys(priv)
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	user := domain.User{
		ID:            "user-1",
		FullName:      "Ada Lovelace",
		Username:      "ada",
		PrimaryEmail:  "ada@example.com",
		PrimaryLocale: "en",
		IsVerified:    true,
		Subscription:  []domain.SubscriptionEntry{{Level: 2000}},
	}

	signed, err := codec.Issue(user)
	require.NoError(t, err)

	claims, err := codec.Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Ada Lovelace", claims.FullName)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.IsVerified)
	require.Len(t, claims.Subscription, 1)
	assert.Equal(t, 2000, claims.Subscription[0].Level)
}

func TestIssueDefaultsFullName(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)

	claims, err := codec.Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", claims.FullName)
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	signed, err := other.Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = codec.Decode(signed)
	assert.Error(t, err)
}

func TestDecodeRejectsNonRSAAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).
		SignedString([]byte("hmac-secret"))
	require.NoError(t, err)

	_, err = codec.Decode(forged)
	assert.Error(t, err)
}

func TestDecodeRejectsMissingUserID(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{FullName: "No ID"}).
		SignedString(codec.priv)
	require.NoError(t, err)

	_, err = codec.Decode(signed)
	assert.Error(t, err)
}

func TestRawClaimsSegmentIsReadablePayload(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(domain.User{ID: "user-1", FullName: "Ada Lovelace"})
	require.NoError(t, err)

	segment := RawClaimsSegment(signed)
	require.NotEmpty(t, segment)

	decoded, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(decoded, &payload))
	assert.Equal(t, "user-1", payload["user_id"])

	assert.Empty(t, RawClaimsSegment("not-a-token"))
}
