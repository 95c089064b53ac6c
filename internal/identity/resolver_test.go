package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/internal/token"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAvatarURL = "https://avatars.example.com/demo.png"

func newTestResolver(t *testing.T) (*Resolver, *repository.InMemoryUserRepository, *token.Codec) {
	t.Helper()
	log := logger.New(logger.ERROR)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec := token.NewCodecFromKeys(priv)

	users := repository.NewInMemoryUserRepository(log)
	resolver := NewResolver(users, codec, testAvatarURL, log)
	return resolver, users, codec
}

func TestResolveEmptyTokenMintsGuest(t *testing.T) {
	resolver, users, _ := newTestResolver(t)

	resolved, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, resolved.IsNewEphemeral)
	assert.True(t, resolved.User.IsDemo)
	assert.True(t, strings.HasPrefix(resolved.User.FullName, "Anonymous "))
	assert.Equal(t, "en", resolved.User.PrimaryLocale)
	assert.Equal(t, testAvatarURL, resolved.User.AvatarURL)
	assert.NotEmpty(t, resolved.User.ID)

	// The guest is persisted, not just returned.
	stored, err := users.GetByID(context.Background(), resolved.User.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.User.FullName, stored.FullName)
}

func TestResolveValidTokenReturnsExistingUser(t *testing.T) {
	resolver, users, codec := newTestResolver(t)

	existing, err := users.Create(context.Background(), domain.User{
		FullName:     "Ada Lovelace",
		PrimaryEmail: "ada@example.com",
	})
	require.NoError(t, err)

	signed, err := codec.Issue(existing)
	require.NoError(t, err)

	resolved, err := resolver.Resolve(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, resolved.IsNewEphemeral)
	assert.Equal(t, existing.ID, resolved.User.ID)
	assert.Equal(t, "Ada Lovelace", resolved.User.FullName)
}

func TestResolveGarbageTokenMintsGuest(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	resolved, err := resolver.Resolve(context.Background(), "garbage.token.value")
	require.NoError(t, err)
	assert.True(t, resolved.IsNewEphemeral)
	assert.True(t, resolved.User.IsDemo)
}

func TestResolveTokenForDeletedUserMintsGuest(t *testing.T) {
	resolver, _, codec := newTestResolver(t)

	signed, err := codec.Issue(domain.User{ID: "gone-user"})
	require.NoError(t, err)

	resolved, err := resolver.Resolve(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, resolved.IsNewEphemeral)
	assert.NotEqual(t, "gone-user", resolved.User.ID)
}
