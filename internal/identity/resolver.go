package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/internal/token"
	"github.com/exlearn/billing-service/pkg/logger"
)

// Display-name suffixes for freshly minted guest identities.
var anonymousSuffixes = []string{
	"Panda", "Zebra", "Puppy", "Cat", "Kitten", "Monarch", "Dog", "Pike",
	"Yak", "Woodchuck", "Squirrel", "Rabbit", "Bee", "Turtle", "Ant",
	"Tahr", "Starfish", "Tadpole", "Spider", "Monkey", "Beetle", "Fox",
	"Unicorn", "Possum", "Porcupine", "Peacock", "Papillon", "Parrot",
	"Penguin", "Dolphin", "Camel", "Aardvark", "Albatross", "Alpaca",
}

// TokenDecoder verifies a session credential and returns its claims.
type TokenDecoder interface {
	Decode(raw string) (*token.Claims, error)
}

// ResolvedIdentity is the resolver output. IsNewEphemeral signals the
// caller to issue a fresh session credential bound to the new user.
type ResolvedIdentity struct {
	User           domain.User
	IsNewEphemeral bool
}

// Resolver turns an optional session credential into a persisted
// identity, minting an ephemeral guest when the credential is missing,
// invalid, or references a user that no longer exists.
type Resolver struct {
	users     repository.UserRepository
	decoder   TokenDecoder
	avatarURL string
	log       *logger.Logger
}

// NewResolver creates an identity resolver.
func NewResolver(users repository.UserRepository, decoder TokenDecoder, demoAvatarURL string, log *logger.Logger) *Resolver {
	return &Resolver{
		users:     users,
		decoder:   decoder,
		avatarURL: demoAvatarURL,
		log:       log,
	}
}

// Resolve returns the identity for the raw credential, minting and
// persisting a demo user when needed. New identities are saved before
// they are returned so a token can safely be issued from the record.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (ResolvedIdentity, error) {
	if rawToken != "" {
		claims, err := r.decoder.Decode(rawToken)
		if err != nil {
			r.log.Debugw("Session credential rejected, minting guest identity", "error", err)
		} else {
			user, err := r.users.GetByID(ctx, claims.UserID)
			if err == nil {
				return ResolvedIdentity{User: user}, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return ResolvedIdentity{}, domain.Wrap(domain.KindInternal, "failed to load user", err)
			}
			r.log.Warnw("Session credential references a missing user", "user_id", claims.UserID)
		}
	}

	user, err := r.mintDemoUser(ctx)
	if err != nil {
		return ResolvedIdentity{}, err
	}
	return ResolvedIdentity{User: user, IsNewEphemeral: true}, nil
}

// mintDemoUser persists a fresh ephemeral guest identity.
func (r *Resolver) mintDemoUser(ctx context.Context) (domain.User, error) {
	user := domain.User{
		FullName:      fmt.Sprintf("Anonymous %s", anonymousSuffixes[rand.Intn(len(anonymousSuffixes))]),
		PrimaryLocale: "en",
		AvatarURL:     r.avatarURL,
		IsDemo:        true,
		IsVerified:    false,
		Subscription:  []domain.SubscriptionEntry{{Level: 1}},
	}

	created, err := r.users.Create(ctx, user)
	if err != nil {
		r.log.Errorw("Failed to persist guest identity", "error", err)
		return domain.User{}, domain.Wrap(domain.KindInternal, "an error occurred saving the user", err)
	}

	r.log.Debugw("Guest identity minted", "user_id", created.ID)
	return created, nil
}
