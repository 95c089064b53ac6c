package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserRepository stores users with the subscription list and
// payment profile as JSONB columns, replaced whole on every write.
type PostgresUserRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresUserRepository creates a user repository over pgx.
func NewPostgresUserRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, log: log}
}

// GetByID returns a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `
		SELECT id, full_name, username, primary_email, primary_locale, avatar_url,
		       is_demo, is_verified, subscription, payment, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user domain.User
	var subscriptionBytes, paymentBytes []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.FullName,
		&user.Username,
		&user.PrimaryEmail,
		&user.PrimaryLocale,
		&user.AvatarURL,
		&user.IsDemo,
		&user.IsVerified,
		&subscriptionBytes,
		&paymentBytes,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, repository.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if len(subscriptionBytes) > 0 {
		if err := json.Unmarshal(subscriptionBytes, &user.Subscription); err != nil {
			return domain.User{}, fmt.Errorf("failed to decode subscription: %w", err)
		}
	}
	if len(paymentBytes) > 0 {
		var profile domain.PaymentProfile
		if err := json.Unmarshal(paymentBytes, &profile); err != nil {
			return domain.User{}, fmt.Errorf("failed to decode payment profile: %w", err)
		}
		user.Payment = &profile
	}

	return user, nil
}

// Create inserts a new user record
func (r *PostgresUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	subscriptionBytes, paymentBytes, err := encodeEmbedded(user)
	if err != nil {
		return domain.User{}, err
	}

	query := `
		INSERT INTO users (id, full_name, username, primary_email, primary_locale, avatar_url,
		                   is_demo, is_verified, subscription, payment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Exec(ctx, query,
		user.ID, user.FullName, user.Username, user.PrimaryEmail, user.PrimaryLocale,
		user.AvatarURL, user.IsDemo, user.IsVerified, subscriptionBytes, paymentBytes,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		r.log.Errorw("Failed to insert user", "user_id", user.ID, "error", err)
		return domain.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// Update replaces an existing user record
func (r *PostgresUserRepository) Update(ctx context.Context, user domain.User) error {
	subscriptionBytes, paymentBytes, err := encodeEmbedded(user)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET full_name = $2, username = $3, primary_email = $4, primary_locale = $5,
		    avatar_url = $6, is_demo = $7, is_verified = $8, subscription = $9,
		    payment = $10, updated_at = $11
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		user.ID, user.FullName, user.Username, user.PrimaryEmail, user.PrimaryLocale,
		user.AvatarURL, user.IsDemo, user.IsVerified, subscriptionBytes, paymentBytes,
		time.Now(),
	)
	if err != nil {
		r.log.Errorw("Failed to update user", "user_id", user.ID, "error", err)
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func encodeEmbedded(user domain.User) (subscription, payment []byte, err error) {
	subscription, err = json.Marshal(user.Subscription)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	if user.Payment != nil {
		payment, err = json.Marshal(user.Payment)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode payment profile: %w", err)
		}
	}
	return subscription, payment, nil
}
