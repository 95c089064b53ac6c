package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOrderRepository stores orders and their items. Orders are
// append-only; there is no update path by design.
type PostgresOrderRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresOrderRepository creates an order repository over pgx.
func NewPostgresOrderRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db, log: log}
}

// FindByUserAndItemRef returns the order covering the dedup tuple, or nil
func (r *PostgresOrderRepository) FindByUserAndItemRef(ctx context.Context, userID string, category domain.ItemCategory, itemRefID string) (*domain.Order, error) {
	refKey := category.DedupRefKey()
	if refKey == "" || itemRefID == "" {
		return nil, nil
	}

	query := `
		SELECT o.id, o.user_id, o.payer_id, o.created_at
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE o.user_id = $1
		  AND i.item_category = $2
		  AND i.item_ref ->> $3 = $4
		LIMIT 1
	`

	var order domain.Order
	err := r.db.QueryRow(ctx, query, userID, string(category), refKey, itemRefID).Scan(
		&order.ID, &order.UserID, &order.PayerID, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order by item ref: %w", err)
	}

	items, err := r.itemsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// Insert appends an order and its items inside one transaction
func (r *PostgresOrderRepository) Insert(ctx context.Context, userID, payerID string, items []domain.OrderItem) (string, error) {
	orderID := uuid.NewString()
	now := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, payer_id, created_at) VALUES ($1, $2, $3, $4)`,
		orderID, userID, payerID, now,
	)
	if err != nil {
		r.log.Errorw("Failed to insert order", "order_id", orderID, "error", err)
		return "", fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range items {
		itemID := item.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		refBytes, err := json.Marshal(item.ItemRef)
		if err != nil {
			return "", fmt.Errorf("failed to encode item ref: %w", err)
		}
		optBytes, err := json.Marshal(item.Options)
		if err != nil {
			return "", fmt.Errorf("failed to encode item options: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, item_category, amount, quantity, item_ref, item_options, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			itemID, orderID, string(item.Category), item.Amount, item.Quantity, refBytes, optBytes, now,
		)
		if err != nil {
			r.log.Errorw("Failed to insert order item", "order_id", orderID, "error", err)
			return "", fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit order: %w", err)
	}

	r.log.Debugw("Order record inserted", "order_id", orderID, "user_id", userID)
	return orderID, nil
}

func (r *PostgresOrderRepository) itemsForOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, item_category, amount, quantity, item_ref, item_options, created_at
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var category string
		var refBytes, optBytes []byte

		if err := rows.Scan(&item.ID, &category, &item.Amount, &item.Quantity, &refBytes, &optBytes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Category = domain.ItemCategory(category)
		if len(refBytes) > 0 {
			if err := json.Unmarshal(refBytes, &item.ItemRef); err != nil {
				return nil, fmt.Errorf("failed to decode item ref: %w", err)
			}
		}
		if len(optBytes) > 0 {
			if err := json.Unmarshal(optBytes, &item.Options); err != nil {
				return nil, fmt.Errorf("failed to decode item options: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}
