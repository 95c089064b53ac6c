package repository

import (
	"context"
	"sync"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/google/uuid"
)

// OrderRepository is the append-only order store. FindByUserAndItemRef
// is the idempotency check that guards against double debits for
// one-time purchase categories.
type OrderRepository interface {
	// FindByUserAndItemRef returns the order covering (user, category,
	// ref id), or nil when none exists.
	FindByUserAndItemRef(ctx context.Context, userID string, category domain.ItemCategory, itemRefID string) (*domain.Order, error)
	// Insert appends a new order and returns its fresh ID.
	Insert(ctx context.Context, userID, payerID string, items []domain.OrderItem) (string, error)
}

// InMemoryOrderRepository is a mutex-guarded in-memory implementation.
type InMemoryOrderRepository struct {
	orders map[string]domain.Order
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryOrderRepository creates an empty in-memory order repository.
func NewInMemoryOrderRepository(log *logger.Logger) *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[string]domain.Order),
		log:    log,
	}
}

// FindByUserAndItemRef scans for an order matching the dedup tuple
func (r *InMemoryOrderRepository) FindByUserAndItemRef(ctx context.Context, userID string, category domain.ItemCategory, itemRefID string) (*domain.Order, error) {
	refKey := category.DedupRefKey()
	if refKey == "" || itemRefID == "" {
		return nil, nil
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		for _, item := range order.Items {
			if item.Category == category && item.ItemRef[refKey] == itemRefID {
				found := order
				return &found, nil
			}
		}
	}
	return nil, nil
}

// Insert appends an order with a fresh URL-safe ID
func (r *InMemoryOrderRepository) Insert(ctx context.Context, userID, payerID string, items []domain.OrderItem) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		PayerID:   payerID,
		Items:     make([]domain.OrderItem, len(items)),
		CreatedAt: now,
	}
	copy(order.Items, items)
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].CreatedAt = now
	}

	r.orders[order.ID] = order
	r.log.Debugw("Order record inserted", "order_id", order.ID, "user_id", userID)
	return order.ID, nil
}
