package domain

import "time"

// OrderItem is a single line of a committed order. Amount is the
// price resolved at purchase time, in whole credits, frozen into the
// record.
type OrderItem struct {
	ID        string            `json:"id"`
	Category  ItemCategory      `json:"item_category"`
	Amount    int64             `json:"amount"`
	Quantity  int               `json:"quantity"`
	ItemRef   map[string]string `json:"item_ref"`
	Options   map[string]string `json:"item_options,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Order is the durable record of a committed purchase. Orders are
// append-only: once written they are never mutated.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	PayerID   string      `json:"payer_id"`
	Items     []OrderItem `json:"order_items"`
	CreatedAt time.Time   `json:"created_at"`
}

// ResolvedPrice is the catalog resolver's output for one item.
type ResolvedPrice struct {
	Amount      int64
	Quantity    int
	Description string
}
