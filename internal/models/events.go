package models

import "time"

// Event types
const (
	EventTypeCartCreated     = "CART_CREATED"
	EventTypeCartItemSet     = "CART_ITEM_SET"
	EventTypeCartItemRemoved = "CART_ITEM_REMOVED"
	EventTypeAddOnAttached   = "CART_ADDON_ATTACHED"
	EventTypeAddOnDetached   = "CART_ADDON_DETACHED"
	EventTypeAddOnUpdated    = "CART_ADDON_UPDATED"
	EventTypeCartLocked      = "CART_LOCKED"
	EventTypeCartUnlocked    = "CART_UNLOCKED"
	EventTypeOrderFinalized  = "ORDER_FINALIZED"
	EventTypePaymentSuccess  = "PAYMENT_SUCCESS"
	EventTypePaymentFailed   = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartCreatedEvent published when a new cart is opened
type CartCreatedEvent struct {
	BaseEvent
	OrderID    int64 `json:"order_id"`
	CustomerID int64 `json:"customer_id"`
}

// CartItemSetEvent published when an item quantity is created or changed
type CartItemSetEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	PurchasableType string `json:"purchasable_type"`
	PurchasableID   int64  `json:"purchasable_id"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	Currency        string `json:"currency"`
}

// CartItemRemovedEvent published when an item is removed from a cart
type CartItemRemovedEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	PurchasableType string `json:"purchasable_type"`
	PurchasableID   int64  `json:"purchasable_id"`
}

// AddOnChangedEvent published when an add-on is attached or detached
type AddOnChangedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderItemID int64  `json:"order_item_id,omitempty"`
	AddOnID     int64  `json:"addon_id"`
	AddOnType   string `json:"addon_type"`
	Title       string `json:"title"`
}

// CartLockStateEvent published on lock and unlock transitions
type CartLockStateEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	Locked  bool  `json:"locked"`
}

// OrderFinalizedEvent published when a cart becomes a finalized order
type OrderFinalizedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	CustomerID  int64  `json:"customer_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
	ItemCount   int    `json:"item_count"`
}

// PaymentSuccessEvent published when a payment attempt succeeds
type PaymentSuccessEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	TxID      string `json:"tx_id"`
}

// PaymentFailedEvent published when a payment attempt fails
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Reason    string `json:"reason"`
}
