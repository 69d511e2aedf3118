package models

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Product represents a purchasable item in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Currency  string    `db:"currency" json:"currency"`
	Available int       `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PurchasableRef identifies a purchasable by class and id, so non-product
// sellables (vouchers, shipping slots) can join an order through the same path.
type PurchasableRef struct {
	Type string `db:"purchasable_type" json:"purchasable_type"`
	ID   int64  `db:"purchasable_id" json:"purchasable_id"`
}

func (r PurchasableRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// PurchasableTypeProduct is the ref type for catalog products.
const PurchasableTypeProduct = "product"

// Order is the aggregate root: a cart while IsCart is true, a finalized
// order afterwards. CartLocked is the business lock taken for the duration
// of a checkout attempt; it is not a concurrency control.
type Order struct {
	ID         int64     `db:"id" json:"id"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	GuestToken string    `db:"guest_token" json:"-"`
	IsCart     bool      `db:"is_cart" json:"is_cart"`
	CartLocked bool      `db:"cart_locked" json:"cart_locked"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Items  []OrderItem `db:"-" json:"items"`
	AddOns []AddOn     `db:"-" json:"add_ons"`
}

// OrderItem is one purchasable within an order. UnitPrice is snapshotted
// from the catalog when the item first enters the cart.
type OrderItem struct {
	ID              int64  `db:"id" json:"id"`
	OrderID         int64  `db:"order_id" json:"order_id"`
	PurchasableType string `db:"purchasable_type" json:"purchasable_type"`
	PurchasableID   int64  `db:"purchasable_id" json:"purchasable_id"`
	Quantity        int    `db:"quantity" json:"quantity"`
	UnitPrice       int64  `db:"unit_price" json:"unit_price"`
	Currency        string `db:"currency" json:"currency"`

	AddOns []AddOn `db:"-" json:"add_ons"`
}

// Ref returns the item's purchasable reference.
func (i *OrderItem) Ref() PurchasableRef {
	return PurchasableRef{Type: i.PurchasableType, ID: i.PurchasableID}
}

// Payment represents a payment attempt against a finalized order
type Payment struct {
	ID           int64     `db:"id" json:"id"`
	OrderID      int64     `db:"order_id" json:"order_id"`
	Gateway      string    `db:"gateway" json:"gateway"`
	Status       string    `db:"status" json:"status"`
	ProviderTxID string    `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Amount       int64     `db:"amount" json:"amount"`
	Currency     string    `db:"currency" json:"currency"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses. Carts stay in CART until checkout finalizes them.
const (
	OrderStatusCart           = "CART"
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusRefunded       = "REFUNDED"
)

// Payment statuses
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusAuthorized = "AUTHORIZED"
	PaymentStatusCaptured   = "CAPTURED"
	PaymentStatusRefunded   = "REFUNDED"
	PaymentStatusFailed     = "FAILED"
)

// Payment gateways. Manual payments are recorded by an operator rather than
// taken through a provider.
const (
	GatewayMock   = "mock"
	GatewayManual = "manual"
)

// ErrOrderLocked marks every mutation rejected because the order's cart is
// locked or the order is finalized. Match with errors.Is.
var ErrOrderLocked = errors.New("order locked")

// LockedError reports which order (and item, when relevant) rejected a
// mutation. It unwraps to ErrOrderLocked.
type LockedError struct {
	OrderID     int64
	OrderItemID int64
}

func (e *LockedError) Error() string {
	if e.OrderItemID != 0 {
		return fmt.Sprintf("order %d is locked (item %d)", e.OrderID, e.OrderItemID)
	}
	return fmt.Sprintf("order %d is locked", e.OrderID)
}

func (e *LockedError) Unwrap() error { return ErrOrderLocked }

// IsMutable reports whether cart mutations are allowed: the order must still
// be a cart and the cart must not be locked. Finalized orders are permanently
// immutable through the cart API, whatever the lock flag says.
func (o *Order) IsMutable() bool {
	return o.IsCart && !o.CartLocked
}

// EnsureMutable returns a LockedError when the order rejects mutation.
func (o *Order) EnsureMutable() error {
	if o.IsMutable() {
		return nil
	}
	return &LockedError{OrderID: o.ID}
}

// IsEmpty reports whether the order has no items.
func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// IsGuest reports whether the order belongs to an unauthenticated customer.
func (o *Order) IsGuest() bool {
	return o.CustomerID == 0
}

// FindItem returns the item matching the purchasable ref, or nil.
func (o *Order) FindItem(ref PurchasableRef) *OrderItem {
	for idx := range o.Items {
		if o.Items[idx].PurchasableType == ref.Type && o.Items[idx].PurchasableID == ref.ID {
			return &o.Items[idx]
		}
	}
	return nil
}

// guestTokenBytes is the entropy of a guest token before encoding.
const guestTokenBytes = 16

// NewGuestToken generates the opaque bearer credential that lets an
// unauthenticated customer view their finalized order. Generated once at
// order creation and never rotated.
func NewGuestToken() (string, error) {
	buf := make([]byte, guestTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate guest token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
