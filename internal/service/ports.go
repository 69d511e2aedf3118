package service

import (
	"context"
	"errors"
	"fmt"

	"cart-service/internal/models"
	"cart-service/internal/money"
)

// OrderRepository is the persistence surface the cart service needs. The
// sqlx store satisfies it; tests use an in-memory fake.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	LoadOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
	SetCartLocked(ctx context.Context, orderID int64, locked bool) error
	FinalizeOrder(ctx context.Context, orderID int64, status string) error
	UpsertOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, orderID int64, ref models.PurchasableRef) error
	CreateAddOn(ctx context.Context, addOn *models.AddOn) error
	GetAddOn(ctx context.Context, id int64) (*models.AddOn, error)
	DeleteAddOn(ctx context.Context, orderID, addOnID int64) error
	SetAddOnActive(ctx context.Context, addOnID int64, active bool) error
}

// PurchasableCatalog resolves a purchasable ref to its price and
// availability. The core never creates purchasables, it only reads them.
type PurchasableCatalog interface {
	GetUnitPrice(ctx context.Context, ref models.PurchasableRef) (money.Money, error)
	GetAvailableCount(ctx context.Context, ref models.PurchasableRef) (int, error)
}

// CartEventPublisher receives the cart lifecycle events the service emits.
type CartEventPublisher interface {
	PublishCartCreated(ctx context.Context, event *models.CartCreatedEvent) error
	PublishCartItemSet(ctx context.Context, event *models.CartItemSetEvent) error
	PublishCartItemRemoved(ctx context.Context, event *models.CartItemRemovedEvent) error
	PublishAddOnChanged(ctx context.Context, event *models.AddOnChangedEvent) error
	PublishCartLockState(ctx context.Context, event *models.CartLockStateEvent) error
	PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error
}

// PaymentReader exposes the read-only payments list the payment summary
// walks. Kept separate from OrderRepository so summaries cannot write.
type PaymentReader interface {
	GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error)
}

// ErrQuantityExceedsAvailable marks a quantity request beyond the
// purchasable's available count. Validation feedback, not a fault.
var ErrQuantityExceedsAvailable = errors.New("quantity exceeds available stock")

// QuantityError carries the details behind ErrQuantityExceedsAvailable.
type QuantityError struct {
	Ref       models.PurchasableRef
	Requested int
	Available int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", e.Ref, e.Requested, e.Available)
}

func (e *QuantityError) Unwrap() error { return ErrQuantityExceedsAvailable }

// ErrEmptyCart is returned when finalizing a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// ErrNotRefundable is returned when refunding an order that is not paid.
var ErrNotRefundable = errors.New("order is not refundable")
