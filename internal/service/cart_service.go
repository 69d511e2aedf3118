package service

import (
	"context"
	"fmt"
	"time"

	"cart-service/internal/currency"
	"cart-service/internal/models"
	"cart-service/internal/money"
	"cart-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService owns every mutation of an order while it is a cart: item
// quantities, add-ons, the business lock, and finalization. Every mutation
// re-checks mutability against the freshly loaded order, so a locked or
// finalized order always rejects with models.ErrOrderLocked before any
// state is touched.
type CartService struct {
	repo     OrderRepository
	catalog  PurchasableCatalog
	events   CartEventPublisher
	currency *currency.Catalog
	rules    *models.AddOnRules
	logger   *zap.Logger
}

// NewCartService creates a new cart mutation service
func NewCartService(
	repo OrderRepository,
	catalog PurchasableCatalog,
	events CartEventPublisher,
	currencyCatalog *currency.Catalog,
	rules *models.AddOnRules,
) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		events:   events,
		currency: currencyCatalog,
		rules:    rules,
		logger:   util.GetLogger(),
	}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// CreateCart opens a new unlocked cart for a customer. customerID zero means
// a guest; either way the cart gets its guest token now, once, for good.
func (cs *CartService) CreateCart(ctx context.Context, customerID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CartService.CreateCart")
	defer span.End()

	token, err := models.NewGuestToken()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID: customerID,
		GuestToken: token,
		IsCart:     true,
		CartLocked: false,
		Status:     models.OrderStatusCart,
	}

	if err := cs.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	util.CartsCreatedTotal.Inc()
	cs.logger.Info("Cart created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID))

	event := &models.CartCreatedEvent{
		BaseEvent:  baseEvent(models.EventTypeCartCreated),
		OrderID:    order.ID,
		CustomerID: customerID,
	}
	if err := cs.events.PublishCartCreated(ctx, event); err != nil {
		cs.logger.Error("Failed to publish CartCreated event", zap.Error(err))
	}

	return order, nil
}

// GetOrder loads the full aggregate.
func (cs *CartService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return cs.repo.LoadOrder(ctx, orderID)
}

// SetPurchasableQuantity sets the absolute quantity of a purchasable in the
// cart. qty above availability fails validation; qty <= 0 removes the item
// (a no-op when the item is already absent). The unit price is snapshotted
// from the catalog when the item first enters the cart.
func (cs *CartService) SetPurchasableQuantity(ctx context.Context, orderID int64, ref models.PurchasableRef, qty int) error {
	ctx, span := util.StartSpan(ctx, "CartService.SetPurchasableQuantity")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := order.EnsureMutable(); err != nil {
		util.CartMutationsRejectedTotal.WithLabelValues("locked").Inc()
		return err
	}

	existing := order.FindItem(ref)

	if qty <= 0 {
		if existing == nil {
			return nil
		}
		if err := cs.repo.DeleteOrderItem(ctx, orderID, ref); err != nil {
			return fmt.Errorf("failed to remove item: %w", err)
		}
		util.CartMutationsTotal.WithLabelValues("remove_item").Inc()

		event := &models.CartItemRemovedEvent{
			BaseEvent:       baseEvent(models.EventTypeCartItemRemoved),
			OrderID:         orderID,
			PurchasableType: ref.Type,
			PurchasableID:   ref.ID,
		}
		if err := cs.events.PublishCartItemRemoved(ctx, event); err != nil {
			cs.logger.Error("Failed to publish CartItemRemoved event", zap.Error(err))
		}
		return nil
	}

	available, err := cs.catalog.GetAvailableCount(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	if qty > available {
		util.CartMutationsRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		return &QuantityError{Ref: ref, Requested: qty, Available: available}
	}

	var unitPrice money.Money
	if existing != nil {
		unitPrice = money.New(existing.UnitPrice, existing.Currency)
	} else {
		unitPrice, err = cs.catalog.GetUnitPrice(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to resolve unit price: %w", err)
		}
		if !cs.currency.Supports(unitPrice.Currency) {
			return fmt.Errorf("%s: %w", unitPrice.Currency, currency.ErrUnsupportedCurrency)
		}
	}

	item := &models.OrderItem{
		OrderID:         orderID,
		PurchasableType: ref.Type,
		PurchasableID:   ref.ID,
		Quantity:        qty,
		UnitPrice:       unitPrice.Amount,
		Currency:        unitPrice.Currency,
	}
	if existing != nil {
		item.ID = existing.ID
	}

	if err := cs.repo.UpsertOrderItem(ctx, item); err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("set_quantity").Inc()

	event := &models.CartItemSetEvent{
		BaseEvent:       baseEvent(models.EventTypeCartItemSet),
		OrderID:         orderID,
		PurchasableType: ref.Type,
		PurchasableID:   ref.ID,
		Quantity:        qty,
		UnitPrice:       item.UnitPrice,
		Currency:        item.Currency,
	}
	if err := cs.events.PublishCartItemSet(ctx, event); err != nil {
		cs.logger.Error("Failed to publish CartItemSet event", zap.Error(err))
	}

	return nil
}

// AddPurchasableQuantity adds delta units on top of whatever quantity the
// cart already holds, so adding 1 then 1 yields a single item at 2.
func (cs *CartService) AddPurchasableQuantity(ctx context.Context, orderID int64, ref models.PurchasableRef, delta int) error {
	ctx, span := util.StartSpan(ctx, "CartService.AddPurchasableQuantity")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := order.EnsureMutable(); err != nil {
		util.CartMutationsRejectedTotal.WithLabelValues("locked").Inc()
		return err
	}

	qty := delta
	if existing := order.FindItem(ref); existing != nil {
		qty += existing.Quantity
	}

	return cs.SetPurchasableQuantity(ctx, orderID, ref, qty)
}

// RemoveItem removes a purchasable from the cart. Idempotent.
func (cs *CartService) RemoveItem(ctx context.Context, orderID int64, ref models.PurchasableRef) error {
	return cs.SetPurchasableQuantity(ctx, orderID, ref, 0)
}

// AttachAddOn attaches an add-on to the order, or to one of its items when
// addOn.OrderItemID is set.
func (cs *CartService) AttachAddOn(ctx context.Context, orderID int64, addOn *models.AddOn) error {
	ctx, span := util.StartSpan(ctx, "CartService.AttachAddOn")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := order.EnsureMutable(); err != nil {
		util.CartMutationsRejectedTotal.WithLabelValues("locked").Inc()
		return err
	}

	if addOn.Currency != "" && !cs.currency.Supports(addOn.Currency) {
		return fmt.Errorf("%s: %w", addOn.Currency, currency.ErrUnsupportedCurrency)
	}

	addOn.OrderID = orderID
	if err := cs.repo.CreateAddOn(ctx, addOn); err != nil {
		return fmt.Errorf("failed to attach add-on: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("attach_addon").Inc()

	event := &models.AddOnChangedEvent{
		BaseEvent:   baseEvent(models.EventTypeAddOnAttached),
		OrderID:     orderID,
		OrderItemID: addOn.OrderItemID,
		AddOnID:     addOn.ID,
		AddOnType:   addOn.Type,
		Title:       addOn.Title,
	}
	if err := cs.events.PublishAddOnChanged(ctx, event); err != nil {
		cs.logger.Error("Failed to publish AddOnAttached event", zap.Error(err))
	}

	return nil
}

// DetachAddOn removes an add-on from the order.
func (cs *CartService) DetachAddOn(ctx context.Context, orderID, addOnID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.DetachAddOn")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := order.EnsureMutable(); err != nil {
		util.CartMutationsRejectedTotal.WithLabelValues("locked").Inc()
		return err
	}

	addOn, err := cs.repo.GetAddOn(ctx, addOnID)
	if err != nil {
		return err
	}

	if err := cs.repo.DeleteAddOn(ctx, orderID, addOnID); err != nil {
		return fmt.Errorf("failed to detach add-on: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("detach_addon").Inc()

	event := &models.AddOnChangedEvent{
		BaseEvent:   baseEvent(models.EventTypeAddOnDetached),
		OrderID:     orderID,
		OrderItemID: addOn.OrderItemID,
		AddOnID:     addOnID,
		AddOnType:   addOn.Type,
		Title:       addOn.Title,
	}
	if err := cs.events.PublishAddOnChanged(ctx, event); err != nil {
		cs.logger.Error("Failed to publish AddOnDetached event", zap.Error(err))
	}

	return nil
}

// SetAddOnActive toggles whether an attached add-on participates in totals.
func (cs *CartService) SetAddOnActive(ctx context.Context, orderID, addOnID int64, active bool) error {
	ctx, span := util.StartSpan(ctx, "CartService.SetAddOnActive")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := order.EnsureMutable(); err != nil {
		util.CartMutationsRejectedTotal.WithLabelValues("locked").Inc()
		return err
	}

	addOn, err := cs.repo.GetAddOn(ctx, addOnID)
	if err != nil {
		return err
	}
	if addOn.OrderID != orderID {
		return fmt.Errorf("add-on %d does not belong to order %d", addOnID, orderID)
	}
	if addOn.Active == active {
		return nil
	}

	if err := cs.repo.SetAddOnActive(ctx, addOnID, active); err != nil {
		return fmt.Errorf("failed to update add-on: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("update_addon").Inc()

	event := &models.AddOnChangedEvent{
		BaseEvent:   baseEvent(models.EventTypeAddOnUpdated),
		OrderID:     orderID,
		OrderItemID: addOn.OrderItemID,
		AddOnID:     addOnID,
		AddOnType:   addOn.Type,
		Title:       addOn.Title,
	}
	if err := cs.events.PublishAddOnChanged(ctx, event); err != nil {
		cs.logger.Error("Failed to publish AddOnUpdated event", zap.Error(err))
	}

	return nil
}

// ListCustomerOrders returns a customer's finalized orders, newest first.
// Carts are excluded: they are not orders yet.
func (cs *CartService) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ListCustomerOrders")
	defer span.End()

	orders, err := cs.repo.GetOrdersByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	finalized := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if !order.IsCart {
			finalized = append(finalized, order)
		}
	}
	return finalized, nil
}

// Lock takes the business lock for a checkout attempt. Locking an already
// locked cart is a no-op so starting checkout is retryable.
func (cs *CartService) Lock(ctx context.Context, orderID int64) error {
	return cs.setLockState(ctx, orderID, true)
}

// Unlock releases the business lock when a checkout attempt is abandoned.
// Unlocking an unlocked cart is a no-op.
func (cs *CartService) Unlock(ctx context.Context, orderID int64) error {
	return cs.setLockState(ctx, orderID, false)
}

func (cs *CartService) setLockState(ctx context.Context, orderID int64, locked bool) error {
	ctx, span := util.StartSpan(ctx, "CartService.setLockState")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.IsCart {
		// Finalized orders never leave the locked state through this API.
		return &models.LockedError{OrderID: orderID}
	}
	if order.CartLocked == locked {
		return nil
	}

	if err := cs.repo.SetCartLocked(ctx, orderID, locked); err != nil {
		return fmt.Errorf("failed to update lock state: %w", err)
	}

	state := "unlocked"
	if locked {
		state = "locked"
	}
	util.CartLockTransitionsTotal.WithLabelValues(state).Inc()
	cs.logger.Info("Cart lock state changed",
		zap.Int64("order_id", orderID),
		zap.Bool("locked", locked))

	eventType := models.EventTypeCartUnlocked
	if locked {
		eventType = models.EventTypeCartLocked
	}
	event := &models.CartLockStateEvent{
		BaseEvent: baseEvent(eventType),
		OrderID:   orderID,
		Locked:    locked,
	}
	if err := cs.events.PublishCartLockState(ctx, event); err != nil {
		cs.logger.Error("Failed to publish CartLockState event", zap.Error(err))
	}

	return nil
}

// Finalize turns the cart into an order: is_cart drops, the lock is set, and
// the order moves to PENDING_PAYMENT. The cart must not be empty. Finalizing
// an already finalized order is a no-op so checkout confirmation retries are
// safe.
func (cs *CartService) Finalize(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Finalize")
	defer span.End()

	order, err := cs.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsCart {
		return order, nil
	}
	if order.IsEmpty() {
		return nil, ErrEmptyCart
	}

	start := time.Now()
	total, err := order.Total(cs.rules, cs.currency.DefaultCurrency(), true, true)
	util.OrderTotalsLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to compute order total: %w", err)
	}

	if err := cs.repo.FinalizeOrder(ctx, orderID, models.OrderStatusPendingPayment); err != nil {
		return nil, fmt.Errorf("failed to finalize order: %w", err)
	}

	order.IsCart = false
	order.CartLocked = true
	order.Status = models.OrderStatusPendingPayment

	util.OrdersFinalizedTotal.Inc()
	cs.logger.Info("Order finalized",
		zap.Int64("order_id", orderID),
		zap.String("total", total.String()))

	event := &models.OrderFinalizedEvent{
		BaseEvent:   baseEvent(models.EventTypeOrderFinalized),
		OrderID:     orderID,
		CustomerID:  order.CustomerID,
		TotalAmount: total.Amount,
		Currency:    total.Currency,
		ItemCount:   len(order.Items),
	}
	if err := cs.events.PublishOrderFinalized(ctx, event); err != nil {
		cs.logger.Error("Failed to publish OrderFinalized event", zap.Error(err))
	}

	return order, nil
}

// Quote computes the order's totals for presentation.
type Quote struct {
	SubTotal money.Money `json:"sub_total"`
	Total    money.Money `json:"total"`
	IsEmpty  bool        `json:"is_empty"`
}

// QuoteOrder computes subtotal (item add-ons applied) and total (order and
// item add-ons applied) for an order.
func (cs *CartService) QuoteOrder(ctx context.Context, order *models.Order) (Quote, error) {
	_, span := util.StartSpan(ctx, "CartService.QuoteOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderTotalsLatency.Observe(time.Since(start).Seconds())
	}()

	defaultCurrency := cs.currency.DefaultCurrency()

	subTotal, err := order.SubTotal(cs.rules, defaultCurrency, true)
	if err != nil {
		return Quote{}, err
	}
	total, err := order.Total(cs.rules, defaultCurrency, true, true)
	if err != nil {
		return Quote{}, err
	}

	return Quote{SubTotal: subTotal, Total: total, IsEmpty: order.IsEmpty()}, nil
}
