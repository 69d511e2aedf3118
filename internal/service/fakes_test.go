package service

import (
	"context"
	"fmt"
	"sync"

	"cart-service/internal/models"
	"cart-service/internal/money"
)

// fakeRepo is an in-memory OrderRepository for unit tests.
type fakeRepo struct {
	mu         sync.Mutex
	orders     map[int64]*models.Order
	nextID     int64
	nextItemID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[int64]*models.Order)}
}

func (r *fakeRepo) CreateOrder(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeRepo) LoadOrder(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: not found", id)
	}
	clone := *order
	clone.Items = append([]models.OrderItem(nil), order.Items...)
	clone.AddOns = append([]models.AddOn(nil), order.AddOns...)
	return &clone, nil
}

func (r *fakeRepo) GetOrdersByCustomerID(_ context.Context, customerID int64) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var orders []models.Order
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (r *fakeRepo) SetCartLocked(_ context.Context, orderID int64, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderID].CartLocked = locked
	return nil
}

func (r *fakeRepo) FinalizeOrder(_ context.Context, orderID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[orderID]
	order.IsCart = false
	order.CartLocked = true
	order.Status = status
	return nil
}

func (r *fakeRepo) UpsertOrderItem(_ context.Context, item *models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[item.OrderID]
	for idx := range order.Items {
		if order.Items[idx].PurchasableType == item.PurchasableType &&
			order.Items[idx].PurchasableID == item.PurchasableID {
			order.Items[idx].Quantity = item.Quantity
			item.ID = order.Items[idx].ID
			return nil
		}
	}
	r.nextItemID++
	item.ID = r.nextItemID
	order.Items = append(order.Items, *item)
	return nil
}

func (r *fakeRepo) DeleteOrderItem(_ context.Context, orderID int64, ref models.PurchasableRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[orderID]
	for idx := range order.Items {
		if order.Items[idx].PurchasableType == ref.Type && order.Items[idx].PurchasableID == ref.ID {
			order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRepo) CreateAddOn(_ context.Context, addOn *models.AddOn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[addOn.OrderID]
	r.nextItemID++
	addOn.ID = r.nextItemID
	addOn.Position = len(order.AddOns)
	order.AddOns = append(order.AddOns, *addOn)
	return nil
}

func (r *fakeRepo) GetAddOn(_ context.Context, id int64) (*models.AddOn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		for idx := range order.AddOns {
			if order.AddOns[idx].ID == id {
				clone := order.AddOns[idx]
				return &clone, nil
			}
		}
	}
	return nil, fmt.Errorf("add-on %d: not found", id)
}

func (r *fakeRepo) DeleteAddOn(_ context.Context, orderID, addOnID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[orderID]
	for idx := range order.AddOns {
		if order.AddOns[idx].ID == addOnID {
			order.AddOns = append(order.AddOns[:idx], order.AddOns[idx+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRepo) SetAddOnActive(_ context.Context, addOnID int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		for idx := range order.AddOns {
			if order.AddOns[idx].ID == addOnID {
				order.AddOns[idx].Active = active
				return nil
			}
		}
	}
	return fmt.Errorf("add-on %d: not found", addOnID)
}

// fakeCatalog serves fixed prices and availability.
type fakeCatalog struct {
	prices    map[int64]money.Money
	available map[int64]int
}

func (c *fakeCatalog) GetUnitPrice(_ context.Context, ref models.PurchasableRef) (money.Money, error) {
	price, ok := c.prices[ref.ID]
	if !ok {
		return money.Money{}, fmt.Errorf("purchasable %s: not found", ref)
	}
	return price, nil
}

func (c *fakeCatalog) GetAvailableCount(_ context.Context, ref models.PurchasableRef) (int, error) {
	return c.available[ref.ID], nil
}

// fakeEvents records published events by type.
type fakeEvents struct {
	mu        sync.Mutex
	published []string
}

func (e *fakeEvents) record(eventType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append(e.published, eventType)
}

func (e *fakeEvents) PublishCartCreated(_ context.Context, ev *models.CartCreatedEvent) error {
	e.record(ev.EventType)
	return nil
}

func (e *fakeEvents) PublishCartItemSet(_ context.Context, ev *models.CartItemSetEvent) error {
	e.record(ev.EventType)
	return nil
}

func (e *fakeEvents) PublishCartItemRemoved(_ context.Context, ev *models.CartItemRemovedEvent) error {
	e.record(ev.EventType)
	return nil
}

func (e *fakeEvents) PublishAddOnChanged(_ context.Context, ev *models.AddOnChangedEvent) error {
	e.record(ev.EventType)
	return nil
}

func (e *fakeEvents) PublishCartLockState(_ context.Context, ev *models.CartLockStateEvent) error {
	e.record(ev.EventType)
	return nil
}

func (e *fakeEvents) PublishOrderFinalized(_ context.Context, ev *models.OrderFinalizedEvent) error {
	e.record(ev.EventType)
	return nil
}

// fakePayments serves a fixed payments list.
type fakePayments struct {
	payments []models.Payment
}

func (p *fakePayments) GetPaymentsByOrderID(_ context.Context, _ int64) ([]models.Payment, error) {
	return p.payments, nil
}
