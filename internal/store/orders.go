package store

import (
	"context"
	"database/sql"
	"fmt"

	"cart-service/internal/models"
)

// CreateOrder inserts a new cart order. The guest token must already be set.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, guest_token, is_cart, cart_locked, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.CustomerID, order.GuestToken, order.IsCart, order.CartLocked, order.Status)
}

// GetOrderByID retrieves an order row without its items or add-ons
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LoadOrder retrieves an order with its items and all attached add-ons.
func (s *Store) LoadOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	var addOns []models.AddOn
	if err := s.db.SelectContext(ctx, &addOns,
		"SELECT id, order_id, COALESCE(order_item_id, 0) AS order_item_id, addon_type, title, priority, amount, currency, active, position, created_at FROM add_ons WHERE order_id = $1 ORDER BY position, id", id); err != nil {
		return nil, fmt.Errorf("failed to load add-ons: %w", err)
	}

	itemsByID := make(map[int64]*models.OrderItem, len(order.Items))
	for idx := range order.Items {
		itemsByID[order.Items[idx].ID] = &order.Items[idx]
	}
	for _, addOn := range addOns {
		if addOn.OrderItemID == 0 {
			order.AddOns = append(order.AddOns, addOn)
		} else if item, ok := itemsByID[addOn.OrderItemID]; ok {
			item.AddOns = append(item.AddOns, addOn)
		}
	}

	return order, nil
}

// GetOrdersByCustomerID retrieves orders for a customer
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// SetCartLocked flips the business lock on a cart.
func (s *Store) SetCartLocked(ctx context.Context, orderID int64, locked bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET cart_locked = $1, updated_at = NOW() WHERE id = $2",
		locked, orderID)
	return err
}

// FinalizeOrder turns a cart into a finalized order: is_cart cleared, lock
// set, status moved in a single statement so no intermediate state is visible.
func (s *Store) FinalizeOrder(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET is_cart = FALSE, cart_locked = TRUE, status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// UpsertOrderItem creates the item or replaces its quantity for an existing
// purchasable within the order.
func (s *Store) UpsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, purchasable_type, purchasable_id, quantity, unit_price, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, purchasable_type, purchasable_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.PurchasableType, item.PurchasableID,
		item.Quantity, item.UnitPrice, item.Currency)
}

// DeleteOrderItem removes an item and cascades to its add-ons. Deleting an
// absent item is a no-op.
func (s *Store) DeleteOrderItem(ctx context.Context, orderID int64, ref models.PurchasableRef) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1 AND purchasable_type = $2 AND purchasable_id = $3",
		orderID, ref.Type, ref.ID)
	return err
}

// CreateAddOn attaches an add-on to an order or order item. Position is
// assigned from the current attachment count so application order is stable.
func (s *Store) CreateAddOn(ctx context.Context, addOn *models.AddOn) error {
	query := `
		INSERT INTO add_ons (order_id, order_item_id, addon_type, title, priority, amount, currency, active, position)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8,
			(SELECT COUNT(*) FROM add_ons WHERE order_id = $1))
		RETURNING id, position, created_at`

	return s.db.GetContext(ctx, addOn, query,
		addOn.OrderID, addOn.OrderItemID, addOn.Type, addOn.Title,
		addOn.Priority, addOn.Amount, addOn.Currency, addOn.Active)
}

// GetAddOn retrieves an add-on by ID
func (s *Store) GetAddOn(ctx context.Context, id int64) (*models.AddOn, error) {
	var addOn models.AddOn
	err := s.db.GetContext(ctx, &addOn,
		"SELECT id, order_id, COALESCE(order_item_id, 0) AS order_item_id, addon_type, title, priority, amount, currency, active, position, created_at FROM add_ons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("add-on %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &addOn, nil
}

// DeleteAddOn detaches an add-on from its owner.
func (s *Store) DeleteAddOn(ctx context.Context, orderID, addOnID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM add_ons WHERE id = $1 AND order_id = $2", addOnID, orderID)
	return err
}

// SetAddOnActive toggles an add-on without removing it; totals re-check the
// flag at computation time.
func (s *Store) SetAddOnActive(ctx context.Context, addOnID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE add_ons SET active = $1 WHERE id = $2", active, addOnID)
	return err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, gateway, status, provider_tx_id, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.Gateway, payment.Status,
		payment.ProviderTxID, payment.Amount, payment.Currency)
}

// GetPaymentsByOrderID retrieves all payment attempts for an order
func (s *Store) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at", orderID)
	return payments, err
}

// UpdatePaymentStatus updates payment status
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, provider_tx_id = $2, updated_at = NOW() WHERE id = $3",
		status, providerTxID, paymentID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
