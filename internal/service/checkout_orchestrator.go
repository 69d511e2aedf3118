package service

import (
	"context"
	"fmt"

	"cart-service/internal/broker"
	"cart-service/internal/models"
	"cart-service/internal/store"
	"cart-service/internal/util"

	"go.uber.org/zap"
)

// CheckoutOrchestrator reacts to the events that follow finalization: it
// kicks off payment for finalized orders and settles the order status (and
// product stock) on the payment outcome. Event handling is idempotent via
// the processed_events table.
type CheckoutOrchestrator struct {
	store          *store.Store
	catalogClient  *PurchasableClient
	paymentService *PaymentService
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewCheckoutOrchestrator creates a new checkout orchestrator
func NewCheckoutOrchestrator(
	store *store.Store,
	catalogClient *PurchasableClient,
	paymentService *PaymentService,
	eventPublisher *broker.EventPublisher,
) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		store:          store,
		catalogClient:  catalogClient,
		paymentService: paymentService,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// HandleOrderFinalized starts payment processing for a freshly finalized order
func (co *CheckoutOrchestrator) HandleOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.HandleOrderFinalized")
	defer span.End()

	processed, err := co.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		co.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	co.logger.Info("Starting payment for finalized order",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("total", event.TotalAmount))

	if err := co.paymentService.ProcessPayment(ctx, event.OrderID, event.TotalAmount, event.Currency); err != nil {
		return fmt.Errorf("payment processing failed: %w", err)
	}

	if err := co.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		co.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// HandlePaymentSuccess marks the order paid and commits sold stock
func (co *CheckoutOrchestrator) HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.HandlePaymentSuccess")
	defer span.End()

	processed, err := co.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		co.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	co.logger.Info("Handling payment success",
		zap.Int64("order_id", event.OrderID),
		zap.String("tx_id", event.TxID))

	if err := co.store.UpdateOrderStatus(ctx, event.OrderID, models.OrderStatusPaid); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	order, err := co.store.LoadOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}

	for _, item := range order.Items {
		if err := co.catalogClient.CommitStock(ctx, item.Ref(), item.Quantity); err != nil {
			co.logger.Error("Failed to commit stock",
				zap.Int64("purchasable_id", item.PurchasableID),
				zap.Error(err))
		}
	}

	if err := co.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		co.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	co.logger.Info("Order paid", zap.Int64("order_id", event.OrderID))
	return nil
}

// RefundOrder reverses a paid order: the status moves to REFUNDED, captured
// payments are marked refunded, and sold stock goes back on the shelf.
func (co *CheckoutOrchestrator) RefundOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.RefundOrder")
	defer span.End()

	order, err := co.store.LoadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPaid {
		return fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrNotRefundable)
	}

	if err := co.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusRefunded); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	payments, err := co.store.GetPaymentsByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	for _, payment := range payments {
		if payment.Status != models.PaymentStatusCaptured {
			continue
		}
		if err := co.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusRefunded, payment.ProviderTxID); err != nil {
			co.logger.Error("Failed to mark payment refunded",
				zap.Int64("payment_id", payment.ID),
				zap.Error(err))
		}
	}

	for _, item := range order.Items {
		if err := co.catalogClient.RestoreStock(ctx, item.Ref(), item.Quantity); err != nil {
			co.logger.Error("Failed to restore stock",
				zap.Int64("purchasable_id", item.PurchasableID),
				zap.Error(err))
		}
	}

	co.logger.Info("Order refunded", zap.Int64("order_id", orderID))
	return nil
}

// HandlePaymentFailed cancels the order after a failed payment attempt
func (co *CheckoutOrchestrator) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.HandlePaymentFailed")
	defer span.End()

	processed, err := co.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		co.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	co.logger.Warn("Handling payment failure",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	if err := co.store.UpdateOrderStatus(ctx, event.OrderID, models.OrderStatusCancelled); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := co.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		co.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	co.logger.Info("Order cancelled after failed payment", zap.Int64("order_id", event.OrderID))
	return nil
}
