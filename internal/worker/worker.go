package worker

import (
	"context"

	"cart-service/internal/broker"
	"cart-service/internal/service"
	"cart-service/internal/util"
)

// CheckoutWorker consumes order lifecycle events and drives the checkout
// flow: payment after finalization, stock commit after payment success,
// cancellation after payment failure.
type CheckoutWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewCheckoutWorker creates a new checkout worker
func NewCheckoutWorker(
	consumer *broker.Consumer,
	orchestrator *service.CheckoutOrchestrator,
) *CheckoutWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderFinalized(orchestrator.HandleOrderFinalized)
	eventHandler.OnPaymentSuccess(orchestrator.HandlePaymentSuccess)
	eventHandler.OnPaymentFailed(orchestrator.HandlePaymentFailed)

	return &CheckoutWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *CheckoutWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting checkout worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CheckoutWorker) Stop() error {
	util.GetLogger().Info("Stopping checkout worker...")
	return w.consumer.Close()
}
