package service

import (
	"context"

	"cart-service/internal/models"
	"cart-service/internal/money"
)

// PaymentSummary aggregates a single order's payment attempts.
type PaymentSummary struct {
	TotalCaptured   money.Money `json:"total_captured"`
	TotalAuthorized money.Money `json:"total_authorized"`
	Attempts        int         `json:"attempts"`
}

// PaymentSummaryService computes payment summaries from the read-only
// payments list. It never writes; capturing and refunding happen elsewhere.
type PaymentSummaryService struct {
	payments PaymentReader
}

// NewPaymentSummaryService creates a new payment summary service
func NewPaymentSummaryService(payments PaymentReader) *PaymentSummaryService {
	return &PaymentSummaryService{payments: payments}
}

// Summarize walks the order's payments. Captured totals include manual
// gateway payments; authorized totals exclude them, since a manual
// authorization is an operator's note rather than a provider's hold.
func (ps *PaymentSummaryService) Summarize(ctx context.Context, orderID int64, fallbackCurrency string) (PaymentSummary, error) {
	payments, err := ps.payments.GetPaymentsByOrderID(ctx, orderID)
	if err != nil {
		return PaymentSummary{}, err
	}

	var captured, authorized money.Accumulator
	for _, p := range payments {
		amount := money.New(p.Amount, p.Currency)
		switch p.Status {
		case models.PaymentStatusCaptured:
			if err := captured.Add(amount); err != nil {
				return PaymentSummary{}, err
			}
		case models.PaymentStatusAuthorized:
			if p.Gateway == models.GatewayManual {
				continue
			}
			if err := authorized.Add(amount); err != nil {
				return PaymentSummary{}, err
			}
		}
	}

	return PaymentSummary{
		TotalCaptured:   captured.Value(fallbackCurrency),
		TotalAuthorized: authorized.Value(fallbackCurrency),
		Attempts:        len(payments),
	}, nil
}
