package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/models"
	"cart-service/internal/money"
)

func TestSummarizeCapturedIncludesManual(t *testing.T) {
	ps := NewPaymentSummaryService(&fakePayments{payments: []models.Payment{
		{Gateway: models.GatewayMock, Status: models.PaymentStatusCaptured, Amount: 1000, Currency: "NZD"},
		{Gateway: models.GatewayManual, Status: models.PaymentStatusCaptured, Amount: 500, Currency: "NZD"},
	}})

	summary, err := ps.Summarize(context.Background(), 1, "NZD")
	require.NoError(t, err)
	assert.Equal(t, money.New(1500, "NZD"), summary.TotalCaptured)
	assert.Equal(t, money.Zero("NZD"), summary.TotalAuthorized)
	assert.Equal(t, 2, summary.Attempts)
}

func TestSummarizeAuthorizedExcludesManual(t *testing.T) {
	ps := NewPaymentSummaryService(&fakePayments{payments: []models.Payment{
		{Gateway: models.GatewayMock, Status: models.PaymentStatusAuthorized, Amount: 1000, Currency: "NZD"},
		{Gateway: models.GatewayManual, Status: models.PaymentStatusAuthorized, Amount: 500, Currency: "NZD"},
	}})

	summary, err := ps.Summarize(context.Background(), 1, "NZD")
	require.NoError(t, err)
	assert.Equal(t, money.New(1000, "NZD"), summary.TotalAuthorized)
}

func TestSummarizeIgnoresFailedAndPending(t *testing.T) {
	ps := NewPaymentSummaryService(&fakePayments{payments: []models.Payment{
		{Gateway: models.GatewayMock, Status: models.PaymentStatusFailed, Amount: 1000, Currency: "NZD"},
		{Gateway: models.GatewayMock, Status: models.PaymentStatusPending, Amount: 1000, Currency: "NZD"},
	}})

	summary, err := ps.Summarize(context.Background(), 1, "NZD")
	require.NoError(t, err)
	assert.True(t, summary.TotalCaptured.IsZero())
	assert.True(t, summary.TotalAuthorized.IsZero())
	assert.Equal(t, 2, summary.Attempts)
}

func TestSummarizeMixedCurrenciesFail(t *testing.T) {
	ps := NewPaymentSummaryService(&fakePayments{payments: []models.Payment{
		{Gateway: models.GatewayMock, Status: models.PaymentStatusCaptured, Amount: 1000, Currency: "NZD"},
		{Gateway: models.GatewayMock, Status: models.PaymentStatusCaptured, Amount: 1000, Currency: "USD"},
	}})

	_, err := ps.Summarize(context.Background(), 1, "NZD")
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}
