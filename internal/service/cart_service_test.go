package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/currency"
	"cart-service/internal/models"
	"cart-service/internal/money"
)

func newTestCartService(t *testing.T) (*CartService, *fakeRepo, *fakeEvents) {
	t.Helper()

	catalog, err := currency.NewCatalog([]string{"NZD", "JPY"}, "NZD", map[string]int{"JPY": 0})
	require.NoError(t, err)

	repo := newFakeRepo()
	events := &fakeEvents{}
	products := &fakeCatalog{
		prices: map[int64]money.Money{
			1: money.New(1000, "NZD"),
			2: money.New(2500, "NZD"),
			3: money.New(500, "GBP"), // outside the configured catalog
		},
		available: map[int64]int{1: 10, 2: 3, 3: 5},
	}

	return NewCartService(repo, products, events, catalog, models.NewAddOnRules()), repo, events
}

func productRef(id int64) models.PurchasableRef {
	return models.PurchasableRef{Type: models.PurchasableTypeProduct, ID: id}
}

func TestCreateCartGeneratesGuestToken(t *testing.T) {
	cs, _, events := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	assert.True(t, cart.IsCart)
	assert.False(t, cart.CartLocked)
	assert.Len(t, cart.GuestToken, 32)
	assert.Contains(t, events.published, models.EventTypeCartCreated)
}

func TestQuantityAccumulation(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	// 1 + 1 merges into a single item with quantity 2.
	require.NoError(t, cs.AddPurchasableQuantity(ctx, cart.ID, productRef(1), 1))
	require.NoError(t, cs.AddPurchasableQuantity(ctx, cart.ID, productRef(1), 1))

	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	// Adding 3 more yields 5.
	require.NoError(t, cs.AddPurchasableQuantity(ctx, cart.ID, productRef(1), 3))
	order, err = repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, order.Items[0].Quantity)

	// Setting to zero removes the item; removing again is a no-op.
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 0))
	order, err = repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, order.Items)

	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 0))
}

func TestQuantityExceedsAvailable(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	err = cs.SetPurchasableQuantity(ctx, cart.ID, productRef(2), 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuantityExceedsAvailable)

	var qtyErr *QuantityError
	require.ErrorAs(t, err, &qtyErr)
	assert.Equal(t, 4, qtyErr.Requested)
	assert.Equal(t, 3, qtyErr.Available)

	// Rejected mutation changed nothing.
	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, order.Items)
}

func TestUnsupportedCurrencyRejected(t *testing.T) {
	cs, _, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	err = cs.SetPurchasableQuantity(ctx, cart.ID, productRef(3), 1)
	assert.ErrorIs(t, err, currency.ErrUnsupportedCurrency)
}

func TestLockedCartRejectsAllMutations(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 2))
	require.NoError(t, cs.AttachAddOn(ctx, cart.ID, &models.AddOn{
		Type: models.AddOnTypeFixed, Title: "Wrap", Amount: 100, Currency: "NZD", Active: true,
	}))
	require.NoError(t, cs.Lock(ctx, cart.ID))

	before, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 5), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.AddPurchasableQuantity(ctx, cart.ID, productRef(2), 1), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.RemoveItem(ctx, cart.ID, productRef(1)), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.AttachAddOn(ctx, cart.ID, &models.AddOn{
		Type: models.AddOnTypeFixed, Amount: 100, Currency: "NZD",
	}), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.DetachAddOn(ctx, cart.ID, before.AddOns[0].ID), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.SetAddOnActive(ctx, cart.ID, before.AddOns[0].ID, false), models.ErrOrderLocked)

	// Items and add-ons are untouched.
	after, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.AddOns, after.AddOns)
}

func TestLockUnlockIdempotent(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, cs.Lock(ctx, cart.ID))
	require.NoError(t, cs.Lock(ctx, cart.ID)) // retryable, not an error

	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, order.CartLocked)

	require.NoError(t, cs.Unlock(ctx, cart.ID))
	require.NoError(t, cs.Unlock(ctx, cart.ID))

	order, err = repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.False(t, order.CartLocked)

	// Unlocked again, mutations are accepted.
	assert.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 1))
}

func TestFinalize(t *testing.T) {
	cs, repo, events := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 2))

	order, err := cs.Finalize(ctx, cart.ID)
	require.NoError(t, err)
	assert.False(t, order.IsCart)
	assert.True(t, order.CartLocked)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.Contains(t, events.published, models.EventTypeOrderFinalized)

	// Finalized orders reject every mutation, including unlock.
	assert.ErrorIs(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 1), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.Unlock(ctx, cart.ID), models.ErrOrderLocked)
	assert.ErrorIs(t, cs.Lock(ctx, cart.ID), models.ErrOrderLocked)

	// Re-finalizing is a no-op for checkout retries.
	again, err := cs.Finalize(ctx, cart.ID)
	require.NoError(t, err)
	assert.False(t, again.IsCart)

	stored, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestFinalizeEmptyCart(t *testing.T) {
	cs, _, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	_, err = cs.Finalize(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestQuoteOrder(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 2))
	require.NoError(t, cs.AttachAddOn(ctx, cart.ID, &models.AddOn{
		Type: models.AddOnTypeFixed, Title: "Credit", Amount: -1500, Currency: "NZD", Active: true,
	}))

	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)

	quote, err := cs.QuoteOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, money.New(2000, "NZD"), quote.SubTotal)
	assert.Equal(t, money.New(500, "NZD"), quote.Total)
	assert.False(t, quote.IsEmpty)
}

func TestQuoteEmptyCartUsesDefaultCurrency(t *testing.T) {
	cs, repo, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)

	quote, err := cs.QuoteOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, quote.IsEmpty)
	assert.Equal(t, money.Zero("NZD"), quote.Total)
}

func TestSetAddOnActiveTogglesTotals(t *testing.T) {
	cs, repo, events := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 1))

	addOn := &models.AddOn{
		Type: models.AddOnTypeFixed, Title: "Gift wrap", Amount: 300, Currency: "NZD", Active: true,
	}
	require.NoError(t, cs.AttachAddOn(ctx, cart.ID, addOn))

	require.NoError(t, cs.SetAddOnActive(ctx, cart.ID, addOn.ID, false))
	assert.Contains(t, events.published, models.EventTypeAddOnUpdated)

	order, err := repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	quote, err := cs.QuoteOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, money.New(1000, "NZD"), quote.Total)

	// Toggling to the current state is a no-op.
	require.NoError(t, cs.SetAddOnActive(ctx, cart.ID, addOn.ID, false))

	require.NoError(t, cs.SetAddOnActive(ctx, cart.ID, addOn.ID, true))
	order, err = repo.LoadOrder(ctx, cart.ID)
	require.NoError(t, err)
	quote, err = cs.QuoteOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, money.New(1300, "NZD"), quote.Total)
}

func TestSetAddOnActiveWrongOrder(t *testing.T) {
	cs, _, _ := newTestCartService(t)
	ctx := context.Background()

	first, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)
	second, err := cs.CreateCart(ctx, 0)
	require.NoError(t, err)

	addOn := &models.AddOn{
		Type: models.AddOnTypeFixed, Title: "Wrap", Amount: 100, Currency: "NZD", Active: true,
	}
	require.NoError(t, cs.AttachAddOn(ctx, first.ID, addOn))

	assert.Error(t, cs.SetAddOnActive(ctx, second.ID, addOn.ID, false))
}

func TestListCustomerOrdersExcludesCarts(t *testing.T) {
	cs, _, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := cs.CreateCart(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, cs.SetPurchasableQuantity(ctx, cart.ID, productRef(1), 1))
	_, err = cs.Finalize(ctx, cart.ID)
	require.NoError(t, err)

	// A second cart for the same customer that stays a cart.
	_, err = cs.CreateCart(ctx, 7)
	require.NoError(t, err)

	orders, err := cs.ListCustomerOrders(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, cart.ID, orders[0].ID)
	assert.False(t, orders[0].IsCart)

	orders, err = cs.ListCustomerOrders(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
