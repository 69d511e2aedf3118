package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMutable(t *testing.T) {
	cart := Order{IsCart: true, CartLocked: false}
	assert.True(t, cart.IsMutable())
	assert.NoError(t, cart.EnsureMutable())

	locked := Order{IsCart: true, CartLocked: true}
	assert.False(t, locked.IsMutable())

	// Finalized orders stay immutable even if the lock flag were cleared.
	finalized := Order{IsCart: false, CartLocked: false}
	assert.False(t, finalized.IsMutable())
}

func TestEnsureMutableReturnsLockedError(t *testing.T) {
	order := Order{ID: 42, IsCart: true, CartLocked: true}

	err := order.EnsureMutable()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderLocked)

	var lockedErr *LockedError
	require.True(t, errors.As(err, &lockedErr))
	assert.Equal(t, int64(42), lockedErr.OrderID)
}

func TestLockedErrorMessage(t *testing.T) {
	assert.Equal(t, "order 7 is locked", (&LockedError{OrderID: 7}).Error())
	assert.Equal(t, "order 7 is locked (item 3)", (&LockedError{OrderID: 7, OrderItemID: 3}).Error())
}

func TestFindItem(t *testing.T) {
	order := Order{
		Items: []OrderItem{
			{ID: 1, PurchasableType: PurchasableTypeProduct, PurchasableID: 10},
			{ID: 2, PurchasableType: PurchasableTypeProduct, PurchasableID: 20},
		},
	}

	item := order.FindItem(PurchasableRef{Type: PurchasableTypeProduct, ID: 20})
	require.NotNil(t, item)
	assert.Equal(t, int64(2), item.ID)

	assert.Nil(t, order.FindItem(PurchasableRef{Type: PurchasableTypeProduct, ID: 30}))
}

func TestNewGuestToken(t *testing.T) {
	token, err := NewGuestToken()
	require.NoError(t, err)
	// 16 random bytes, hex-encoded.
	assert.Len(t, token, 32)

	other, err := NewGuestToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestSortAddOnsStable(t *testing.T) {
	addOns := []AddOn{
		{ID: 1, Priority: PriorityLate, Position: 0},
		{ID: 2, Priority: PriorityEarly, Position: 1},
		{ID: 3, Priority: PriorityNormal, Position: 2},
		{ID: 4, Priority: PriorityNormal, Position: 3},
	}

	sorted := SortAddOns(addOns)

	ids := make([]int64, len(sorted))
	for i, a := range sorted {
		ids[i] = a.ID
	}
	assert.Equal(t, []int64{2, 3, 4, 1}, ids)

	// Input order is untouched.
	assert.Equal(t, int64(1), addOns[0].ID)
}
