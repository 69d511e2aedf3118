package models

import (
	"fmt"

	"cart-service/internal/money"
)

// SubTotal is unit price times quantity. Add-ons are not included.
func (i *OrderItem) SubTotal() money.Money {
	return money.New(i.UnitPrice, i.Currency).MulInt(int64(i.Quantity))
}

// Total is the item subtotal plus the item's active add-ons, applied once to
// the subtotal (not per unit) in priority order. Active is checked here, at
// computation time, so an add-on deactivated by an external rule drops out
// without being deleted.
func (i *OrderItem) Total(rules *AddOnRules) (money.Money, error) {
	subTotal := i.SubTotal()
	total := subTotal

	for _, addOn := range SortAddOns(i.AddOns) {
		if !addOn.Active {
			continue
		}
		addOn := addOn
		amount, err := rules.Compute(&addOn, AddOnContext{
			Item:            i,
			RunningSubTotal: subTotal,
			RunningTotal:    total,
		})
		if err != nil {
			return money.Money{}, fmt.Errorf("add-on %q on item %d: %w", addOn.Title, i.ID, err)
		}
		total, err = total.Add(amount)
		if err != nil {
			return money.Money{}, fmt.Errorf("add-on %q on item %d: %w", addOn.Title, i.ID, err)
		}
	}

	return total, nil
}

// SubTotal sums the order's items, including each item's add-ons when
// applyItemAddOns is set. The currency is taken from the first item; an
// empty order yields zero in defaultCurrency.
func (o *Order) SubTotal(rules *AddOnRules, defaultCurrency string, applyItemAddOns bool) (money.Money, error) {
	var acc money.Accumulator

	for idx := range o.Items {
		item := &o.Items[idx]

		var amount money.Money
		if applyItemAddOns {
			var err error
			amount, err = item.Total(rules)
			if err != nil {
				return money.Money{}, err
			}
		} else {
			amount = item.SubTotal()
		}

		if err := acc.Add(amount); err != nil {
			return money.Money{}, fmt.Errorf("order %d subtotal: %w", o.ID, err)
		}
	}

	return acc.Value(defaultCurrency), nil
}

// Total is the subtotal plus the order-level add-ons, applied in priority
// order when applyOrderAddOns is set. Each add-on rule sees the subtotal and
// the total accumulated so far.
func (o *Order) Total(rules *AddOnRules, defaultCurrency string, applyOrderAddOns, applyItemAddOns bool) (money.Money, error) {
	subTotal, err := o.SubTotal(rules, defaultCurrency, applyItemAddOns)
	if err != nil {
		return money.Money{}, err
	}

	total := subTotal
	if !applyOrderAddOns {
		return total, nil
	}

	for _, addOn := range SortAddOns(o.AddOns) {
		if !addOn.Active {
			continue
		}
		addOn := addOn
		amount, err := rules.Compute(&addOn, AddOnContext{
			Order:           o,
			RunningSubTotal: subTotal,
			RunningTotal:    total,
		})
		if err != nil {
			return money.Money{}, fmt.Errorf("add-on %q on order %d: %w", addOn.Title, o.ID, err)
		}
		total, err = total.Add(amount)
		if err != nil {
			return money.Money{}, fmt.Errorf("add-on %q on order %d: %w", addOn.Title, o.ID, err)
		}
	}

	return total, nil
}
