package models

import (
	"sort"
	"time"

	"cart-service/internal/money"
)

// Add-on priorities. Lower applies first.
const (
	PriorityEarly  = -1
	PriorityNormal = 0
	PriorityLate   = 1
)

// AddOn is a priced modifier (fee, discount, surcharge) attached to an order
// or to one of its items. OrderItemID is zero for order-level add-ons.
// Amount is the configured base amount; the effective amount can be derived
// at computation time by a registered rule for the add-on's Type.
type AddOn struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	OrderItemID int64     `db:"order_item_id" json:"order_item_id,omitempty"`
	Type        string    `db:"addon_type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Priority    int       `db:"priority" json:"priority"`
	Amount      int64     `db:"amount" json:"amount"`
	Currency    string    `db:"currency" json:"currency"`
	Active      bool      `db:"active" json:"active"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BaseAmount returns the configured amount as Money.
func (a *AddOn) BaseAmount() money.Money {
	return money.New(a.Amount, a.Currency)
}

// Built-in add-on types
const (
	AddOnTypeFixed   = "fixed"
	AddOnTypePercent = "percent"
)

// AddOnContext carries what a derived add-on rule may look at: the owning
// order, the owning item for item-level add-ons, and the running totals
// accumulated before this add-on applies.
type AddOnContext struct {
	Order           *Order
	Item            *OrderItem
	RunningSubTotal money.Money
	RunningTotal    money.Money
}

// AddOnRule computes the effective amount of an add-on at pricing time.
type AddOnRule interface {
	ComputeAmount(addOn *AddOn, ctx AddOnContext) (money.Money, error)
}

// AddOnRuleFunc adapts a function to the AddOnRule interface.
type AddOnRuleFunc func(addOn *AddOn, ctx AddOnContext) (money.Money, error)

func (f AddOnRuleFunc) ComputeAmount(addOn *AddOn, ctx AddOnContext) (money.Money, error) {
	return f(addOn, ctx)
}

// AddOnRules maps add-on types to their amount rules. Types without a rule
// fall back to the configured base amount. This is the explicit replacement
// for runtime extension hooks: plugins register here instead of injecting
// methods.
type AddOnRules struct {
	rules map[string]AddOnRule
}

// NewAddOnRules builds a rule set with the built-in percent rule registered.
func NewAddOnRules() *AddOnRules {
	r := &AddOnRules{rules: make(map[string]AddOnRule)}
	r.Register(AddOnTypePercent, AddOnRuleFunc(percentOfSubTotal))
	return r
}

// Register binds a rule to an add-on type, replacing any previous rule.
func (r *AddOnRules) Register(addOnType string, rule AddOnRule) {
	r.rules[addOnType] = rule
}

// Compute returns the effective amount for the add-on: the registered rule's
// result, or the base amount when no rule is registered. A nil rule set
// always yields base amounts.
func (r *AddOnRules) Compute(addOn *AddOn, ctx AddOnContext) (money.Money, error) {
	if r != nil {
		if rule, ok := r.rules[addOn.Type]; ok {
			return rule.ComputeAmount(addOn, ctx)
		}
	}
	return addOn.BaseAmount(), nil
}

// percentOfSubTotal treats the add-on's Amount as basis points applied to the
// running subtotal. Negative basis points express a percentage discount.
func percentOfSubTotal(addOn *AddOn, ctx AddOnContext) (money.Money, error) {
	basis := ctx.RunningSubTotal
	return money.New(basis.Amount*addOn.Amount/10000, basis.Currency), nil
}

// SortAddOns orders add-ons for application: ascending priority, ties broken
// by attachment order. The sort is stable so equal entries keep their
// relative order.
func SortAddOns(addOns []AddOn) []AddOn {
	sorted := make([]AddOn, len(addOns))
	copy(sorted, addOns)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Priority != sorted[b].Priority {
			return sorted[a].Priority < sorted[b].Priority
		}
		if sorted[a].Position != sorted[b].Position {
			return sorted[a].Position < sorted[b].Position
		}
		return sorted[a].ID < sorted[b].ID
	})
	return sorted
}
