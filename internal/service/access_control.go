package service

import (
	"crypto/subtle"

	"cart-service/internal/models"
)

// Viewer identifies whoever is asking to see an order. The zero value is an
// anonymous viewer.
type Viewer struct {
	CustomerID    int64
	Authenticated bool
	Admin         bool
}

// GuestAccessControl decides whether a viewer may see a finalized order.
// It is a pure predicate; mapping a denial to an HTTP status (404 here, to
// keep order IDs unguessable) is the transport layer's concern.
type GuestAccessControl struct{}

// NewGuestAccessControl creates the access predicate.
func NewGuestAccessControl() *GuestAccessControl {
	return &GuestAccessControl{}
}

// CanView applies the view rules in order:
//  1. carts are never viewable as orders, by anyone, admins included;
//  2. a presented guest token grants access only while the order's customer
//     is a guest;
//  3. the authenticated account holder sees their own orders;
//  4. admins see everything else.
//
// Malformed or unknown tokens grant nothing and raise nothing.
func (g *GuestAccessControl) CanView(order *models.Order, viewer Viewer, presentedTokens []string) bool {
	if order == nil || order.IsCart {
		return false
	}

	if order.IsGuest() && tokenMatches(order.GuestToken, presentedTokens) {
		return true
	}

	if viewer.Authenticated && !order.IsGuest() && viewer.CustomerID == order.CustomerID {
		return true
	}

	return viewer.Admin
}

// tokenMatches checks the order's guest token against every presented token
// in constant time per comparison.
func tokenMatches(guestToken string, presented []string) bool {
	if guestToken == "" {
		return false
	}
	for _, candidate := range presented {
		if len(candidate) != len(guestToken) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(guestToken), []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}
