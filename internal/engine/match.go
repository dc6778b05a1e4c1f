// Package engine implements the gift matching rules and the polling
// purchase loop that drives them.
package engine

import (
	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/feed"
)

// Match returns the index of the first of the user's filters that the
// gift satisfies, in stored order. A filter is satisfied when the gift
// price falls inside [MinPrice, MaxPrice] and the filter still has
// purchase capacity. The user's balance must cover the price before any
// filter is considered; an underfunded user never matches regardless of
// filter contents.
func Match(user *database.User, gift feed.Gift) (int, bool) {
	if user.Balance < gift.Price {
		return 0, false
	}
	for i, f := range user.Filters {
		if gift.Price < f.MinPrice || gift.Price > f.MaxPrice {
			continue
		}
		if f.Exhausted() {
			continue
		}
		return i, true
	}
	return 0, false
}
