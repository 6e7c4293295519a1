package checkout

import (
	"context"

	"github.com/noah-isme/storefront-checkout/internal/cache"
)

// StateStore keeps checkout state in Redis, one document per customer and cart.
type StateStore struct {
	Cache *cache.JSON
}

func stateID(customerID, cartID string) string {
	return customerID + ":" + cartID
}

// Load returns the saved state or an empty one.
func (s StateStore) Load(ctx context.Context, customerID, cartID string) (State, error) {
	var st State
	if _, err := s.Cache.Get(ctx, stateID(customerID, cartID), &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Save stores st, refreshing its expiry.
func (s StateStore) Save(ctx context.Context, customerID, cartID string, st State) error {
	return s.Cache.Set(ctx, stateID(customerID, cartID), st)
}

// Delete removes the state of a cart.
func (s StateStore) Delete(ctx context.Context, customerID, cartID string) error {
	return s.Cache.Delete(ctx, stateID(customerID, cartID))
}
