package cart

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/cache"
)

// Locker serialises writes to one cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service manages carts stored in Redis.
type Service struct {
	Store   *cache.JSON
	Lock    Locker
	LockTTL time.Duration
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create starts an empty cart for customerID.
func (s *Service) Create(ctx context.Context, customerID string) (Cart, error) {
	c := Cart{ID: uuid.NewString(), CustomerID: customerID, Lines: []Line{}, UpdatedAt: s.now()}
	if err := s.Store.Set(ctx, c.ID, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Get loads a cart owned by customerID.
func (s *Service) Get(ctx context.Context, customerID, id string) (Cart, error) {
	var c Cart
	ok, err := s.Store.Get(ctx, strings.TrimSpace(id), &c)
	if err != nil {
		return Cart{}, err
	}
	if !ok {
		return Cart{}, ErrNotFound
	}
	if c.CustomerID != customerID {
		return Cart{}, ErrForbidden
	}
	return c, nil
}

// AddItem adds line to the cart, merging quantities when the product is
// already present. Prices of an existing line are refreshed from line.
func (s *Service) AddItem(ctx context.Context, customerID, id string, line Line) (Cart, error) {
	if err := line.validate(); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, customerID, id, func(c *Cart) error {
		if i := c.indexOf(line.ProductID); i >= 0 {
			line.Quantity += c.Lines[i].Quantity
			c.Lines[i] = line
			return nil
		}
		c.Lines = append(c.Lines, line)
		return nil
	})
}

// UpdateQty sets the quantity of a line. A quantity of zero removes it.
func (s *Service) UpdateQty(ctx context.Context, customerID, id, productID string, qty int) (Cart, error) {
	if qty < 0 {
		return Cart{}, ErrInvalidLine
	}
	if qty == 0 {
		return s.RemoveItem(ctx, customerID, id, productID)
	}
	return s.mutate(ctx, customerID, id, func(c *Cart) error {
		i := c.indexOf(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines[i].Quantity = qty
		return nil
	})
}

// RemoveItem drops the line for productID.
func (s *Service) RemoveItem(ctx context.Context, customerID, id, productID string) (Cart, error) {
	return s.mutate(ctx, customerID, id, func(c *Cart) error {
		i := c.indexOf(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil
	})
}

// Clear empties the cart but keeps it alive.
func (s *Service) Clear(ctx context.Context, customerID, id string) (Cart, error) {
	return s.mutate(ctx, customerID, id, func(c *Cart) error {
		c.Lines = []Line{}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, customerID, id string, fn func(*Cart) error) (Cart, error) {
	var out Cart
	run := func(ctx context.Context) error {
		c, err := s.Get(ctx, customerID, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		if err := s.Store.Set(ctx, c.ID, c); err != nil {
			return err
		}
		out = c
		return nil
	}
	var err error
	if s.Lock == nil {
		err = run(ctx)
	} else {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 5 * time.Second
		}
		err = s.Lock.WithLock(ctx, "lock:cart:"+id, ttl, run)
	}
	return out, err
}
