package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/customer"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

type Carts interface {
	Get(ctx context.Context, customerID, id string) (cart.Cart, error)
	Clear(ctx context.Context, customerID, id string) (cart.Cart, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

type Coupons interface {
	Validate(ctx context.Context, code, customerID string) (coupon.Coupon, error)
	Redeem(ctx context.Context, q db.DBTX, couponID uuid.UUID, customerID string, orderID uuid.UUID) error
}

type Profiles interface {
	Get(ctx context.Context, customerID string) (customer.Address, error)
	Save(ctx context.Context, customerID string, a customer.Address) (customer.Address, error)
}

type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service runs the checkout flow.
type Service struct {
	Carts    Carts
	Settings SettingsReader
	Coupons  Coupons
	Profiles Profiles
	Orders   order.Store
	State    StateStore
	DB       db.TxBeginner
	Lock     Locker
	Events   Emitter
	Currency string
	Log      zerolog.Logger
}

// snapshot is everything a checkout step reads before acting.
type snapshot struct {
	settings settings.Settings
	cart     cart.Cart
	state    State
}

func (s *Service) load(ctx context.Context, customerID, cartID string) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.settings, err = s.Settings.Get(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.cart, err = s.Carts.Get(gctx, customerID, cartID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.state, err = s.State.Load(gctx, customerID, cartID)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	if snap.cart.ItemsTotal() <= 0 {
		return snapshot{}, ErrEmptyCart
	}
	return snap, nil
}

func (snap snapshot) price(method pricing.Method) (pricing.Breakdown, error) {
	in := pricing.Input{
		Items:    snap.cart.PricingItems(),
		Method:   method,
		Shipping: snap.settings.Shipping(),
		Vat:      snap.settings.Vat(),
	}
	if c := snap.state.Coupon; c != nil {
		in.CouponApplied = true
		in.CouponPercent = c.Percent
	}
	return pricing.Calculate(in)
}

func (snap snapshot) quote(cartID string, method pricing.Method) (Quote, error) {
	b, err := snap.price(method)
	if err != nil {
		return Quote{}, err
	}
	cfg := snap.settings.Shipping()
	return Quote{
		CartID:        cartID,
		Method:        method,
		InitialMethod: pricing.InitialMethod(cfg),
		Options:       pricing.MethodOptions(b.ItemsTotal, cfg),
		Pricing:       b,
		GrandTotal:    b.GrandTotalString(),
		Shipping:      snap.state.Shipping,
		Coupon:        snap.state.Coupon,
	}, nil
}

// Quote prices the cart. An empty method uses the saved selection, then the
// first enabled method.
func (s *Service) Quote(ctx context.Context, customerID, cartID, method string) (Quote, error) {
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return Quote{}, err
	}
	var m pricing.Method
	switch {
	case method != "":
		m, err = previewMethod(method, snap.settings.Shipping())
		if err != nil {
			return Quote{}, err
		}
	case snap.state.Shipping != nil:
		m = snap.state.Shipping.ShippingMethod
	default:
		m = pricing.InitialMethod(snap.settings.Shipping())
	}
	q, err := snap.quote(cartID, m)
	if err != nil {
		return Quote{}, err
	}
	obs.ObserveQuote(string(m), q.Pricing.FreeShipping)
	return q, nil
}

// SaveShipping validates and stores the shipping selection. Saving shipping
// drops any applied coupon.
func (s *Service) SaveShipping(ctx context.Context, customerID, cartID string, in ShippingInput) (Quote, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Quote{}, err
	}
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return Quote{}, err
	}
	method, err := resolveMethod(in.ShippingMethod, snap.cart.ItemsTotal(), snap.settings.Shipping())
	if err != nil {
		return Quote{}, err
	}
	addr := in.address()
	if addr.Street == "" || addr.City == "" || addr.PhoneNo == "" {
		return Quote{}, common.ValidationError("address, city and phone must contain text", nil)
	}
	info := shippingFromAddress(addr, method)
	snap.state.Coupon = nil
	b, err := snap.price(method)
	if err != nil {
		return Quote{}, err
	}
	info.TaxPrice, info.ShippingPrice = b.TaxAmount, b.ShippingCost
	snap.state.Shipping = &info
	snap.state.UpdatedAt = time.Now().UTC()
	if err := s.State.Save(ctx, customerID, cartID, snap.state); err != nil {
		return Quote{}, fmt.Errorf("save checkout state: %w", err)
	}
	if in.SaveToProfile && s.Profiles != nil {
		if _, err := s.Profiles.Save(ctx, customerID, addr); err != nil {
			return Quote{}, fmt.Errorf("save profile address: %w", err)
		}
	}
	s.Log.Info().
		Str("customer_id", customerID).
		Str("cart_id", cartID).
		Str("method", string(method)).
		Msg("shipping saved")
	return snap.quote(cartID, method)
}

// Prefill copies the profile address into checkout state when nothing has
// been saved yet.
func (s *Service) Prefill(ctx context.Context, customerID, cartID string) (Quote, error) {
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return Quote{}, err
	}
	if snap.state.Shipping != nil || s.Profiles == nil {
		return s.quoteSaved(snap, cartID)
	}
	addr, err := s.Profiles.Get(ctx, customerID)
	if errors.Is(err, customer.ErrNotFound) {
		return s.quoteSaved(snap, cartID)
	}
	if err != nil {
		return Quote{}, err
	}
	method := pricing.InitialMethod(snap.settings.Shipping())
	info := shippingFromAddress(addr, method)
	b, err := snap.price(method)
	if err != nil {
		return Quote{}, err
	}
	info.TaxPrice, info.ShippingPrice = b.TaxAmount, b.ShippingCost
	snap.state.Shipping = &info
	snap.state.UpdatedAt = time.Now().UTC()
	if err := s.State.Save(ctx, customerID, cartID, snap.state); err != nil {
		return Quote{}, fmt.Errorf("save checkout state: %w", err)
	}
	return snap.quote(cartID, method)
}

func (s *Service) quoteSaved(snap snapshot, cartID string) (Quote, error) {
	method := pricing.InitialMethod(snap.settings.Shipping())
	if snap.state.Shipping != nil {
		method = snap.state.Shipping.ShippingMethod
	}
	return snap.quote(cartID, method)
}

// ApplyCoupon validates code for the customer and attaches it to the checkout.
func (s *Service) ApplyCoupon(ctx context.Context, customerID, cartID, code string) (Quote, error) {
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return Quote{}, err
	}
	c, err := s.Coupons.Validate(ctx, code, customerID)
	if err != nil {
		return Quote{}, err
	}
	snap.state.Coupon = &AppliedCoupon{ID: c.ID, Code: c.Code, Percent: c.Discount}
	snap.state.UpdatedAt = time.Now().UTC()
	if err := s.State.Save(ctx, customerID, cartID, snap.state); err != nil {
		return Quote{}, fmt.Errorf("save checkout state: %w", err)
	}
	return s.quoteSaved(snap, cartID)
}

// RemoveCoupon detaches any applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, customerID, cartID string) (Quote, error) {
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return Quote{}, err
	}
	if snap.state.Coupon != nil {
		snap.state.Coupon = nil
		snap.state.UpdatedAt = time.Now().UTC()
		if err := s.State.Save(ctx, customerID, cartID, snap.state); err != nil {
			return Quote{}, fmt.Errorf("save checkout state: %w", err)
		}
	}
	return s.quoteSaved(snap, cartID)
}

// Confirm reprices the checkout against current settings and persists the
// order. The order, its items and the coupon redemption commit together.
func (s *Service) Confirm(ctx context.Context, customerID, cartID string) (order.Order, error) {
	var out order.Order
	err := s.withLock(ctx, "lock:checkout:"+cartID, func(ctx context.Context) error {
		var err error
		out, err = s.confirm(ctx, customerID, cartID)
		return err
	})
	return out, err
}

func (s *Service) confirm(ctx context.Context, customerID, cartID string) (order.Order, error) {
	snap, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return order.Order{}, err
	}
	if snap.state.Shipping == nil {
		return order.Order{}, ErrShippingRequired
	}
	info := *snap.state.Shipping
	method, err := confirmMethod(info.ShippingMethod, snap.cart.ItemsTotal(), snap.settings.Shipping())
	if err != nil {
		return order.Order{}, err
	}
	if applied := snap.state.Coupon; applied != nil {
		c, err := s.Coupons.Validate(ctx, applied.Code, customerID)
		if err != nil {
			return order.Order{}, err
		}
		snap.state.Coupon = &AppliedCoupon{ID: c.ID, Code: c.Code, Percent: c.Discount}
	}
	b, err := snap.price(method)
	if err != nil {
		return order.Order{}, err
	}
	info.ShippingMethod = method
	info.TaxPrice, info.ShippingPrice = b.TaxAmount, b.ShippingCost
	rawInfo, err := json.Marshal(info)
	if err != nil {
		return order.Order{}, err
	}

	o := order.Order{
		ID:             uuid.New(),
		CustomerID:     customerID,
		CartID:         cartID,
		Status:         order.StatusPendingPayment,
		Pricing:        b,
		GrandTotal:     b.GrandTotalString(),
		Currency:       s.Currency,
		ShippingMethod: string(method),
		ShippingInfo:   rawInfo,
	}
	for _, line := range snap.cart.Lines {
		o.Items = append(o.Items, order.Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice(),
			Quantity:  line.Quantity,
		})
	}
	if snap.state.Coupon != nil {
		o.CouponCode = snap.state.Coupon.Code
	}

	err = s.inTx(ctx, func(q db.DBTX) error {
		saved, err := s.Orders.Insert(ctx, q, o)
		if err != nil {
			return err
		}
		o = saved
		if c := snap.state.Coupon; c != nil {
			return s.Coupons.Redeem(ctx, q, c.ID, customerID, o.ID)
		}
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}

	if _, err := s.Carts.Clear(ctx, customerID, cartID); err != nil {
		s.Log.Warn().Err(err).Str("cart_id", cartID).Msg("clear cart after order")
	}
	if err := s.State.Delete(ctx, customerID, cartID); err != nil {
		s.Log.Warn().Err(err).Str("cart_id", cartID).Msg("drop checkout state after order")
	}
	if s.Events != nil {
		payload := map[string]any{
			"orderId":        o.ID,
			"customerId":     customerID,
			"grandTotal":     o.GrandTotal,
			"currency":       o.Currency,
			"shippingMethod": o.ShippingMethod,
			"couponCode":     o.CouponCode,
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, o.ID.String(), payload); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID.String()).Msg("emit order.created")
		}
	}
	obs.ObserveOrderCreated(o.CouponCode != "")
	s.Log.Info().
		Str("order_id", o.ID.String()).
		Str("customer_id", customerID).
		Str("grand_total", o.GrandTotal).
		Msg("order created")
	return o, nil
}

func (s *Service) inTx(ctx context.Context, fn func(db.DBTX) error) error {
	if s.DB == nil {
		return fn(nil)
	}
	return db.WithTx(ctx, s.DB, func(tx pgx.Tx) error { return fn(tx) })
}

func (s *Service) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.Lock == nil {
		return fn(ctx)
	}
	return s.Lock.WithLock(ctx, key, 10*time.Second, fn)
}
