package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

type fakeIntents struct {
	params []*stripe.PaymentIntentParams
	err    error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
	}, nil
}

type fakeOrders struct {
	orders   map[uuid.UUID]order.Order
	attached map[uuid.UUID]string
	paid     []string
}

func (f *fakeOrders) Get(_ context.Context, customerID string, id uuid.UUID) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.CustomerID != customerID {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) AttachPayment(_ context.Context, id uuid.UUID, ref string) error {
	f.attached[id] = ref
	return nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id uuid.UUID, ref string) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	o.Status = order.StatusPaid
	f.orders[id] = o
	f.paid = append(f.paid, ref)
	return o, nil
}

type staticSettings settings.Settings

func (s staticSettings) Get(context.Context) (settings.Settings, error) {
	return settings.Settings(s), nil
}

func newOrders(o ...order.Order) *fakeOrders {
	f := &fakeOrders{orders: map[uuid.UUID]order.Order{}, attached: map[uuid.UUID]string{}}
	for _, it := range o {
		f.orders[it.ID] = it
	}
	return f
}

func pending(total float64) order.Order {
	return order.Order{
		ID:         uuid.New(),
		CustomerID: "cust-1",
		Status:     order.StatusPendingPayment,
		Pricing:    pricing.Breakdown{GrandTotal: total},
		Currency:   "MAD",
	}
}

func newService(t *testing.T, intents *fakeIntents, orders *fakeOrders, st settings.Settings) *Service {
	t.Helper()
	provider, err := NewStripeProvider(StripeConfig{Intents: intents})
	require.NoError(t, err)
	return &Service{Orders: orders, Settings: staticSettings(st), Provider: provider}
}

func TestCreateIntentUsesMinorUnitsAndOrderKey(t *testing.T) {
	o := pending(665)
	intents := &fakeIntents{}
	orders := newOrders(o)
	svc := newService(t, intents, orders, settings.Defaults())

	resp, err := svc.CreateIntent(context.Background(), "cust-1", o.ID)
	require.NoError(t, err)
	require.Equal(t, "pi_123", resp.IntentID)
	require.Equal(t, int64(66500), resp.Amount)
	require.Equal(t, "mad", resp.Currency)
	require.Equal(t, "pi_123", orders.attached[o.ID])

	require.Len(t, intents.params, 1)
	p := intents.params[0]
	require.Equal(t, "order-"+o.ID.String(), *p.IdempotencyKey)
	require.Equal(t, o.ID.String(), p.Metadata["order_id"])
	require.True(t, *p.AutomaticPaymentMethods.Enabled)
}

func TestCreateIntentRefusals(t *testing.T) {
	paid := pending(100)
	paid.Status = order.StatusPaid
	open := pending(100)

	disabled := settings.Defaults()
	disabled.PaymentMethods.StripeActive = false

	svc := newService(t, &fakeIntents{}, newOrders(paid, open), disabled)
	_, err := svc.CreateIntent(context.Background(), "cust-1", open.ID)
	require.ErrorIs(t, err, ErrMethodInactive)

	svc = newService(t, &fakeIntents{}, newOrders(paid, open), settings.Defaults())
	_, err = svc.CreateIntent(context.Background(), "cust-1", paid.ID)
	require.ErrorIs(t, err, ErrOrderNotPending)

	_, err = svc.CreateIntent(context.Background(), "cust-2", open.ID)
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = (&Service{}).CreateIntent(context.Background(), "cust-1", open.ID)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{})
	require.Error(t, err)
	p, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", BaseURL: "http://127.0.0.1:12111"})
	require.NoError(t, err)
	require.Equal(t, "stripe", p.Name())
}

func TestIntentHandler(t *testing.T) {
	o := pending(1230)
	intents := &fakeIntents{}
	h := &Handler{Svc: newService(t, intents, newOrders(o), settings.Defaults())}
	r := chi.NewRouter()
	r.Post("/payments/{orderId}/intent", func(w http.ResponseWriter, req *http.Request) {
		h.Intent(w, req.WithContext(common.WithCustomerID(req.Context(), "cust-1")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/"+o.ID.String()+"/intent", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"clientSecret":"pi_123_secret"`)
	require.Contains(t, rec.Body.String(), `"amount":123000`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/intent", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	intents.err = errors.New("card_declined")
	other := pending(10)
	h.Svc.Orders.(*fakeOrders).orders[other.ID] = other
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/"+other.ID.String()+"/intent", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func signStripe(t *testing.T, secret, payload string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventID, eventType, orderID string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"order_id":%q}}}}`,
		eventID, eventType, orderID)
}

func TestStripeWebhookSettlesOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	o := pending(100)
	orders := newOrders(o)
	h := StripeWebhook{Secret: "whsec_test", Orders: orders, Replay: rdb, ReplayTTL: time.Hour}

	payload := stripeEvent("evt_1", "payment_intent.succeeded", o.ID.String())
	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", sig)
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		return rec
	}

	rec := send("t=1,v1=deadbeef")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(signStripe(t, "whsec_test", payload, time.Now()))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Equal(t, order.StatusPaid, orders.orders[o.ID].Status)

	rec = send(signStripe(t, "whsec_test", payload, time.Now()))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"pi_123"}, orders.paid)
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	orders := newOrders()
	h := StripeWebhook{Secret: "whsec_test", Orders: orders}
	payload := stripeEvent("evt_2", "charge.refunded", uuid.NewString())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signStripe(t, "whsec_test", payload, time.Now()))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, orders.paid)
}

func TestStripeWebhookUnknownOrderReleasesReplayKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := StripeWebhook{Secret: "whsec_test", Orders: newOrders(), Replay: rdb, ReplayTTL: time.Hour}
	payload := stripeEvent("evt_3", "payment_intent.succeeded", uuid.NewString())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signStripe(t, "whsec_test", payload, time.Now()))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, mr.Exists("wh:stripe:evt_3"))
}
