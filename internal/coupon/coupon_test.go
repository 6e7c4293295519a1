package coupon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/db"
)

type memStore struct {
	mu       sync.Mutex
	byCode   map[string]Coupon
	redeemed map[uuid.UUID]map[string]bool
}

func newMemStore(coupons ...Coupon) *memStore {
	m := &memStore{byCode: map[string]Coupon{}, redeemed: map[uuid.UUID]map[string]bool{}}
	for _, c := range coupons {
		m.byCode[c.Code] = c
	}
	return m
}

func (m *memStore) GetByCode(_ context.Context, code string) (Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byCode[code]
	if !ok {
		return Coupon{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) HasRedeemed(_ context.Context, id uuid.UUID, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redeemed[id][customerID], nil
}

func (m *memStore) Create(_ context.Context, c Coupon) (Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[c.Code]; ok {
		return Coupon{}, ErrDuplicateCode
	}
	m.byCode[c.Code] = c
	return c, nil
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]Coupon, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Coupon, 0, len(m.byCode))
	for _, c := range m.byCode {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, c := range m.byCode {
		if c.ID == id {
			delete(m.byCode, code)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) RevokeUsage(_ context.Context, id uuid.UUID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.redeemed[id][customerID] {
		return ErrNotFound
	}
	delete(m.redeemed[id], customerID)
	return nil
}

func (m *memStore) Redeem(_ context.Context, _ db.DBTX, id uuid.UUID, customerID string, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redeemed[id] == nil {
		m.redeemed[id] = map[string]bool{}
	}
	if m.redeemed[id][customerID] {
		return ErrCouponAlreadyUsed
	}
	m.redeemed[id][customerID] = true
	for code, c := range m.byCode {
		if c.ID == id {
			c.UsedCount++
			m.byCode[code] = c
		}
	}
	return nil
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func activeCoupon(code string) Coupon {
	return Coupon{ID: uuid.New(), Code: code, Discount: 10, ExpiresAt: now.Add(24 * time.Hour), UsageLimit: 2, Status: StatusActive}
}

func TestCheck(t *testing.T) {
	c := activeCoupon("SPRING10")
	require.NoError(t, c.Check(now, false))
	require.ErrorIs(t, c.Check(now, true), ErrCouponAlreadyUsed)
	require.ErrorIs(t, c.Check(c.ExpiresAt, false), ErrCouponExpired)

	c.UsedCount = 2
	require.ErrorIs(t, c.Check(now, false), ErrCouponUsageLimit)

	c.Status = StatusInactive
	require.ErrorIs(t, c.Check(now, false), ErrCouponInactive)
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "SPRING10", NormalizeCode("  spring10 "))
	require.Equal(t, "SPRING10", NormalizeCode("<b>spring</b>10"))
	require.Equal(t, "", NormalizeCode("<script>x</script>"))
}

func TestValidateAndRedeemOncePerCustomer(t *testing.T) {
	c := activeCoupon("SPRING10")
	store := newMemStore(c)
	svc := &Service{Store: store, Now: func() time.Time { return now }}
	ctx := context.Background()

	got, err := svc.Validate(ctx, "spring10", "cus_1")
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	require.NoError(t, svc.Redeem(ctx, nil, c.ID, "cus_1", uuid.New()))
	_, err = svc.Validate(ctx, "SPRING10", "cus_1")
	require.ErrorIs(t, err, ErrCouponAlreadyUsed)

	require.NoError(t, svc.Redeem(ctx, nil, c.ID, "cus_2", uuid.New()))
	_, err = svc.Validate(ctx, "SPRING10", "cus_3")
	require.ErrorIs(t, err, ErrCouponUsageLimit)

	_, err = svc.Validate(ctx, "NOPE", "cus_3")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc := &Service{Store: newMemStore(), Now: func() time.Time { return now }}
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Code: "summer", Discount: 10, ExpiresAt: now.Add(time.Hour), UsageLimit: 1})
	require.True(t, common.IsAppError(err))

	_, err = svc.Create(ctx, CreateInput{Code: "SUMMER", Discount: 120, ExpiresAt: now.Add(time.Hour), UsageLimit: 1})
	require.True(t, common.IsAppError(err))

	_, err = svc.Create(ctx, CreateInput{Code: "SUMMER", Discount: 10, ExpiresAt: now.Add(-time.Hour), UsageLimit: 1})
	require.True(t, common.IsAppError(err))

	c, err := svc.Create(ctx, CreateInput{Code: "SUMMER", Discount: 15, ExpiresAt: now.Add(time.Hour), UsageLimit: 5})
	require.NoError(t, err)
	require.Equal(t, StatusActive, c.Status)

	_, err = svc.Create(ctx, CreateInput{Code: "SUMMER", Discount: 15, ExpiresAt: now.Add(time.Hour), UsageLimit: 5})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestHandlerCreateAndMapErrors(t *testing.T) {
	h := &Handler{Svc: &Service{Store: newMemStore(), Now: func() time.Time { return now }}}
	body := `{"code":"WINTER5","discount":5,"expiresAt":"2026-12-31T00:00:00Z","usageLimit":10}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusUnprocessableEntity, MapError(ErrCouponExpired).HTTPStatus)
	require.Nil(t, MapError(context.Canceled))
}
