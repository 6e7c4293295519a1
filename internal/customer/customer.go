// Package customer stores the shipping address saved on a customer profile.
package customer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/phone"
	"github.com/noah-isme/storefront-checkout/internal/security"
)

// ErrNotFound is returned when the customer has no saved address.
var ErrNotFound = errors.New("customer: address not found")

// Defaults applied to addresses that omit them.
const (
	DefaultCountry   = "Morocco"
	DefaultLatitude  = 33.5731
	DefaultLongitude = -7.5898
)

// Address is the shipping address kept on the profile.
type Address struct {
	Street     string    `json:"street" validate:"required,max=200"`
	City       string    `json:"city" validate:"required,max=100"`
	PostalCode string    `json:"postalCode" validate:"required,max=20"`
	PhoneNo    string    `json:"phoneNo" validate:"required,max=32"`
	Country    string    `json:"country" validate:"max=100"`
	Latitude   float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64   `json:"longitude" validate:"gte=-180,lte=180"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Normalize cleans free text, normalizes the phone number and fills defaults.
func (a Address) Normalize() Address {
	a.Street = security.PlainText(a.Street)
	a.City = security.PlainText(a.City)
	a.PostalCode = security.PlainText(a.PostalCode)
	a.Country = security.PlainText(a.Country)
	a.PhoneNo = phone.Normalize(a.PhoneNo)
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	if a.Latitude == 0 && a.Longitude == 0 {
		a.Latitude, a.Longitude = DefaultLatitude, DefaultLongitude
	}
	return a
}

// Store persists profile addresses.
type Store interface {
	Get(ctx context.Context, customerID string) (Address, error)
	Upsert(ctx context.Context, customerID string, a Address) (Address, error)
}

// PGStore implements Store with pgx.
type PGStore struct {
	DB db.DBTX
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, customerID string) (Address, error) {
	var a Address
	err := s.DB.QueryRow(ctx, `SELECT street, city, postal_code, phone_no, country, latitude, longitude, updated_at
FROM customer_addresses WHERE customer_id = $1`, customerID).
		Scan(&a.Street, &a.City, &a.PostalCode, &a.PhoneNo, &a.Country, &a.Latitude, &a.Longitude, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}

// Upsert implements Store.
func (s PGStore) Upsert(ctx context.Context, customerID string, a Address) (Address, error) {
	err := s.DB.QueryRow(ctx, `INSERT INTO customer_addresses
  (customer_id, street, city, postal_code, phone_no, country, latitude, longitude, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (customer_id) DO UPDATE SET
  street = EXCLUDED.street, city = EXCLUDED.city, postal_code = EXCLUDED.postal_code,
  phone_no = EXCLUDED.phone_no, country = EXCLUDED.country,
  latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, updated_at = now()
RETURNING updated_at`,
		customerID, a.Street, a.City, a.PostalCode, a.PhoneNo, a.Country, a.Latitude, a.Longitude).Scan(&a.UpdatedAt)
	if err != nil {
		return Address{}, fmt.Errorf("upsert address: %w", err)
	}
	return a, nil
}

// Service manages profile addresses.
type Service struct {
	Store Store
}

// Get returns the saved address of customerID.
func (s *Service) Get(ctx context.Context, customerID string) (Address, error) {
	return s.Store.Get(ctx, customerID)
}

// Save validates, normalizes and stores the address.
func (s *Service) Save(ctx context.Context, customerID string, a Address) (Address, error) {
	a = a.Normalize()
	if err := common.ValidateStruct(a); err != nil {
		return Address{}, err
	}
	return s.Store.Upsert(ctx, customerID, a)
}

// Handler exposes the profile address endpoints.
type Handler struct {
	Svc *Service
}

// Get handles GET /api/v1/customers/me/shipping-address.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	a, err := h.Svc.Get(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, a)
}

// Put handles PUT /api/v1/customers/me/shipping-address.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var in Address
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	a, err := h.Svc.Save(r.Context(), customerID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, a)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, func(err error) *common.AppError {
		if errors.Is(err, ErrNotFound) {
			return common.NotFound("no saved shipping address")
		}
		return nil
	})
}
