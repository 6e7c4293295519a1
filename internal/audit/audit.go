// Package audit records who changed store settings and coupons through the
// admin API.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Entry is one audited admin request.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	ClientIP   string    `json:"clientIp,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)
}

// PGStore implements Store with pgx.
type PGStore struct {
	DB db.DBTX
}

const entryColumns = `id, actor_id, action, resource, coalesce(resource_id, ''), method, path, status, coalesce(client_ip, ''), coalesce(request_id, ''), created_at`

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO admin_audit_log (id, actor_id, action, resource, resource_id, method, path, status, client_ip, request_id, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)`,
		e.ID, e.ActorID, e.Action, e.Resource, e.ResourceID, e.Method, e.Path, e.Status, e.ClientIP, e.RequestID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List implements Store, newest first.
func (s PGStore) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM admin_audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+entryColumns+` FROM admin_audit_log ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID, &e.Method, &e.Path, &e.Status, &e.ClientIP, &e.RequestID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan audit entries: %w", err)
	}
	return out, total, nil
}

// Service records and lists entries.
type Service struct {
	Store Store
	Log   zerolog.Logger
	Now   func() time.Time
}

// Record stores e, filling in the id, timestamp and a derived action.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if strings.TrimSpace(e.Action) == "" {
		e.Action = strings.ToUpper(e.Method) + " " + e.Path
	}
	if e.ActorID == "" {
		e.ActorID = "anonymous"
	}
	return s.Store.Insert(ctx, e)
}

// List returns one page of entries.
func (s *Service) List(ctx context.Context, page common.Pagination) ([]Entry, int, error) {
	return s.Store.List(ctx, page.PerPage, page.Offset())
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
