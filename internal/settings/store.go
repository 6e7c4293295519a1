package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store persists the settings document.
type Store interface {
	// Load returns the saved settings and false when nothing was saved yet.
	Load(ctx context.Context) (Settings, bool, error)
	Save(ctx context.Context, s Settings) error
}

// PGStore keeps the settings as a single JSONB row.
type PGStore struct {
	DB db.DBTX
}

const (
	loadSettingsSQL = `SELECT data, updated_at FROM store_settings WHERE id = 1`
	saveSettingsSQL = `INSERT INTO store_settings (id, data, updated_at) VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
)

// Load implements Store.
func (s PGStore) Load(ctx context.Context) (Settings, bool, error) {
	var (
		raw []byte
		out Settings
	)
	err := s.DB.QueryRow(ctx, loadSettingsSQL).Scan(&raw, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("settings: load: %w", err)
	}
	updatedAt := out.UpdatedAt
	// Fields missing from older documents keep their defaults.
	out = Defaults()
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}, false, fmt.Errorf("settings: decode: %w", err)
	}
	out.UpdatedAt = updatedAt
	return out, true, nil
}

// Save implements Store.
func (s PGStore) Save(ctx context.Context, in Settings) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if _, err := s.DB.Exec(ctx, saveSettingsSQL, data, in.UpdatedAt); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}
