package settings

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/events"
)

const (
	cacheID       = "current"
	lockKey       = "lock:settings"
	lockTTL       = 5 * time.Second
	aggregateName = "store-settings"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Locker serialises read-modify-write cycles across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service reads and updates the store settings.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Lock   Locker
	Events Emitter
	Log    zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the current settings, falling back to Defaults when none were saved.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	var out Settings
	if hit, err := s.Cache.Get(ctx, cacheID, &out); err != nil {
		s.Log.Warn().Err(err).Msg("settings cache read failed")
	} else if hit {
		return out, nil
	}
	out, found, err := s.Store.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if !found {
		out = Defaults()
	}
	if err := s.Cache.Set(ctx, cacheID, out); err != nil {
		s.Log.Warn().Err(err).Msg("settings cache write failed")
	}
	return out, nil
}

// Replace validates and stores a complete settings document.
func (s *Service) Replace(ctx context.Context, in Settings) (Settings, error) {
	var out Settings
	err := s.withLock(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.save(ctx, in)
		return err
	})
	return out, err
}

// Patch applies dotted-path changes on top of the current settings.
func (s *Service) Patch(ctx context.Context, changes map[string]string) (Settings, error) {
	var out Settings
	err := s.withLock(ctx, func(ctx context.Context) error {
		current, found, err := s.Store.Load(ctx)
		if err != nil {
			return err
		}
		if !found {
			current = Defaults()
		}
		if err := current.Apply(changes); err != nil {
			return err
		}
		out, err = s.save(ctx, current)
		return err
	})
	return out, err
}

func (s *Service) withLock(ctx context.Context, fn func(context.Context) error) error {
	if s.Lock == nil {
		return fn(ctx)
	}
	return s.Lock.WithLock(ctx, lockKey, lockTTL, fn)
}

func (s *Service) save(ctx context.Context, in Settings) (Settings, error) {
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	in.UpdatedAt = s.now()
	if err := s.Store.Save(ctx, in); err != nil {
		return Settings{}, err
	}
	if err := s.Cache.Delete(ctx, cacheID); err != nil {
		s.Log.Warn().Err(err).Msg("settings cache invalidation failed")
	}
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicSettingsUpdated, aggregateName, in); err != nil {
			s.Log.Error().Err(err).Msg("emit settings.updated")
		}
	}
	s.Log.Info().
		Bool("free_shipping", in.ShippingConfig.FreeShippingEnabled).
		Float64("vat_percentage", in.VatConfig.Percentage).
		Msg("store settings updated")
	return in, nil
}
