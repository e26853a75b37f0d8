package repository

import (
	"context"
	"errors"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

// SettingsRepository covers the global singletons: settings, ad inventory
// and the ad rotation cursors.
type SettingsRepository struct {
	st store.Store
}

func NewSettingsRepository(st store.Store) *SettingsRepository {
	return &SettingsRepository{st: st}
}

// Get returns the stored settings layered over the defaults.
func (r *SettingsRepository) Get(ctx context.Context) (domain.AppSettings, error) {
	s := domain.DefaultSettings()
	err := store.Decode(ctx, r.st, store.Settings, &s)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.DefaultSettings(), err
	}
	return s, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s domain.AppSettings) error {
	return r.st.Set(ctx, store.Settings, s)
}

func (r *SettingsRepository) GetAdMobIDs(ctx context.Context) (domain.AdMobIDs, error) {
	var ids domain.AdMobIDs
	err := store.Decode(ctx, r.st, store.AdMobIDs, &ids)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AdMobIDs{}, nil
	}
	return ids, err
}

func (r *SettingsRepository) SaveAdMobIDs(ctx context.Context, ids domain.AdMobIDs) error {
	return r.st.Set(ctx, store.AdMobIDs, ids)
}

func (r *SettingsRepository) GetRotation(ctx context.Context) (domain.AdRotationState, error) {
	var st domain.AdRotationState
	err := store.Decode(ctx, r.st, store.AdRotation, &st)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AdRotationState{}, nil
	}
	return st, err
}

func (r *SettingsRepository) SaveRotation(ctx context.Context, st domain.AdRotationState) error {
	return r.st.Set(ctx, store.AdRotation, st)
}

// Seed writes defaults for records that do not exist yet.
func (r *SettingsRepository) Seed(ctx context.Context) error {
	seeds := []struct {
		path  string
		value any
	}{
		{store.Settings, domain.DefaultSettings()},
		{store.AdMobIDs, domain.DefaultAdMobIDs()},
		{store.AdRotation, domain.AdRotationState{}},
	}
	for _, s := range seeds {
		_, err := r.st.Get(ctx, s.path)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := r.st.Set(ctx, s.path, s.value); err != nil {
			return err
		}
		logger.Info("seeded default record", "path", s.path)
	}
	return nil
}
