package reward

import (
	"context"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"
)

// RotationWindow is the fixed capacity of the round-robin window. Cursors
// advance modulo this value, not the actual window length.
const RotationWindow = 4

// AdInventory is satisfied by repository.SettingsRepository.
type AdInventory interface {
	Get(ctx context.Context) (domain.AppSettings, error)
	GetAdMobIDs(ctx context.Context) (domain.AdMobIDs, error)
	GetRotation(ctx context.Context) (domain.AdRotationState, error)
	SaveRotation(ctx context.Context, st domain.AdRotationState) error
}

// Selector picks the next ad unit per slot. Cursors are process-wide.
type Selector struct {
	mu  sync.Mutex
	inv AdInventory
}

func NewSelector(inv AdInventory) *Selector {
	return &Selector{inv: inv}
}

// NextAd never fails: problems are reported through sentinel identifiers.
func (s *Selector) NextAd(ctx context.Context, slot string) string {
	sl, ok := domain.ParseAdSlot(slot)
	if !ok {
		return domain.AdInvalidType
	}

	log := logger.With("component", "ads", "slot", slot)

	ids, err := s.inv.GetAdMobIDs(ctx)
	if err != nil {
		log.Warn("load ad units failed", "error", err)
		return domain.AdNoneConfigured
	}
	units := ids.Units(sl)
	if len(units) == 0 {
		return domain.AdNoneConfigured
	}
	enabled := make([]domain.AdUnit, 0, len(units))
	for _, u := range units {
		if u.Enabled {
			enabled = append(enabled, u)
		}
	}
	if len(enabled) == 0 {
		return domain.AdNoneEnabled
	}

	settings, err := s.inv.Get(ctx)
	if err != nil {
		log.Warn("load settings failed", "error", err)
	}
	if !settings.RotatingAdsEnabled {
		metrics.AdsServed.WithLabelValues(slot).Inc()
		return enabled[0].ID
	}

	window := enabled
	if len(window) > RotationWindow {
		window = window[:RotationWindow]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rot, err := s.inv.GetRotation(ctx)
	if err != nil {
		log.Warn("load rotation failed", "error", err)
	}
	cursor := rot.Cursor(sl)
	if cursor < 0 {
		cursor = 0
	}
	pick := window[cursor%len(window)]

	next := rot.WithCursor(sl, (cursor+1)%RotationWindow)
	if err := s.inv.SaveRotation(ctx, next); err != nil {
		// the unit is still served; the cursor stays where it was
		log.Warn("save rotation failed", "error", err)
	}
	metrics.AdsServed.WithLabelValues(slot).Inc()
	return pick.ID
}
