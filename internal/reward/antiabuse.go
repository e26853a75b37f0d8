package reward

import (
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
)

const DefaultAbuseThreshold = 500 * time.Millisecond

// Monitor flags reward-earning actions that arrive faster than Threshold
// after the previous one. Single strike: the caller bans on the first hit.
type Monitor struct {
	Threshold time.Duration
}

func NewMonitor(threshold time.Duration) Monitor {
	if threshold <= 0 {
		threshold = DefaultAbuseThreshold
	}
	return Monitor{Threshold: threshold}
}

// Violation reports whether an action at now breaks the threshold. A user
// with no recorded action never violates.
func (m Monitor) Violation(u *domain.User, now time.Time) bool {
	if u == nil || u.LastActionTimestamp == nil {
		return false
	}
	th := m.Threshold
	if th <= 0 {
		th = DefaultAbuseThreshold
	}
	return now.Sub(*u.LastActionTimestamp) < th
}

// autoBan is the ban mutation written on a violation.
func autoBan(u *domain.User) error {
	u.IsBanned = true
	u.BanReason = domain.BanReasonAutoAntiCheat
	return nil
}
