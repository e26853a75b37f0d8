package reward

import (
	"math"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
)

type Channel string

const (
	ChannelHome     Channel = "home"
	ChannelEarnMore Channel = "earn-more"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelHome, ChannelEarnMore:
		return Channel(s), true
	}
	return "", false
}

// Policy is the per-channel slice of AppSettings.
type Policy struct {
	DailyLimit  int
	PerCooldown int // <= 0 disables cooldowns
	Cooldown    time.Duration
	Reward      int64
}

func PolicyFor(ch Channel, s domain.AppSettings) Policy {
	if ch == ChannelEarnMore {
		return Policy{
			DailyLimit:  s.DailyAnotherVideoLimit,
			PerCooldown: s.AnotherVideosPerCooldown,
			Cooldown:    time.Duration(s.AnotherCooldownMinutes) * time.Minute,
			Reward:      s.CoinsPerAnotherVideo,
		}
	}
	return Policy{
		DailyLimit:  s.DailyVideoLimit,
		PerCooldown: s.VideosPerCooldown,
		Cooldown:    time.Duration(s.CooldownMinutes) * time.Minute,
		Reward:      s.CoinsPerVideo,
	}
}

func quotaOf(u *domain.User, ch Channel) domain.ChannelQuota {
	if ch == ChannelEarnMore {
		return u.EarnMore
	}
	return u.Home
}

func setQuota(u *domain.User, ch Channel, q domain.ChannelQuota) {
	if ch == ChannelEarnMore {
		u.EarnMore = q
		return
	}
	u.Home = q
}

type Verdict int

const (
	Allowed Verdict = iota
	CoolingDown
	LimitReached
)

// Decision is the outcome of Authorize. Next is the quota state to persist
// when the watch is allowed.
type Decision struct {
	Verdict         Verdict
	Remaining       time.Duration
	Next            domain.ChannelQuota
	CooldownStarted bool
}

func (d Decision) RemainingSeconds() int {
	return int(math.Round(d.Remaining.Seconds()))
}

// Rollover returns q as seen at now: a stale day resets the count and
// clears any cooldown.
func Rollover(q domain.ChannelQuota, now time.Time) domain.ChannelQuota {
	if clock.SameDay(q.LastVideoWatchDate, now) {
		return q
	}
	return domain.ChannelQuota{LastVideoWatchDate: q.LastVideoWatchDate}
}

// Authorize decides one watch. When the incremented count hits the limit on
// a cooldown multiple the limit wins and no cooldown is set.
func Authorize(q domain.ChannelQuota, p Policy, now time.Time) Decision {
	q = Rollover(q, now)

	if q.CooldownUntil != nil {
		if now.Before(*q.CooldownUntil) {
			return Decision{Verdict: CoolingDown, Remaining: q.CooldownUntil.Sub(now), Next: q}
		}
		q.CooldownUntil = nil
	}

	if q.VideosWatchedToday >= p.DailyLimit {
		return Decision{Verdict: LimitReached, Next: q}
	}

	q.VideosWatchedToday++
	q.LastVideoWatchDate = clock.DayKey(now)

	d := Decision{Verdict: Allowed, Next: q}
	if p.PerCooldown > 0 && q.VideosWatchedToday%p.PerCooldown == 0 && q.VideosWatchedToday < p.DailyLimit {
		until := now.Add(p.Cooldown)
		d.Next.CooldownUntil = &until
		d.CooldownStarted = true
	}
	return d
}
