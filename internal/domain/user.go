package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// BanReason records why an account is suspended. Empty means not banned.
type BanReason string

const (
	BanReasonNone          BanReason = ""
	BanReasonManual        BanReason = "MANUAL"
	BanReasonAutoAntiCheat BanReason = "AUTO_ANTI_CHEAT"
)

// ChannelQuota is the per-channel daily video state.
type ChannelQuota struct {
	VideosWatchedToday int        `json:"videos_watched_today"`
	LastVideoWatchDate string     `json:"last_video_watch_date,omitempty"` // YYYY-MM-DD (UTC)
	CooldownUntil      *time.Time `json:"cooldown_until,omitempty"`
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Role         Role   `json:"role"`

	Coins int64 `json:"coins"`

	IsBanned  bool      `json:"is_banned"`
	BanReason BanReason `json:"ban_reason,omitempty"`

	Home     ChannelQuota `json:"home"`
	EarnMore ChannelQuota `json:"earn_more"`

	LastDailyBonus          *time.Time `json:"last_daily_bonus,omitempty"`
	HasReceivedWelcomeBonus bool       `json:"has_received_welcome_bonus"`
	LastSpecialTaskClaim    string     `json:"last_special_task_claim,omitempty"` // YYYY-MM-DD (UTC)

	LastActionTimestamp *time.Time `json:"last_action_timestamp,omitempty"`

	ReferralCode        string `json:"referral_code"`
	ReferredBy          string `json:"referred_by,omitempty"`
	ReferralsCount      int    `json:"referrals_count"`
	ReferralBonusEarned int64  `json:"referral_bonus_earned"`

	LastSeenAnnouncementTimestamp *time.Time `json:"last_seen_announcement_timestamp,omitempty"`

	AccountCreatedAt time.Time `json:"account_created_at"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Clone returns a deep copy so callers can mutate a candidate without
// touching the mirrored record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Home = u.Home.clone()
	c.EarnMore = u.EarnMore.clone()
	c.LastDailyBonus = cloneTime(u.LastDailyBonus)
	c.LastActionTimestamp = cloneTime(u.LastActionTimestamp)
	c.LastSeenAnnouncementTimestamp = cloneTime(u.LastSeenAnnouncementTimestamp)
	return &c
}

// Public strips credentials for API responses.
func (u *User) Public() *User {
	c := u.Clone()
	if c != nil {
		c.PasswordHash = ""
	}
	return c
}

func (q ChannelQuota) clone() ChannelQuota {
	q.CooldownUntil = cloneTime(q.CooldownUntil)
	return q
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr is a small helper for optional timestamps.
func TimePtr(t time.Time) *time.Time { return &t }
