package domain

import "time"

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	ActorID   string                 `json:"actor_id,omitempty"`
	Action    string                 `json:"action"`
	Category  string                 `json:"category"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IP        string                 `json:"ip,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth       = "auth"
	AuditCategoryReward     = "reward"
	AuditCategoryBalance    = "balance"
	AuditCategoryAdmin      = "admin"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategorySecurity   = "security"
)

// Audit actions
const (
	AuditActionRegister      = "register"
	AuditActionLogin         = "login"
	AuditActionLogout        = "logout"
	AuditActionPasswordReset = "password_reset"

	AuditActionWatch        = "watch"
	AuditActionDailyBonus   = "daily_bonus"
	AuditActionSpecialTask  = "special_task"
	AuditActionWelcomeBonus = "welcome_bonus"
	AuditActionReferral     = "referral"

	AuditActionWithdrawalRequest = "withdrawal_request"
	AuditActionWithdrawalApprove = "withdrawal_approve"
	AuditActionWithdrawalReject  = "withdrawal_reject"
	AuditActionWithdrawalRefund  = "withdrawal_refund"

	AuditActionUserBan    = "user_ban"
	AuditActionUserUnban  = "user_unban"
	AuditActionAutoBan    = "auto_ban"
	AuditActionSetCoins   = "set_coins"
	AuditActionUserDelete = "user_delete"
	AuditActionSettings   = "settings_update"
	AuditActionAdsUpdate  = "ads_update"
)

// LedgerEvent is published for every confirmed balance or status change.
type LedgerEvent struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	ActorID      string    `json:"actor_id,omitempty"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
	Channel      string    `json:"channel,omitempty"`
	WithdrawalID string    `json:"withdrawal_id,omitempty"`
	At           time.Time `json:"at"`
}
