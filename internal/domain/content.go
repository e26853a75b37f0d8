package domain

import "time"

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type SupportStatus string

const (
	SupportStatusOpen   SupportStatus = "OPEN"
	SupportStatusClosed SupportStatus = "CLOSED"
)

type SupportSender string

const (
	SupportSenderUser  SupportSender = "USER"
	SupportSenderAdmin SupportSender = "ADMIN"
)

type SupportReply struct {
	Sender    SupportSender `json:"sender"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// SupportMessage is a support thread opened by a user.
type SupportMessage struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	UserEmail string         `json:"user_email"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Status    SupportStatus  `json:"status"`
	Replies   []SupportReply `json:"replies"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type PasswordResetStatus string

const (
	PasswordResetPending  PasswordResetStatus = "PENDING"
	PasswordResetResolved PasswordResetStatus = "RESOLVED"
)

type PasswordResetRequest struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Email     string              `json:"email"`
	Contact   string              `json:"contact,omitempty"`
	Status    PasswordResetStatus `json:"status"`
	OTP       string              `json:"otp,omitempty"`
	OTPExpiry *time.Time          `json:"otp_expiry,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
