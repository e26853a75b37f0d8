package domain

import "time"

// WithdrawalStatus represents withdrawal processing status
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected WithdrawalStatus = "REJECTED"
)

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

type PaymentMethod string

const (
	PaymentMethodJazzCash  PaymentMethod = "JazzCash"
	PaymentMethodEasypaisa PaymentMethod = "Easypaisa"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodJazzCash || m == PaymentMethodEasypaisa
}

// WithdrawalRequest is a cash-out. Amount is in coins and already debited.
type WithdrawalRequest struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	UserName     string           `json:"user_name"`
	FullName     string           `json:"full_name"`
	MobileNumber string           `json:"mobile_number"`
	Amount       int64            `json:"amount"`
	AmountPKR    int64            `json:"amount_pkr"`
	Method       PaymentMethod    `json:"method"`
	Status       WithdrawalStatus `json:"status"`
	IsNewUser    bool             `json:"is_new_user"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}

// WithdrawRequest is what the user submits.
type WithdrawRequest struct {
	AmountPKR    int64         `json:"amount_pkr"`
	Method       PaymentMethod `json:"method"`
	FullName     string        `json:"full_name"`
	MobileNumber string        `json:"mobile_number"`
}
