package reward

import (
	"errors"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
)

// Reason classifies a failed (or partially applied) operation.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonIneligible  Reason = "ineligible"
	ReasonSuspended   Reason = "suspended"
	ReasonValidation  Reason = "validation"
	ReasonPartial     Reason = "partial"
	ReasonUnavailable Reason = "unavailable"
	ReasonNotFound    Reason = "not_found"
)

// Result is returned by every ledger operation. Failures are values, not errors.
type Result struct {
	OK              bool                      `json:"ok"`
	Reason          Reason                    `json:"reason,omitempty"`
	Message         string                    `json:"message"`
	CooldownSeconds int                       `json:"cooldown_seconds,omitempty"`
	Amount          int64                     `json:"amount,omitempty"`
	Withdrawal      *domain.WithdrawalRequest `json:"withdrawal,omitempty"`
}

func success(msg string, amount int64) Result {
	return Result{OK: true, Message: msg, Amount: amount}
}

func fail(reason Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}

const (
	msgUserNotFound = "User not found."
	msgSuspended    = "Account suspended."
	msgAutoBanned   = "Suspicious activity detected. Your account has been suspended."
	msgUnavailable  = "Could not save your progress. Please try again."
	msgSignedOut    = "Session ended. Please log in again."
)

// refusal lets a Mutation abort a write with a user-facing result, e.g. when
// the freshly read record no longer qualifies.
type refusal struct {
	res Result
}

func (r *refusal) Error() string { return r.res.Message }

func refuse(reason Reason, msg string) error {
	return &refusal{res: fail(reason, msg)}
}

func asRefusal(err error) (Result, bool) {
	var r *refusal
	if errors.As(err, &r) {
		return r.res, true
	}
	return Result{}, false
}
