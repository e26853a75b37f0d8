package reward

import (
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
)

// EarnedTTL is how long a coins-earned event stays visible.
const EarnedTTL = 3 * time.Second

type Earned struct {
	Amount    int64     `json:"amount"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is the session's mirror of server state.
type State struct {
	User     *domain.User       `json:"user"`
	Settings domain.AppSettings `json:"settings"`
	Earned   *Earned            `json:"earned,omitempty"`
}

// Presenter receives every state change a session produces. Calls may come
// from the store's notification goroutine.
type Presenter interface {
	UserChanged(u *domain.User)
	SettingsChanged(s domain.AppSettings)
	CoinsEarned(e Earned)
	Result(op string, r Result)
	LoggedOut(reason string)
}

type NopPresenter struct{}

func (NopPresenter) UserChanged(*domain.User)           {}
func (NopPresenter) SettingsChanged(domain.AppSettings) {}
func (NopPresenter) CoinsEarned(Earned)                 {}
func (NopPresenter) Result(string, Result)              {}
func (NopPresenter) LoggedOut(string)                   {}
