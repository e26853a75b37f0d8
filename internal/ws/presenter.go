package ws

import (
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
)

// Presenter pushes a ledger session's state changes to every connection
// of its user.
type Presenter struct {
	hub    *Hub
	userID string
}

// Presenter returns the presenter for userID. It has the shape of a
// reward.PresenterFactory.
func (h *Hub) Presenter(userID string) reward.Presenter {
	return &Presenter{hub: h, userID: userID}
}

func (p *Presenter) UserChanged(u *domain.User) {
	p.hub.Send(p.userID, Frame{Type: MsgUser, Data: u.Public()})
}

func (p *Presenter) SettingsChanged(s domain.AppSettings) {
	p.hub.Send(p.userID, Frame{Type: MsgSettings, Data: s})
}

func (p *Presenter) CoinsEarned(e reward.Earned) {
	p.hub.Send(p.userID, Frame{Type: MsgEarned, Data: e})
}

func (p *Presenter) Result(op string, r reward.Result) {
	p.hub.Send(p.userID, Frame{Type: MsgResult, Data: ResultPayload{Op: op, Result: r}})
}

// LoggedOut tells every device and then closes their connections.
func (p *Presenter) LoggedOut(reason string) {
	p.hub.Send(p.userID, Frame{Type: MsgLogout, Data: LogoutPayload{Reason: reason}})
	p.hub.Disconnect(p.userID)
}

// StateFrame renders a session snapshot.
func StateFrame(st reward.State) Frame {
	return Frame{Type: MsgState, Data: StatePayload{User: st.User, Settings: st.Settings, Earned: st.Earned}}
}
