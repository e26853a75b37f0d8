package ws

const (
	// client - server
	MsgPing    = "ping"
	MsgRefresh = "refresh"

	// server - client
	MsgReady    = "ready"
	MsgPong     = "pong"
	MsgState    = "state"
	MsgUser     = "user"
	MsgSettings = "settings"
	MsgEarned   = "earned"
	MsgResult   = "result"
	MsgLogout   = "logout"
	MsgError    = "error"
)
