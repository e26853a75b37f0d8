package ws

import (
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// client → server
type Inbound struct {
	Type string `json:"type"`
}

// server → client
type StatePayload struct {
	User     *domain.User       `json:"user"`
	Settings domain.AppSettings `json:"settings"`
	Earned   *reward.Earned     `json:"earned,omitempty"`
}

type ResultPayload struct {
	Op     string        `json:"op"`
	Result reward.Result `json:"result"`
}

type LogoutPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
