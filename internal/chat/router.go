package chat

import (
	"strings"

	"github.com/rs/zerolog"
)

// Inbound command tokens of the wire protocol.
const (
	cmdPrivate = "/msg "
	cmdLogout  = "/logout"
)

const invalidPrivateNotice = "Invalid private message format. Use: /msg recipient message"

// Router interprets authenticated inbound lines and dispatches them to the
// registry. It holds no per-connection state; one router serves all sessions.
type Router struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewRouter creates a router dispatching into registry.
func NewRouter(registry *Registry, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{registry: registry, log: logger}
}

// Dispatch routes one inbound line from sender. Precedence: logout, then
// private message, then public broadcast. It returns ErrLogout when the peer
// asked to disconnect; every other outcome keeps the connection open.
func (rt *Router) Dispatch(line string, sender Peer) error {
	if line == cmdLogout {
		return ErrLogout
	}

	if strings.HasPrefix(line, cmdPrivate) {
		rt.dispatchPrivate(line, sender)
		return nil
	}

	rt.registry.Broadcast(sender.Username()+": "+line, sender)
	return nil
}

func (rt *Router) dispatchPrivate(line string, sender Peer) {
	// "/msg <recipient> <body>": recipient is the second field, body is
	// everything after the second space.
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		if err := sender.Send(invalidPrivateNotice); err != nil {
			rt.log.Warn().Err(err).Str("username", sender.Username()).Msg("send failed")
		}
		return
	}
	rt.registry.PrivateSend(parts[1], parts[2], sender)
}
