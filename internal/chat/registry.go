package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Push-line formats of the wire protocol.
const (
	rosterPrefix      = "/users "
	privateFromPrefix = "Private from "
	privateToPrefix   = "Private to "
	notOnlineSuffix   = " is not online."
)

// Registry is the process-wide map of online usernames to their peers. It is
// the single source of truth for who is online: entries are added right
// after a session authenticates and removed exactly once when it terminates.
type Registry struct {
	history *History
	log     *zerolog.Logger

	mu    sync.Mutex
	peers map[string]Peer
}

// NewRegistry creates an empty registry that records broadcasts into history.
func NewRegistry(history *History, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		history: history,
		log:     logger,
		peers:   make(map[string]Peer),
	}
}

// Add registers a peer under its username. It returns false when the
// username is already online; the registry never holds the same name twice.
func (r *Registry) Add(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Username()
	if _, online := r.peers[name]; online {
		return false
	}
	r.peers[name] = p
	return true
}

// Remove deletes the username from the registry. Removing a name that is not
// present is a no-op, so the cleanup path stays idempotent.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, username)
}

// Names returns the online usernames, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the current peers so sends happen outside the lock; a
// blocked socket must never stall registry mutations.
func (r *Registry) snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Lookup returns the peer registered under username, if any.
func (r *Registry) Lookup(username string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[username]
	return p, ok
}

// Broadcast appends text to the history buffer, then delivers it to every
// online peer except exclude. The two locks are taken sequentially, never
// nested. A failed send is logged and skipped; the failing peer's own read
// loop will reap it.
func (r *Registry) Broadcast(text string, exclude Peer) {
	r.history.Append(text)

	for _, p := range r.snapshot() {
		if p == exclude {
			continue
		}
		r.deliver(p, text)
	}
}

// PrivateSend delivers body to recipient and a confirmation to the sender.
// When the recipient is offline only the sender hears about it. Private
// traffic never touches the history buffer.
func (r *Registry) PrivateSend(recipient, body string, sender Peer) {
	target, online := r.Lookup(recipient)
	if !online {
		r.deliver(sender, "User "+recipient+notOnlineSuffix)
		return
	}
	r.deliver(target, privateFromPrefix+sender.Username()+": "+body)
	r.deliver(sender, privateToPrefix+recipient+": "+body)
}

// BroadcastRoster pushes the full sorted roster to every online peer,
// including whoever just joined or triggered the leave.
func (r *Registry) BroadcastRoster() {
	line := rosterPrefix + strings.Join(r.Names(), " ")
	for _, p := range r.snapshot() {
		r.deliver(p, line)
	}
}

func (r *Registry) deliver(p Peer, line string) {
	if err := p.Send(line); err != nil {
		r.log.Warn().Err(err).Str("username", p.Username()).Msg("send failed")
	}
}
