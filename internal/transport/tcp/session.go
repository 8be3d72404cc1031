package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avolkov/linechat-server/internal/chat"
	"github.com/avolkov/linechat-server/internal/store"
)

// Tokens of the authentication handshake.
const (
	kindLogin    = "LOGIN"
	kindSignup   = "SIGNUP"
	replySuccess = "SUCCESS"
	replyFail    = "FAIL"
)

// Session owns one client connection from accept to close. It implements
// chat.Peer once authenticated.
type Session struct {
	id   string
	conn net.Conn
	in   *bufio.Scanner

	registry *chat.Registry
	history  *chat.History
	router   *chat.Router
	creds    store.Store
	log      zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once

	// username is bound once by a successful handshake and immutable after.
	username string
}

func newSession(conn net.Conn, registry *chat.Registry, history *chat.History, router *chat.Router, creds store.Store, logger *zerolog.Logger) *Session {
	id := uuid.NewString()
	sessLog := logger.With().
		Str("session_id", id).
		Str("addr", conn.RemoteAddr().String()).
		Logger()

	return &Session{
		id:       id,
		conn:     conn,
		in:       bufio.NewScanner(conn),
		registry: registry,
		history:  history,
		router:   router,
		creds:    creds,
		log:      sessLog,
	}
}

// Run drives the session through its lifetime: handshake, receive loop,
// cleanup. It blocks until the connection is done.
func (s *Session) Run(ctx context.Context) {
	defer s.terminate()

	s.log.Info().Msg("client connected")
	if !s.authenticate(ctx) {
		return
	}
	s.receiveLoop()
}

// authenticate runs the three-line handshake until it succeeds or the
// stream dies. A failed attempt replies FAIL and keeps the connection open
// so the client can retry.
func (s *Session) authenticate(ctx context.Context) bool {
	for {
		kind, ok := s.readLine()
		if !ok {
			return false
		}
		username, ok := s.readLine()
		if !ok {
			return false
		}
		password, ok := s.readLine()
		if !ok {
			return false
		}

		if s.resolveAuth(ctx, kind, username, password) {
			joined, err := s.join(username)
			if err != nil {
				return false
			}
			if joined {
				s.log.Info().Str("username", s.username).Str("kind", kind).Msg("authenticated")
				s.registry.BroadcastRoster()
				s.replayHistory()
				return true
			}
			// Already online under this name; the first session keeps it.
			s.log.Debug().Str("username", username).Msg("username already online")
		}

		if err := s.Send(replyFail); err != nil {
			return false
		}
	}
}

// join binds the username, reserves it in the registry and writes the
// SUCCESS reply as one step under the write lock, so no broadcast can reach
// the peer ahead of its own handshake reply. Broadcasters never hold the
// registry lock while writing to a peer, so taking both locks here cannot
// deadlock.
func (s *Session) join(username string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.username = username
	if !s.registry.Add(s) {
		s.username = ""
		return false, nil
	}
	if _, err := s.conn.Write([]byte(replySuccess + "\n")); err != nil {
		return false, err
	}
	return true, nil
}

// resolveAuth checks the credentials against the store. Store failures fail
// closed: the client sees FAIL, never an authenticated state.
func (s *Session) resolveAuth(ctx context.Context, kind, username, password string) bool {
	if username == "" || password == "" {
		return false
	}

	switch kind {
	case kindLogin:
		ok, err := s.creds.Validate(ctx, username, password)
		if err != nil {
			s.log.Error().Err(err).Msg("credential lookup failed")
			return false
		}
		if !ok {
			s.log.Debug().Str("username", username).Msg("login rejected")
			return false
		}
	case kindSignup:
		if err := s.creds.Register(ctx, username, password); err != nil {
			if errors.Is(err, store.ErrUserExists) || errors.Is(err, store.ErrInvalidUsername) {
				s.log.Debug().Err(err).Str("username", username).Msg("signup rejected")
			} else {
				s.log.Error().Err(err).Msg("credential insert failed")
			}
			return false
		}
	default:
		s.log.Debug().Str("kind", kind).Msg("unknown handshake kind")
		return false
	}

	return true
}

// replayHistory pushes the buffered public messages to this session only,
// in original order.
func (s *Session) replayHistory() {
	for _, line := range s.history.Snapshot() {
		if err := s.Send(line); err != nil {
			s.log.Warn().Err(err).Msg("history replay aborted")
			return
		}
	}
}

func (s *Session) receiveLoop() {
	for {
		line, ok := s.readLine()
		if !ok {
			return
		}
		if err := s.router.Dispatch(line, s); err != nil {
			if errors.Is(err, chat.ErrLogout) {
				s.log.Info().Str("username", s.username).Msg("logout requested")
			}
			return
		}
	}
}

// readLine blocks for the next inbound line. It returns false on EOF or any
// transport error; errors terminate the session, never the server.
func (s *Session) readLine() (string, bool) {
	if s.in.Scan() {
		return s.in.Text(), true
	}
	if err := s.in.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn().Err(err).Msg("read failed")
	}
	return "", false
}

// Send writes one newline-terminated line. The mutex keeps concurrent
// writers (this session's loop, registry broadcasts) from interleaving
// partial writes; it serializes per session, never across sessions.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

// Username implements chat.Peer.
func (s *Session) Username() string { return s.username }

// terminate closes the stream, leaves the registry and pushes the refreshed
// roster. It runs exactly once whether the session exits via EOF, I/O
// error, logout or server shutdown.
func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		if s.username != "" {
			s.registry.Remove(s.username)
			s.registry.BroadcastRoster()
		}
		s.log.Info().Str("username", s.username).Msg("client disconnected")
	})
}
