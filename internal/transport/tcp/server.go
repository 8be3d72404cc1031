// Package tcp implements the line-oriented TCP transport: a listener that
// accepts client connections and a session per connection speaking the
// newline-delimited chat protocol.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avolkov/linechat-server/internal/chat"
	"github.com/avolkov/linechat-server/internal/store"
)

// Server accepts client connections and runs one session goroutine per
// connection. The accept loop never blocks on a session's lifetime.
type Server struct {
	addr     string
	registry *chat.Registry
	history  *chat.History
	router   *chat.Router
	creds    store.Store
	log      *zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer builds a server; call ListenAndServe (or Listen + Serve) to run it.
func NewServer(addr string, registry *chat.Registry, history *chat.History, router *chat.Router, creds store.Store, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		addr:     addr,
		registry: registry,
		history:  history,
		router:   router,
		creds:    creds,
		log:      logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds the listening socket. Failure to bind is the only fatal
// startup error the server has.
func (srv *Server) Listen() error {
	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.addr, err)
	}

	srv.mu.Lock()
	srv.listener = ln
	srv.mu.Unlock()

	srv.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (srv *Server) Addr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

// Serve accepts connections until the listener is closed by Shutdown. ctx is
// handed to each session for its credential-store calls.
func (srv *Server) Serve(ctx context.Context) error {
	srv.mu.Lock()
	ln := srv.listener
	srv.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			srv.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		sess := newSession(conn, srv.registry, srv.history, srv.router, srv.creds, srv.log)
		srv.track(conn)
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			defer srv.untrack(conn)
			sess.Run(ctx)
		}()
	}
}

// ListenAndServe binds the socket and serves in one call.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	if err := srv.Listen(); err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Shutdown closes the listener and every live connection, then waits for
// the session goroutines to run their cleanup or for ctx to expire. Each
// session still deregisters itself through its own exit path.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mu.Lock()
	if srv.listener != nil {
		_ = srv.listener.Close()
	}
	for conn := range srv.conns {
		_ = conn.Close()
	}
	srv.mu.Unlock()

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (srv *Server) track(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.conns[conn] = struct{}{}
}

func (srv *Server) untrack(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.conns, conn)
}
