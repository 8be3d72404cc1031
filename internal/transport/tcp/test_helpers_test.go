package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/linechat-server/internal/chat"
	"github.com/avolkov/linechat-server/internal/log"
	"github.com/avolkov/linechat-server/internal/store/file"
)

// startTestServer runs a full server stack (file store, registry, history,
// router) on a loopback port and returns its address.
func startTestServer(t *testing.T) string {
	t.Helper()

	st, err := file.New(filepath.Join(t.TempDir(), "users.txt"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := log.Nop()
	history := chat.NewHistory(50)
	registry := chat.NewRegistry(history, logger)
	router := chat.NewRouter(registry, logger)
	srv := NewServer("127.0.0.1:0", registry, history, router, st, logger)

	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
		if err := <-serveErr; err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	})

	return srv.Addr().String()
}

// testClient is a minimal line-protocol client for exercising the server.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()

	_ = c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) recv() string {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("recv: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *testClient) expect(want string) {
	c.t.Helper()

	if got := c.recv(); got != want {
		c.t.Fatalf("expected line %q, got %q", want, got)
	}
}

// handshake sends the three-line auth request and asserts the reply.
func (c *testClient) handshake(kind, username, password, wantReply string) {
	c.t.Helper()

	c.send(kind)
	c.send(username)
	c.send(password)
	c.expect(wantReply)
}

// expectClosed asserts the server closed the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := c.r.ReadString('\n'); !errors.Is(err, io.EOF) {
		c.t.Fatalf("expected EOF, got %v", err)
	}
}
