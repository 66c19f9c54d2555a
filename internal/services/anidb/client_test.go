package anidb

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type memKeys struct {
	key   string
	saved int
}

func (m *memKeys) SessionKey() (string, error) { return m.key, nil }

func (m *memKeys) SaveSessionKey(key string) error {
	m.key = key
	m.saved++
	return nil
}

// serveWire answers datagrams on the far end of a pipe. Returning an empty
// reply from the handler drops the datagram, which the client sees as a
// timeout.
func serveWire(conn net.Conn, handler func(cmd string) string) {
	go func() {
		buf := make([]byte, maxDatagram)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			reply := handler(strings.TrimSuffix(string(buf[:n]), "\n"))
			if reply == "" {
				continue
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()
}

func newTestClient(t *testing.T, handler func(cmd string) string) (*Client, *memKeys) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	serveWire(remote, handler)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	keys := &memKeys{}
	return &Client{
		username: "user",
		password: "secret",
		conn:     local,
		keys:     keys,
		logger:   logger,
		interval: time.Millisecond,
		timeout:  200 * time.Millisecond,
		attempts: sendAttempts,
	}, keys
}

func TestRequestAttachesSessionKey(t *testing.T) {
	var seen string
	client, _ := newTestClient(t, func(cmd string) string {
		seen = cmd
		return "320 NO SUCH FILE"
	})
	client.key = "abc123"

	res, err := client.Request(context.Background(), NewCommand("FILE").Arg("fid", 7))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if res.Code != CodeNoSuchFile {
		t.Errorf("Unexpected code %s", res.Code)
	}
	if !strings.HasSuffix(seen, "&s=abc123") {
		t.Errorf("Session key missing from command %q", seen)
	}
}

func TestRequestAuthenticatesWhenNoKey(t *testing.T) {
	auths := 0
	client, keys := newTestClient(t, func(cmd string) string {
		if strings.HasPrefix(cmd, "AUTH ") {
			auths++
			return "200 sess42 LOGIN ACCEPTED"
		}
		if !strings.Contains(cmd, "s=sess42") {
			return "501 LOGIN FIRST"
		}
		return "320 NO SUCH FILE"
	})

	if _, err := client.Request(context.Background(), NewCommand("FILE").Arg("fid", 7)); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if auths != 1 {
		t.Errorf("Expected 1 authentication, got %d", auths)
	}
	if keys.key != "sess42" || keys.saved != 1 {
		t.Errorf("Session key not persisted: %+v", keys)
	}
}

func TestRequestReauthenticatesOnInvalidSession(t *testing.T) {
	auths := 0
	client, _ := newTestClient(t, func(cmd string) string {
		if strings.HasPrefix(cmd, "AUTH ") {
			auths++
			return "200 fresh LOGIN ACCEPTED"
		}
		if strings.Contains(cmd, "s=stale") {
			return "506 INVALID SESSION"
		}
		return "320 NO SUCH FILE"
	})
	client.key = "stale"

	res, err := client.Request(context.Background(), NewCommand("FILE").Arg("fid", 7))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if res.Code != CodeNoSuchFile {
		t.Errorf("Unexpected code %s after re-authentication", res.Code)
	}
	if auths != 1 {
		t.Errorf("Expected exactly 1 re-authentication, got %d", auths)
	}
	if client.key != "fresh" {
		t.Errorf("Expected renewed session key, got %q", client.key)
	}
}

func TestRequestAuthRejected(t *testing.T) {
	client, _ := newTestClient(t, func(cmd string) string {
		return "500 LOGIN FAILED"
	})

	_, err := client.Request(context.Background(), NewCommand("FILE").Arg("fid", 7))
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.Code != CodeLoginFailed {
		t.Errorf("Unexpected rejection code %s", authErr.Code)
	}
}

func TestPingResendsOnTimeout(t *testing.T) {
	pings := 0
	client, _ := newTestClient(t, func(cmd string) string {
		pings++
		if pings == 1 {
			return "" // drop the first datagram
		}
		return "300 PONG"
	})
	client.timeout = 30 * time.Millisecond

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if pings != 2 {
		t.Errorf("Expected 2 send attempts, got %d", pings)
	}
}

func TestPingTimesOutAfterAllAttempts(t *testing.T) {
	client, _ := newTestClient(t, func(cmd string) string {
		return ""
	})
	client.timeout = 20 * time.Millisecond
	client.attempts = 2

	err := client.Ping(context.Background())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestRequestPaced(t *testing.T) {
	client, _ := newTestClient(t, func(cmd string) string {
		return "300 PONG"
	})
	client.interval = 60 * time.Millisecond

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("First ping failed: %v", err)
	}

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Second ping failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Second request went out after %v, expected pacing delay", elapsed)
	}
}

func TestExchangeRejectsOversizedCommand(t *testing.T) {
	client, _ := newTestClient(t, func(cmd string) string {
		t.Error("Oversized command must not reach the wire")
		return ""
	})

	_, err := client.exchange(context.Background(), strings.Repeat("a", maxDatagram+1))
	if err == nil || !strings.Contains(err.Error(), "datagram limit") {
		t.Errorf("Expected datagram limit error, got %v", err)
	}
}
