package anidb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/asakaze/anidex/internal/config"
	"github.com/asakaze/anidex/internal/models"
	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
)

const (
	protocolVersion = 3
	clientName      = "anidex"
	clientVersion   = 1

	// One request per datagram, 1400 bytes maximum each way.
	maxDatagram = 1400

	// The service enforces a global per-account cadence. Requests through
	// one session never go out closer together than this.
	requestInterval = 2 * time.Second
	readTimeout     = 2 * time.Second

	// Initial send plus three resends on timeout.
	sendAttempts = 4
)

// Commands that go out without a session key attached.
var noAuthCommands = map[string]bool{
	"PING":     true,
	"ENCRYPT":  true,
	"ENCODING": true,
	"AUTH":     true,
	"VERSION":  true,
}

// Masks selecting the fields the record decoders expect. Changing one
// without the other breaks the wire contract.
const (
	fileFmask  = "71c2fef800"
	fileAmask  = "00000000"
	animeAmask = "fce8ba014080f8"
)

// KeyStore persists the session key across process restarts
type KeyStore interface {
	SessionKey() (string, error)
	SaveSessionKey(key string) error
}

// AuthError is a server-side rejection of the AUTH command. It is fatal for
// the session and carries the server's message for the operator.
type AuthError struct {
	Code    Code
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (%s): %s", e.Code, e.Message)
}

// Client owns the UDP socket, the session key and the inter-request pacing.
// All requests serialize through it; the remote service rate-limits per
// account, not per connection, so there is exactly one of these per process.
type Client struct {
	username string
	password string
	conn     net.Conn
	keys     KeyStore
	logger   *logrus.Logger

	mu       sync.Mutex
	key      string
	nextSend time.Time

	interval time.Duration
	timeout  time.Duration
	attempts uint
}

// NewClient binds the local UDP port, connects it to the metadata service
// and loads any session key persisted by a previous run. No datagram is sent
// until the first request.
func NewClient(cfg *config.Config, keys KeyStore, logger *logrus.Logger) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", cfg.AniDBServer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.AniDBServer, err)
	}

	conn, err := net.DialUDP("udp", &net.UDPAddr{Port: cfg.AniDBLocalPort}, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}

	key, err := keys.SessionKey()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to load session key: %w", err)
	}

	return &Client{
		username: cfg.AniDBUsername,
		password: cfg.AniDBPassword,
		conn:     conn,
		keys:     keys,
		logger:   logger,
		key:      key,
		interval: requestInterval,
		timeout:  readTimeout,
		attempts: sendAttempts,
	}, nil
}

// Close shuts down the socket. A request already dispatched finishes first
// because Close waits for the session lock.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Request sends a command and returns its decoded response. The session key
// is attached (authenticating first if none is held) unless the command is on
// the no-auth list. A session-invalid or login-required response clears the
// key, re-authenticates once and retries the original command exactly once.
func (c *Client) Request(ctx context.Context, cmd *Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !noAuthCommands[cmd.Name()] {
		key, err := c.sessionKey(ctx)
		if err != nil {
			return nil, err
		}
		cmd.Arg("s", key)
	}

	res, err := c.exchange(ctx, cmd.String())
	if err != nil {
		return nil, err
	}

	if res.Code == CodeInvalidSession || res.Code == CodeLoginFirst {
		c.logger.WithField("code", res.Code.String()).Debug("Session expired, re-authenticating")
		c.key = ""

		key, err := c.login(ctx)
		if err != nil {
			return nil, err
		}

		cmd.Arg("s", key)
		return c.exchange(ctx, cmd.String())
	}

	return res, nil
}

// sessionKey returns the held key, logging in first if there is none.
// Callers hold c.mu.
func (c *Client) sessionKey(ctx context.Context) (string, error) {
	if c.key != "" {
		return c.key, nil
	}
	return c.login(ctx)
}

// login sends AUTH with the credentials and fixed client identifiers.
// Callers hold c.mu.
func (c *Client) login(ctx context.Context) (string, error) {
	cmd := NewCommand("AUTH").
		Arg("user", c.username).
		Arg("pass", c.password).
		Arg("protover", protocolVersion).
		Arg("client", clientName).
		Arg("clientver", clientVersion).
		Arg("enc", "UTF8")

	res, err := c.exchange(ctx, cmd.String())
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}

	switch res.Code {
	case CodeLoginAccepted:
	case CodeLoginAcceptedNewVersion:
		c.logger.Warn("A newer client version is available")
	default:
		return "", &AuthError{Code: res.Code, Message: res.Message}
	}

	c.key = res.Data()
	c.logger.Info("Authenticated with metadata service")

	if err := c.keys.SaveSessionKey(c.key); err != nil {
		c.logger.WithError(err).Warn("Failed to persist session key")
	}

	return c.key, nil
}

// exchange performs one paced send/receive round trip, resending on timeout
// up to the attempt budget. Every attempt re-arms the pacing clock.
func (c *Client) exchange(ctx context.Context, payload string) (*Response, error) {
	if len(payload) > maxDatagram {
		return nil, fmt.Errorf("command of %d bytes exceeds the %d byte datagram limit", len(payload), maxDatagram)
	}

	var res *Response

	err := retry.Do(
		func() error {
			if err := c.waitTurn(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			c.traceWire("->", payload)
			c.nextSend = time.Now().Add(c.interval)

			if _, err := c.conn.Write([]byte(payload)); err != nil {
				return retry.Unrecoverable(fmt.Errorf("send failed: %w", err))
			}

			if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
				return retry.Unrecoverable(err)
			}

			buf := make([]byte, maxDatagram)
			n, err := c.conn.Read(buf)
			if err != nil {
				if isTimeout(err) {
					return err
				}
				return retry.Unrecoverable(fmt.Errorf("receive failed: %w", err))
			}

			raw := string(buf[:n])
			c.traceWire("<-", raw)

			parsed, err := ParseResponse(raw)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("malformed response: %w", err))
			}

			res = parsed
			return nil
		},
		retry.Attempts(c.attempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("timed out waiting for response after %d attempts", c.attempts)
		}
		return nil, err
	}

	return res, nil
}

// waitTurn blocks until the pacing slot opens or the context is cancelled
func (c *Client) waitTurn(ctx context.Context) error {
	delay := time.Until(c.nextSend)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) traceWire(dir, payload string) {
	if !c.logger.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		c.logger.Tracef("%s %s", dir, line)
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// Ping checks that the service is reachable. Needs no authentication.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.Request(ctx, NewCommand("PING"))
	if err != nil {
		return err
	}
	if res.Code != CodePong {
		return unexpectedCode(res)
	}
	return nil
}

// FileByHash looks a file up by size and content fingerprint. A well-formed
// "no such file" response returns nil, nil.
func (c *Client) FileByHash(ctx context.Context, size int64, ed2k string) (*models.File, error) {
	cmd := NewCommand("FILE").
		Arg("size", size).
		Arg("ed2k", ed2k)

	return c.requestFile(ctx, cmd)
}

// FileByID looks a file up by its remote id
func (c *Client) FileByID(ctx context.Context, fid uint32) (*models.File, error) {
	cmd := NewCommand("FILE").Arg("fid", fid)

	return c.requestFile(ctx, cmd)
}

func (c *Client) requestFile(ctx context.Context, cmd *Command) (*models.File, error) {
	cmd.Arg("fmask", fileFmask).Arg("amask", fileAmask)

	res, err := c.Request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch res.Code {
	case CodeNoSuchFile:
		return nil, nil
	case CodeFile:
		return firstRecord(res, ParseFile)
	default:
		return nil, unexpectedCode(res)
	}
}

// AnimeByID looks an anime up by its remote id
func (c *Client) AnimeByID(ctx context.Context, aid uint32) (*models.Anime, error) {
	cmd := NewCommand("ANIME").
		Arg("aid", aid).
		Arg("amask", animeAmask)

	res, err := c.Request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch res.Code {
	case CodeNoSuchAnime:
		return nil, nil
	case CodeAnime:
		return firstRecord(res, ParseAnime)
	default:
		return nil, unexpectedCode(res)
	}
}

// EpisodeByID looks an episode up by its remote id
func (c *Client) EpisodeByID(ctx context.Context, eid uint32) (*models.Episode, error) {
	cmd := NewCommand("EPISODE").Arg("eid", eid)

	res, err := c.Request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch res.Code {
	case CodeNoSuchEpisode:
		return nil, nil
	case CodeEpisode:
		return firstRecord(res, ParseEpisode)
	default:
		return nil, unexpectedCode(res)
	}
}

// GroupByID looks a release group up by its remote id
func (c *Client) GroupByID(ctx context.Context, gid uint32) (*models.Group, error) {
	cmd := NewCommand("GROUP").Arg("gid", gid)

	res, err := c.Request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch res.Code {
	case CodeNoSuchGroup:
		return nil, nil
	case CodeGroup:
		return firstRecord(res, ParseGroup)
	default:
		return nil, unexpectedCode(res)
	}
}

func firstRecord[T any](res *Response, parse func(string) (*T, error)) (*T, error) {
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("response %s carries no record", res.Code)
	}
	return parse(res.Records[0])
}

func unexpectedCode(res *Response) error {
	return fmt.Errorf("unexpected response %s: %s", res.Code, res.Message)
}
