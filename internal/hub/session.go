// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package hub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlog/hearthlog/internal/backoff"
	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/metrics"
)

// ErrAuthInvalid means the hub rejected the configured access token. This is
// terminal for the credential: the session stops instead of hammering the
// hub with a bad token, and the operator has to fix the configuration.
var ErrAuthInvalid = errors.New("hub rejected access token")

// State is the session's position in its connection lifecycle.
type State int32

// Session lifecycle states. Any error during Authenticating, Subscribing or
// Streaming moves the session back to Disconnected.
const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateStreaming
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultAuthTimeout      = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	maxFrameSize            = 4 * 1024 * 1024 // 4 MB, attribute blobs can be large
)

// SessionConfig holds hub connection settings.
type SessionConfig struct {
	// URL is the hub endpoint, http(s) or ws(s); http schemes are converted.
	URL string

	// AccessToken authenticates the session.
	AccessToken string

	// EventTypes lists the event subscriptions to establish after auth.
	// Default: ["state_changed"].
	EventTypes []string

	// ReconnectBase is the first reconnect delay. Default 1s.
	ReconnectBase time.Duration

	// ReconnectCap is the maximum reconnect delay. Default 60s.
	ReconnectCap time.Duration

	// HandshakeTimeout bounds the websocket dial. Default 10s.
	HandshakeTimeout time.Duration

	// AuthTimeout bounds the authentication and subscription exchanges.
	// Default 10s.
	AuthTimeout time.Duration
}

// Session owns exactly one live authenticated connection to the hub and
// feeds decoded messages to a registered handler. It reconnects forever on
// transient failures with exponential backoff; only an auth rejection stops
// it.
//
// The read loop is single-threaded: one Serve call, one reader. The ping
// keepalive runs on its own goroutine per connection (WriteControl is safe
// alongside the reader).
type Session struct {
	cfg     SessionConfig
	retry   backoff.Exponential
	nextID  atomic.Int64
	state   atomic.Int32
	handler func(Message)
	observe func(State)
	mu      sync.Mutex // guards handler/observe registration
}

// NewSession creates a session. Call SetHandler before Serve; events
// received with no handler registered are dropped.
func NewSession(cfg SessionConfig) *Session {
	if len(cfg.EventTypes) == 0 {
		cfg.EventTypes = []string{"state_changed"}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	return &Session{
		cfg: cfg,
		retry: backoff.Exponential{
			Base: cfg.ReconnectBase,
			Cap:  cfg.ReconnectCap,
		},
	}
}

// SetHandler registers the callback receiving every decoded event message.
// The callback runs on the read loop goroutine and must not block for long;
// the ingest queue behind it is responsible for buffering.
func (s *Session) SetHandler(fn func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// SetStateObserver registers the connectivity observer (the health monitor).
func (s *Session) SetStateObserver(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe = fn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// String implements fmt.Stringer for supervisor logging.
func (s *Session) String() string { return "hub-session" }

// Serve runs the connection state machine until the context is canceled or
// authentication is rejected. It implements suture.Service.
func (s *Session) Serve(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateDisconnected)
			return err
		}

		conn, err := s.connect(ctx)
		if err != nil {
			logging.Warn().Err(err).Str("url", s.cfg.URL).Msg("hub connect failed")
			if !s.waitBackoff(ctx, attempt) {
				return ctx.Err()
			}
			attempt++
			continue
		}

		streamed, err := s.runConnection(ctx, conn)
		_ = conn.Close()

		if errors.Is(err, ErrAuthInvalid) {
			s.setState(StateDisconnected)
			return err
		}
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		// A connection that reached streaming resets the backoff ladder.
		if streamed {
			attempt = 0
		}
		logging.Warn().Err(err).Msg("hub session interrupted, reconnecting")
		metrics.HubReconnects.Inc()
		if !s.waitBackoff(ctx, attempt) {
			return ctx.Err()
		}
		attempt++
	}
}

// runConnection drives one connection through authentication, subscription
// and streaming. The bool reports whether the streaming state was reached.
func (s *Session) runConnection(ctx context.Context, conn *websocket.Conn) (bool, error) {
	if err := s.authenticate(conn); err != nil {
		return false, err
	}
	if err := s.subscribe(conn); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	return true, s.stream(ctx, conn)
}

// connect dials the hub websocket endpoint.
func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	s.setState(StateConnecting)

	wsURL, err := websocketURL(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("build websocket url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  s.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// authenticate performs the token handshake: await auth_required, send the
// token, await auth_ok or auth_invalid. Auth timeout applies per read.
func (s *Session) authenticate(conn *websocket.Conn) error {
	s.setState(StateAuthenticating)

	for {
		msg, err := s.readMessage(conn, s.cfg.AuthTimeout)
		if err != nil {
			return fmt.Errorf("auth handshake: %w", err)
		}

		switch m := msg.(type) {
		case AuthRequiredMessage:
			req := authRequest{Type: "auth", AccessToken: s.cfg.AccessToken}
			if err := s.writeJSON(conn, req); err != nil {
				return fmt.Errorf("send auth: %w", err)
			}
		case AuthOKMessage:
			logging.Info().Str("hub_version", m.Version).Msg("hub authentication succeeded")
			return nil
		case AuthInvalidMessage:
			logging.Error().Str("reason", m.Reason).Msg("hub authentication rejected, check HUB_ACCESS_TOKEN")
			return fmt.Errorf("%w: %s", ErrAuthInvalid, m.Reason)
		default:
			logging.Debug().Str("type", msg.MessageType()).Msg("ignoring message during auth handshake")
		}
	}
}

// subscribe issues one subscription request per configured event type and
// waits for each confirmation before events on it are considered valid.
func (s *Session) subscribe(conn *websocket.Conn) error {
	s.setState(StateSubscribing)

	pending := make(map[int64]string, len(s.cfg.EventTypes))
	for _, eventType := range s.cfg.EventTypes {
		id := s.nextID.Add(1)
		req := subscribeRequest{ID: id, Type: "subscribe_events", EventType: eventType}
		if err := s.writeJSON(conn, req); err != nil {
			return fmt.Errorf("send subscription for %s: %w", eventType, err)
		}
		pending[id] = eventType
	}

	for len(pending) > 0 {
		msg, err := s.readMessage(conn, s.cfg.AuthTimeout)
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case ResultMessage:
			eventType, ok := pending[m.ID]
			if !ok {
				logging.Debug().Int64("id", m.ID).Msg("discarding unmatched result")
				continue
			}
			if !m.Success {
				detail := ""
				if m.Error != nil {
					detail = m.Error.Message
				}
				return fmt.Errorf("subscription for %s refused: %s", eventType, detail)
			}
			delete(pending, m.ID)
			logging.Info().Str("event_type", eventType).Msg("hub subscription confirmed")
		case EventMessage:
			// Possible once earlier subscriptions in the same batch are live.
			s.dispatch(m)
		default:
			logging.Debug().Str("type", msg.MessageType()).Msg("ignoring message while subscribing")
		}
	}
	return nil
}

// stream is the steady-state read loop. It returns on the first read error;
// the caller owns reconnection.
func (s *Session) stream(ctx context.Context, conn *websocket.Conn) error {
	s.setState(StateStreaming)

	if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	})

	// ReadMessage does not watch the context; closing the connection is the
	// only way to unblock it on shutdown.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()
	go s.pingLoop(ctx, conn, readDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("hub closed connection: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			metrics.HubMessagesReceived.WithLabelValues("unknown").Inc()
			logging.Warn().Err(err).Msg("discarding undecodable hub message")
			continue
		}
		metrics.HubMessagesReceived.WithLabelValues(msg.MessageType()).Inc()

		switch m := msg.(type) {
		case EventMessage:
			s.dispatch(m)
		case ResultMessage:
			logging.Debug().Int64("id", m.ID).Msg("discarding unmatched result")
		default:
			logging.Debug().Str("type", msg.MessageType()).Msg("unexpected message while streaming")
		}
	}
}

// pingLoop keeps the connection alive and lets dead peers be detected
// through the read deadline.
func (s *Session) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(defaultPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(defaultWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Debug().Err(err).Msg("hub ping failed")
				return
			}
		}
	}
}

// dispatch hands one event message to the registered handler.
func (s *Session) dispatch(m EventMessage) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(m)
	}
}

// readMessage reads and decodes one frame with a per-read deadline.
func (s *Session) readMessage(conn *websocket.Conn, timeout time.Duration) (Message, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(data)
}

// writeJSON sends one request with a write deadline.
func (s *Session) writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteJSON(v)
}

// waitBackoff sleeps for the attempt's delay. Returns false when the
// context ended during the wait.
func (s *Session) waitBackoff(ctx context.Context, attempt int) bool {
	s.setState(StateDisconnected)
	select {
	case <-time.After(s.retry.Delay(attempt)):
		return true
	case <-ctx.Done():
		return false
	}
}

// setState records a lifecycle transition and notifies the observer.
func (s *Session) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old == state {
		return
	}
	metrics.HubConnectionState.Set(float64(state))
	logging.Debug().
		Str("from", old.String()).
		Str("to", state.String()).
		Msg("hub session state change")

	s.mu.Lock()
	observe := s.observe
	s.mu.Unlock()
	if observe != nil {
		observe(state)
	}
}

// websocketURL converts the configured hub URL to its websocket form and
// appends the API path when the configured URL has none.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/websocket"
	}
	return u.String(), nil
}
