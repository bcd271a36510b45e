// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testToken = "test-access-token"

// mockHub upgrades inbound connections and hands each one to a scripted
// handler. The handler index lets reconnect tests script different behavior
// per connection.
type mockHub struct {
	t        *testing.T
	upgrader websocket.Upgrader
	handle   func(conn *websocket.Conn, connNum int)

	mu    sync.Mutex
	conns int
}

func (h *mockHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.conns++
	n := h.conns
	h.mu.Unlock()

	h.handle(conn, n)
}

func (h *mockHub) connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

// handshake runs the server side of the auth exchange. Returns false when
// the presented token did not match and auth_invalid was sent.
func handshake(t *testing.T, conn *websocket.Conn) bool {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2026.8.1"}); err != nil {
		t.Errorf("send auth_required: %v", err)
		return false
	}
	var req map[string]any
	if err := conn.ReadJSON(&req); err != nil {
		t.Errorf("read auth request: %v", err)
		return false
	}
	if req["access_token"] != testToken {
		_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return false
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2026.8.1"}); err != nil {
		t.Errorf("send auth_ok: %v", err)
		return false
	}
	return true
}

// confirmSubscriptions acknowledges n subscribe_events requests.
func confirmSubscriptions(t *testing.T, conn *websocket.Conn, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read subscription %d: %v", i, err)
			return
		}
		if req["type"] != "subscribe_events" {
			t.Errorf("request type = %v, want subscribe_events", req["type"])
		}
		id, _ := req["id"].(float64)
		if err := conn.WriteJSON(map[string]any{"id": int64(id), "type": "result", "success": true}); err != nil {
			t.Errorf("confirm subscription %d: %v", i, err)
			return
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, entityID, state string) {
	t.Helper()
	err := conn.WriteJSON(map[string]any{
		"id":   1,
		"type": "event",
		"event": map[string]any{
			"event_type": "state_changed",
			"time_fired": "2026-08-27T10:00:00Z",
			"context":    map[string]any{"id": "ctx-1"},
			"data": map[string]any{
				"entity_id": entityID,
				"new_state": map[string]any{"entity_id": entityID, "state": state},
			},
		},
	})
	if err != nil {
		t.Errorf("send event: %v", err)
	}
}

// blockUntilClosed parks the server side until the client disconnects.
func blockUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testSession(url string) *Session {
	return NewSession(SessionConfig{
		URL:           url,
		AccessToken:   testToken,
		ReconnectBase: 10 * time.Millisecond,
		ReconnectCap:  50 * time.Millisecond,
	})
}

func TestSessionStreamsEvents(t *testing.T) {
	hub := &mockHub{t: t}
	hub.handle = func(conn *websocket.Conn, _ int) {
		if !handshake(t, conn) {
			return
		}
		confirmSubscriptions(t, conn, 1)
		sendEvent(t, conn, "light.kitchen", "on")
		sendEvent(t, conn, "sensor.kitchen_temp", "21.5")
		blockUntilClosed(conn)
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sess := testSession(srv.URL)
	events := make(chan EventMessage, 10)
	sess.SetHandler(func(m Message) {
		if ev, ok := m.(EventMessage); ok {
			events <- ev
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Serve(ctx) }()

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Event.Data.EntityID)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if got[0] != "light.kitchen" || got[1] != "sensor.kitchen_temp" {
		t.Errorf("received entities %v", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestSessionAuthInvalid(t *testing.T) {
	hub := &mockHub{t: t}
	hub.handle = func(conn *websocket.Conn, _ int) {
		_ = conn.WriteJSON(map[string]any{"type": "auth_required"})
		var req map[string]any
		_ = conn.ReadJSON(&req)
		_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sess := testSession(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sess.Serve(ctx)
	if !errors.Is(err, ErrAuthInvalid) {
		t.Errorf("Serve() = %v, want ErrAuthInvalid", err)
	}
	if sess.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", sess.State())
	}
}

func TestSessionReconnects(t *testing.T) {
	hub := &mockHub{t: t}
	hub.handle = func(conn *websocket.Conn, connNum int) {
		if !handshake(t, conn) {
			return
		}
		confirmSubscriptions(t, conn, 1)
		if connNum == 1 {
			sendEvent(t, conn, "light.first", "on")
			return // drop the connection
		}
		sendEvent(t, conn, "light.second", "on")
		blockUntilClosed(conn)
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sess := testSession(srv.URL)
	events := make(chan EventMessage, 10)
	sess.SetHandler(func(m Message) {
		if ev, ok := m.(EventMessage); ok {
			events <- ev
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Serve(ctx) }()

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Event.Data.EntityID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d, got %v", i, got)
		}
	}
	if got[0] != "light.first" || got[1] != "light.second" {
		t.Errorf("received entities %v", got)
	}
	if hub.connections() < 2 {
		t.Errorf("connections = %d, want at least 2", hub.connections())
	}

	cancel()
	<-done
}

func TestSessionStateObserver(t *testing.T) {
	hub := &mockHub{t: t}
	hub.handle = func(conn *websocket.Conn, _ int) {
		if !handshake(t, conn) {
			return
		}
		confirmSubscriptions(t, conn, 1)
		blockUntilClosed(conn)
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sess := testSession(srv.URL)
	streaming := make(chan struct{})
	var once sync.Once
	sess.SetStateObserver(func(st State) {
		if st == StateStreaming {
			once.Do(func() { close(streaming) })
		}
	})
	sess.SetHandler(func(Message) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Serve(ctx) }()

	select {
	case <-streaming:
	case <-time.After(5 * time.Second):
		t.Fatal("session never reached streaming state")
	}
	if sess.State() != StateStreaming {
		t.Errorf("State() = %s, want streaming", sess.State())
	}

	cancel()
	<-done
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"http converts", "http://hub.local:8123", "ws://hub.local:8123/api/websocket", false},
		{"https converts", "https://hub.local", "wss://hub.local/api/websocket", false},
		{"ws passes through", "ws://hub.local/api/websocket", "ws://hub.local/api/websocket", false},
		{"explicit path kept", "http://hub.local/custom/ws", "ws://hub.local/custom/ws", false},
		{"root path replaced", "http://hub.local/", "ws://hub.local/api/websocket", false},
		{"unsupported scheme", "ftp://hub.local", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := websocketURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("websocketURL() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("websocketURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("websocketURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
