package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/chipgrid/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels must be initialized")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other")

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	if hub.ClientCount(sessionID) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount(sessionID))
	}

	hub.unregisterClient(client1)

	if hub.ClientCount(sessionID) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", hub.ClientCount(sessionID))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastUpdate(t *testing.T) {
	hub := NewHub()
	sessionID := "broadcast-test"

	client := newTestClient(hub, sessionID)
	bystander := newTestClient(hub, "elsewhere")
	hub.registerClient(client)
	hub.registerClient(bystander)

	gameState := &engine.GameState{
		Name:   "Test",
		Tick:   4,
		Player: &engine.PlayerView{Position: engine.Position{X: 5, Y: 3}, Alive: true, Chips: 2},
	}
	to := engine.Position{X: 5, Y: 3}
	events := []engine.Event{
		{Kind: engine.EventMoved, Tick: 4, Actor: "player", To: &to, Direction: engine.Right},
		{Kind: engine.EventPickedUp, Tick: 4, Item: "chip"},
	}

	hub.BroadcastUpdate(sessionID, gameState, events)

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}

		if message.SessionID != sessionID {
			t.Errorf("Expected sessionID %s, got %s", sessionID, message.SessionID)
		}
		if message.Event != EventStateUpdate {
			t.Errorf("Expected event '%s', got %s", EventStateUpdate, message.Event)
		}
		if message.GameState.Player.Position.X != 5 || message.GameState.Player.Position.Y != 3 || message.GameState.Tick != 4 {
			t.Error("GameState not correctly transmitted")
		}
		if len(message.Events) != 2 || message.Events[0].Direction != engine.Right || message.Events[1].Item != "chip" {
			t.Errorf("Events not correctly transmitted: %+v", message.Events)
		}

	case <-time.After(100 * time.Millisecond):
		t.Error("No message received within timeout")
	}

	select {
	case <-bystander.send:
		t.Error("Clients of other sessions should not receive the update")
	default:
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "plain")
	hub.registerClient(client)

	hub.BroadcastToSession("plain", &engine.GameState{Tick: 7})

	data := <-client.send
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.GameState.Tick != 7 || len(message.Events) != 0 {
		t.Errorf("Unexpected message: %+v", message)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte, 1)}
	hub.registerClient(slow)

	hub.BroadcastToSession("slow", &engine.GameState{Tick: 1})
	hub.BroadcastToSession("slow", &engine.GameState{Tick: 2})

	if hub.ClientCount("slow") != 0 {
		t.Error("Client with a full send buffer should be dropped")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != "custom-event" {
			t.Errorf("Expected event 'custom-event', got %s", message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubReplaysLastFrame(t *testing.T) {
	hub := NewHub()

	hub.BroadcastToSession("late", &engine.GameState{Tick: 3})
	hub.BroadcastToSession("late", &engine.GameState{Tick: 9})
	hub.BroadcastEvent("late", "note", "ignored for replay")

	client := newTestClient(hub, "late")
	hub.registerClient(client)

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventStateUpdate || message.GameState.Tick != 9 {
			t.Errorf("Expected the latest state update, got %+v", message)
		}
	default:
		t.Fatal("Late client should receive the last frame on registration")
	}

	fresh := newTestClient(hub, "fresh")
	hub.registerClient(fresh)
	select {
	case <-fresh.send:
		t.Error("A session without updates has nothing to replay")
	default:
	}
}

func TestHubSessionIDsIgnoreCase(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "AbC1")
	hub.registerClient(client)

	if hub.ClientCount("abc1") != 1 || hub.ClientCount("ABC1") != 1 {
		t.Error("Client count should not depend on session ID case")
	}

	hub.BroadcastToSession("abc1", &engine.GameState{Tick: 1})
	select {
	case <-client.send:
	default:
		t.Error("Update for a differently cased ID should reach the client")
	}
}

func TestHubCloseSession(t *testing.T) {
	hub := NewHub()
	client1 := newTestClient(hub, "closing")
	client2 := newTestClient(hub, "closing")
	other := newTestClient(hub, "staying")
	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)
	hub.BroadcastToSession("closing", &engine.GameState{Tick: 5})
	<-client1.send
	<-client2.send

	hub.CloseSession("closing")

	for _, c := range []*Client{client1, client2} {
		data, ok := <-c.send
		if !ok {
			t.Fatal("Expected a session_closed message before the channel closes")
		}
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventSessionClosed {
			t.Errorf("Expected %s, got %s", EventSessionClosed, message.Event)
		}
		if _, ok := <-c.send; ok {
			t.Error("Send channel should be closed after session_closed")
		}
	}

	if hub.ClientCount("closing") != 0 {
		t.Error("Closed session should have no clients")
	}
	if hub.ClientCount("staying") != 1 {
		t.Error("Other sessions must keep their clients")
	}

	// The frame is forgotten, so a new client of a reused ID starts clean
	late := newTestClient(hub, "closing")
	hub.registerClient(late)
	select {
	case <-late.send:
		t.Error("Closed session should not replay an old frame")
	default:
	}
}

func newWSServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = "default"
		}
		hub.ServeWS(w, r, sessionID)
	}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := newWSServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 1 })

	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 0 })
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := newWSServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("msg-test") == 1 })

	gameState := &engine.GameState{
		Timer:    50,
		Complete: true,
		Player:   &engine.PlayerView{Position: engine.Position{X: 10, Y: 15}},
	}
	hub.BroadcastUpdate("msg-test", gameState, []engine.Event{{Kind: engine.EventLevelComplete, Tick: 12}})

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, messageData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message Message
	if err := json.Unmarshal(messageData, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if message.SessionID != "msg-test" {
		t.Errorf("Expected sessionID 'msg-test', got %s", message.SessionID)
	}
	if message.GameState.Player.Position != (engine.Position{X: 10, Y: 15}) {
		t.Error("GameState position not correctly received")
	}
	if message.GameState.Timer != 50 || !message.GameState.Complete {
		t.Error("GameState timer/complete not correctly received")
	}
	if len(message.Events) != 1 || message.Events[0].Kind != engine.EventLevelComplete {
		t.Errorf("Expected level_complete event, got %+v", message.Events)
	}
}

func TestWebSocketCustomEvent(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := newWSServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"?session=evt", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("evt") == 1 })

	hub.BroadcastEvent("evt", "session_deleted", map[string]string{"id": "evt"})

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	if message.Event != "session_deleted" {
		t.Errorf("Expected session_deleted, got %s", message.Event)
	}
}

func TestWebSocketLateJoinAndClose(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := newWSServer(hub)
	defer server.Close()

	hub.BroadcastToSession("replay", &engine.GameState{Name: "First Steps", Tick: 21})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"?session=REPLAY", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read replayed frame: %v", err)
	}
	if message.GameState == nil || message.GameState.Tick != 21 {
		t.Fatalf("Expected replayed frame at tick 21, got %+v", message)
	}

	hub.CloseSession("replay")

	message = Message{}
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read session_closed: %v", err)
	}
	if message.Event != EventSessionClosed {
		t.Errorf("Expected %s, got %s", EventSessionClosed, message.Event)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Connection should be closed after session_closed")
	}
}
