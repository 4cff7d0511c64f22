package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ticarena/game/engine"
	"ticarena/game/session"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(zap.NewNop())

	if hub.games == nil {
		t.Error("games map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("hub channels not initialized")
	}
}

func TestRegisterAndUnregisterWatcher(t *testing.T) {
	hub := NewHub(zap.NewNop())

	client := &Client{
		hub:    hub,
		gameID: "ab12",
		send:   make(chan []byte, 16),
	}

	hub.registerClient(client)
	if !hub.games["ab12"][client] {
		t.Fatal("client not registered under its game")
	}

	hub.unregisterClient(client)
	if _, exists := hub.games["ab12"]; exists {
		t.Error("empty game entry should be removed")
	}
	if _, open := <-client.send; open {
		t.Error("send channel should be closed")
	}
}

func TestBroadcastReachesOnlyGameWatchers(t *testing.T) {
	hub := NewHub(zap.NewNop())

	watcher := &Client{hub: hub, gameID: "ab12", send: make(chan []byte, 16)}
	other := &Client{hub: hub, gameID: "zz99", send: make(chan []byte, 16)}
	hub.registerClient(watcher)
	hub.registerClient(other)

	board := engine.NewBoard()
	board[1][1] = engine.X
	hub.broadcastMessage(&Message{
		GameID:    "ab12",
		Event:     "state_update",
		GameState: &session.GameState{Board: board, GameStatus: session.StatusPlaying},
	})

	select {
	case data := <-watcher.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if msg.GameID != "ab12" || msg.GameState.Board[1][1] != engine.X {
			t.Errorf("broadcast = %+v", msg)
		}
	default:
		t.Fatal("watcher received nothing")
	}

	select {
	case <-other.send:
		t.Error("watcher of another game received the update")
	default:
	}
}

func TestBroadcastDropsStalledWatcher(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// Zero-capacity channel simulates a watcher that never drains.
	stalled := &Client{hub: hub, gameID: "ab12", send: make(chan []byte)}
	hub.registerClient(stalled)

	hub.broadcastMessage(&Message{GameID: "ab12", Event: "state_update"})

	if _, exists := hub.games["ab12"]; exists {
		t.Error("stalled watcher should have been dropped")
	}
}

func TestBroadcastNeverBlocksCaller(t *testing.T) {
	hub := NewHub(zap.NewNop())
	// No Run loop: the queue fills and further broadcasts must drop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast("ab12", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked the caller")
	}
}

func TestServeWSEndToEnd(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("game"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?game=ab12"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration runs through the hub loop; give it a moment.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast("ab12", &session.GameState{
		Board:      engine.NewBoard(),
		GameStatus: session.StatusWaiting,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.GameID != "ab12" || msg.Event != "state_update" {
		t.Errorf("message = %+v", msg)
	}
	if msg.GameState.GameStatus != session.StatusWaiting {
		t.Errorf("status = %q", msg.GameState.GameStatus)
	}
}
