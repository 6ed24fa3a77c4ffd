package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(DefaultConfig(), rules.Freeform{}, nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg protocol.ClientMessage) {
	t.Helper()
	data, err := protocol.EncodeClient(msg)
	if err != nil {
		t.Fatalf("EncodeClient() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	msg, err := protocol.DecodeServer(data)
	if err != nil {
		t.Fatalf("DecodeServer(%s) error = %v", data, err)
	}
	return msg
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_CreateAndGetMatch(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/matches", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/matches error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if created.Key == "" {
		t.Fatal("empty key")
	}

	get, err := http.Get(ts.URL + "/api/matches/" + created.Key)
	if err != nil {
		t.Fatalf("GET match error = %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("GET status = %d, want 200", get.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/api/matches/nope")
	if err != nil {
		t.Fatalf("GET missing error = %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("GET missing status = %d, want 404", missing.StatusCode)
	}
}

func TestServer_SubscribeAndBroadcast(t *testing.T) {
	_, ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)

	send(t, a, protocol.SubscribeToMatch{Key: "abc123"})
	if _, ok := recv(t, a).(protocol.MatchConnectionSuccess); !ok {
		t.Fatal("a: expected MatchConnectionSuccess")
	}
	send(t, b, protocol.SubscribeToMatch{Key: "abc123"})
	if _, ok := recv(t, b).(protocol.MatchConnectionSuccess); !ok {
		t.Fatal("b: expected MatchConnectionSuccess")
	}

	send(t, a, protocol.DoAction{Key: "abc123", Action: protocol.Lift(12)})

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		st, ok := recv(t, conn).(protocol.CurrentMatchState)
		if !ok {
			t.Fatalf("%s: expected CurrentMatchState", name)
		}
		if len(st.Actions) != 1 || st.Actions[0].Action != protocol.Lift(12) {
			t.Errorf("%s: Actions = %v, want [Lift(12)]", name, st.Actions)
		}
	}
}

func TestServer_IllegalActionResendsState(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts)

	send(t, c, protocol.SubscribeToMatch{Key: "k"})
	recv(t, c)

	send(t, c, protocol.DoAction{Key: "k", Action: protocol.Place(30)})
	if _, ok := recv(t, c).(protocol.TechnicalError); !ok {
		t.Fatal("expected TechnicalError")
	}
	st, ok := recv(t, c).(protocol.CurrentMatchState)
	if !ok {
		t.Fatal("expected CurrentMatchState after rejection")
	}
	if len(st.Actions) != 0 {
		t.Errorf("Actions = %v, want empty", st.Actions)
	}
}

func TestServer_RollbackFlag(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts)

	send(t, c, protocol.SubscribeToMatch{Key: "k"})
	recv(t, c)
	send(t, c, protocol.DoAction{Key: "k", Action: protocol.Lift(12)})
	recv(t, c)

	send(t, c, protocol.Rollback{Key: "k"})
	st, ok := recv(t, c).(protocol.CurrentMatchState)
	if !ok {
		t.Fatal("expected CurrentMatchState")
	}
	if !st.IsRollback {
		t.Error("IsRollback = false, want true")
	}
	if len(st.Actions) != 0 {
		t.Errorf("Actions = %v, want empty", st.Actions)
	}
}

func TestServer_TimeDrift(t *testing.T) {
	s, ts := newTestServer(t)
	bounced := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return bounced }

	c := dial(t, ts)
	sent := time.Date(2024, 1, 15, 11, 59, 59, 0, time.UTC)
	send(t, c, protocol.TimeDriftCheck{Send: sent})

	resp, ok := recv(t, c).(protocol.TimeDriftResponse)
	if !ok {
		t.Fatal("expected TimeDriftResponse")
	}
	if !resp.Send.Equal(sent) {
		t.Errorf("Send = %v, want %v", resp.Send, sent)
	}
	if !resp.Bounced.Equal(bounced) {
		t.Errorf("Bounced = %v, want %v", resp.Bounced, bounced)
	}
}

func TestServer_UnknownMatchWithoutAutoCreate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoCreate = false
	s := New(cfg, rules.Freeform{}, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	c := dial(t, ts)
	send(t, c, protocol.SubscribeToMatch{Key: "missing"})
	if _, ok := recv(t, c).(protocol.TechnicalError); !ok {
		t.Error("expected TechnicalError for unknown match")
	}
}
