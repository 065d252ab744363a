package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chainquiz-service/internal/app"
	"chainquiz-service/internal/domain"
	"chainquiz-service/internal/ledger"
)

type wireEvent struct {
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

func newWSTestServer(t *testing.T) (*httptest.Server, *app.RoomService) {
	t.Helper()
	dispatcher := app.NewRewardDispatcher(ledger.NewNoopClient(), time.Second)
	service := app.NewRoomService(app.NewRegistry(), dispatcher, nil, nil, app.Defaults{TickInterval: time.Hour})

	router := mux.NewRouter()
	router.HandleFunc("/ws/{code}", NewWSHandler(service).ServeWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

func dialRoom(t *testing.T, server *httptest.Server, code, identity, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + code + "?identity=" + identity + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev wireEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func readEventOfType(t *testing.T, conn *websocket.Conn, want domain.EventType) wireEvent {
	t.Helper()
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev.Type == want {
			return ev
		}
	}
	t.Fatalf("never received %s", want)
	return wireEvent{}
}

func wsQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		Title: "Capitals",
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Paris", "Rome", "Oslo", "Bern"}, CorrectIndex: 0},
		},
		TimePerQuestion: 30,
		MaxPlayers:      10,
	}
}

func TestWSJoinReceivesRoomState(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dialRoom(t, server, snap.Code, "p1", "Alice")
	ev := readEvent(t, conn)
	if ev.Type != domain.EventRoomState {
		t.Fatalf("expected room-state first, got %s", ev.Type)
	}

	var state domain.RoomSnapshot
	if err := json.Unmarshal(ev.Payload, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.Players) != 1 || state.Players[0].Identity != "p1" {
		t.Fatalf("expected p1 in room state, got %+v", state.Players)
	}
}

func TestWSBroadcastsJoinAndStart(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := dialRoom(t, server, snap.Code, "p1", "Alice")
	readEventOfType(t, first, domain.EventRoomState)

	dialRoom(t, server, snap.Code, "p2", "Bob")
	joined := readEventOfType(t, first, domain.EventPlayerJoined)
	var payload domain.PlayerJoinedPayload
	if err := json.Unmarshal(joined.Payload, &payload); err != nil {
		t.Fatalf("decode join payload: %v", err)
	}
	if payload.Identity != "p2" || payload.PlayerCount != 2 {
		t.Fatalf("unexpected join payload %+v", payload)
	}

	if err := service.Start(snap.Code, "host-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	started := readEventOfType(t, first, domain.EventQuizStarted)
	var sp domain.QuizStartedPayload
	if err := json.Unmarshal(started.Payload, &sp); err != nil {
		t.Fatalf("decode start payload: %v", err)
	}
	if sp.Question.Text != "Capital of France?" || len(sp.Question.Options) != 4 {
		t.Fatalf("unexpected question %+v", sp.Question)
	}
}

func TestWSAnswerErrors(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dialRoom(t, server, snap.Code, "p1", "Alice")
	readEventOfType(t, conn, domain.EventRoomState)

	if err := service.Start(snap.Code, "host-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	readEventOfType(t, conn, domain.EventQuizStarted)

	// answer against the wrong question index is refused
	msg := map[string]interface{}{"type": "answer", "payload": answerPayload{QuestionIndex: 5, AnswerIndex: 0}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	ev := readEventOfType(t, conn, domain.EventError)
	var ep domain.ErrorPayload
	if err := json.Unmarshal(ev.Payload, &ep); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if ep.Message == "" {
		t.Fatal("expected an error message")
	}

	// a correct submission scores
	msg["payload"] = answerPayload{QuestionIndex: 0, AnswerIndex: 0}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		roomSnap, err := service.GetRoom(snap.Code)
		if err != nil {
			t.Fatalf("get room: %v", err)
		}
		if len(roomSnap.Leaderboard) == 1 && roomSnap.Leaderboard[0].Score == domain.DefaultQuestionPoints {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("answer never scored, leaderboard %+v", roomSnap.Leaderboard)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSJoinFailureSendsErrorEvent(t *testing.T) {
	server, service := newWSTestServer(t)
	def := wsQuiz()
	def.MaxPlayers = 1
	snap, err := service.CreateRoom(context.Background(), def, domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Join(snap.Code, "p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	conn := dialRoom(t, server, snap.Code, "p2", "Bob")
	ev := readEvent(t, conn)
	if ev.Type != domain.EventError {
		t.Fatalf("expected error event for full room, got %s", ev.Type)
	}
}

func TestWSLeaveMessageRemovesPlayer(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dialRoom(t, server, snap.Code, "p1", "Alice")
	readEventOfType(t, conn, domain.EventRoomState)

	if err := conn.WriteJSON(map[string]interface{}{"type": "leave"}); err != nil {
		t.Fatalf("write leave: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		roomSnap, err := service.GetRoom(snap.Code)
		if err != nil {
			t.Fatalf("get room: %v", err)
		}
		if len(roomSnap.Players) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("player never left, players %+v", roomSnap.Players)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSReaderExitsWhenClientStopsReading(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dialRoom(t, server, snap.Code, "p1", "Alice")

	// never read a single event; each junk message provokes an error event
	// until the outbound path backs up, then drop the connection
	junk := map[string]string{"type": "bogus"}
	for i := 0; i < 20000; i++ {
		_ = conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.WriteJSON(junk); err != nil {
			break
		}
	}
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		roomSnap, err := service.GetRoom(snap.Code)
		if err != nil {
			t.Fatalf("get room: %v", err)
		}
		if len(roomSnap.Players) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection never released the player, players %+v", roomSnap.Players)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSHostDisconnectResetsRoom(t *testing.T) {
	server, service := newWSTestServer(t)
	snap, err := service.CreateRoom(context.Background(), wsQuiz(), domain.RewardPolicy{}, "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	hostConn := dialRoom(t, server, snap.Code, "host-1", "Host")
	readEventOfType(t, hostConn, domain.EventRoomState)

	playerConn := dialRoom(t, server, snap.Code, "p1", "Alice")
	readEventOfType(t, playerConn, domain.EventRoomState)

	// abrupt close, no leave message
	_ = hostConn.Close()

	reset := readEventOfType(t, playerConn, domain.EventHostDisconnected)
	if reset.Type != domain.EventHostDisconnected {
		t.Fatalf("expected host-disconnected, got %s", reset.Type)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		roomSnap, err := service.GetRoom(snap.Code)
		if err != nil {
			t.Fatalf("get room: %v", err)
		}
		if len(roomSnap.Players) == 0 && roomSnap.State == domain.StateWaiting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room never reset, players %+v", roomSnap.Players)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
