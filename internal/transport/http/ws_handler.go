package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chainquiz-service/internal/app"
	"chainquiz-service/internal/domain"
	"chainquiz-service/pkg/logger"
)

// WSHandler binds websocket connections to room sessions: join/leave/answer
// events flow in, state-change broadcasts flow out.
type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	AnswerIndex   int `json:"answerIndex"`
}

// ServeWS upgrades the request and wires the connection into the room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	identity := r.URL.Query().Get("identity")
	displayName := r.URL.Query().Get("name")
	if code == "" || identity == "" || displayName == "" {
		http.Error(w, "missing room code, identity, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := h.service.Join(code, identity, displayName); err != nil {
		_ = conn.WriteJSON(domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(code)
	if err != nil {
		_ = conn.WriteJSON(domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	left := false
	defer func() {
		if !left {
			// a dropped host resets the room; a dropped player just leaves
			h.service.Disconnected(code, identity)
		}
	}()

	send := make(chan domain.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("ws write error", "room", code, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- ev:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// sendEvent must never block forever: if the writer exited on a write
	// error the send channel is no longer drained.
	sendEvent := func(ev domain.Event) {
		select {
		case send <- ev:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendEvent(errorEvent("invalid answer payload"))
				continue
			}
			if err := h.service.SubmitAnswer(code, identity, payload.QuestionIndex, payload.AnswerIndex); err != nil {
				sendEvent(errorEvent(err.Error()))
			}
		case "leave":
			if err := h.service.Leave(code, identity); err != nil {
				sendEvent(errorEvent(err.Error()))
				continue
			}
			left = true
		default:
			sendEvent(errorEvent("unsupported message type"))
		}
		if left {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errorEvent(message string) domain.Event {
	return domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}}
}
