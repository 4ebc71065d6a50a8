package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// WSHandler is the participant channel: one connection per participant and
// quiz, carrying request/response messages only.
type WSHandler struct {
	engine   *app.SessionEngine
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.SessionEngine, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		engine: engine,
		log:    log,
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
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type leaderboardPayload struct {
	Limit int `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// ServeWS upgrades HTTP requests to websockets and answers participant messages:
//
//	answer      {questionId, optionId} -> answerResult
//	current     {}                     -> question
//	leaderboard {limit}                -> leaderboard
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	participant := r.URL.Query().Get("participant")
	if quizID == "" || participant == "" {
		http.Error(w, "missing quizId or participant", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"quiz": quizID, "participant": participant})
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !reply(h.handle(ctx, quizID, participant, inbound)) {
			break
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, quizID, participant string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.Validationf("invalid answer payload"))
		}
		res, err := h.engine.SubmitAnswer(ctx, quizID, participant, payload.QuestionID, payload.OptionID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: res}
	case "current":
		view, err := h.engine.CurrentQuestion(ctx, quizID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "question", Payload: view}
	case "leaderboard":
		var payload leaderboardPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errorMessage(domain.Validationf("invalid leaderboard payload"))
			}
		}
		entries, err := h.engine.TopParticipants(ctx, quizID, payload.Limit)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "leaderboard", Payload: entries}
	default:
		return errorMessage(domain.Validationf("unsupported message type %q", inbound.Type))
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Message: err.Error(),
		Kind:    domain.KindOf(err).String(),
	}}
}
