package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Handler exposes the session engine over JSON/HTTP.
type Handler struct {
	engine *app.SessionEngine
	log    logrus.FieldLogger
}

func NewHandler(engine *app.SessionEngine, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{engine: engine, log: log}
}

// Routes registers every endpoint, including the participant websocket, on a new mux.
func (h *Handler) Routes(ws *WSHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /users", h.registerUser)
	mux.HandleFunc("GET /users/{userID}", h.getUser)
	mux.HandleFunc("GET /users/{userID}/quizzes", h.listQuizzes)

	mux.HandleFunc("POST /quizzes", h.createQuiz)
	mux.HandleFunc("GET /quizzes/{quizID}", h.quizDetails)
	mux.HandleFunc("PATCH /quizzes/{quizID}", h.editQuiz)
	mux.HandleFunc("POST /quizzes/{quizID}/activate", h.activateQuiz)
	mux.HandleFunc("POST /quizzes/{quizID}/next", h.nextQuestion)
	mux.HandleFunc("GET /quizzes/{quizID}/current", h.currentQuestion)
	mux.HandleFunc("POST /quizzes/{quizID}/answers", h.submitAnswer)
	mux.HandleFunc("GET /quizzes/{quizID}/statistics", h.statistics)
	mux.HandleFunc("GET /quizzes/{quizID}/participants", h.participants)
	mux.HandleFunc("GET /quizzes/{quizID}/leaderboard", h.leaderboard)

	if ws != nil {
		mux.HandleFunc("GET /ws", ws.ServeWS)
	}
	return h.logRequests(mux)
}

type registerUserRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type nextQuestionRequest struct {
	ExpectedQuestionID string `json:"expectedQuestionId"`
}

type submitAnswerRequest struct {
	Participant string `json:"participant"`
	QuestionID  string `json:"questionId"`
	OptionID    string `json:"optionId"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.engine.RegisterUser(r.Context(), req.ID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.GetUser(r.Context(), r.PathValue("userID"))
	respond(w, user, err)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.engine.ListQuizzes(r.Context(), r.PathValue("userID"))
	respond(w, quizzes, err)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var in domain.QuizInput
	if err := decodeBody(r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := h.engine.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	details, err := h.engine.QuizDetails(r.Context(), quiz.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

func (h *Handler) quizDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.engine.QuizDetails(r.Context(), r.PathValue("quizID"))
	respond(w, details, err)
}

func (h *Handler) editQuiz(w http.ResponseWriter, r *http.Request) {
	var edit domain.QuizEdit
	if err := decodeBody(r, &edit, false); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := h.engine.EditQuiz(r.Context(), r.PathValue("quizID"), edit)
	respond(w, quiz, err)
}

func (h *Handler) activateQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.engine.ActivateQuiz(r.Context(), r.PathValue("quizID"))
	respond(w, quiz, err)
}

// nextQuestion advances the quiz by one question. With expectedQuestionId the
// call succeeds only while that question is current, so organizers retrying or
// racing each other move the quiz once. Without it every call advances once
// more, one after another.
func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	var req nextQuestionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.engine.NextQuestion(r.Context(), r.PathValue("quizID"), req.ExpectedQuestionID)
	respond(w, res, err)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.CurrentQuestion(r.Context(), r.PathValue("quizID"))
	respond(w, view, err)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.engine.SubmitAnswer(r.Context(), r.PathValue("quizID"), req.Participant, req.QuestionID, req.OptionID)
	respond(w, res, err)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Statistics(r.Context(), r.PathValue("quizID"))
	respond(w, stats, err)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.engine.Participants(r.Context(), r.PathValue("quizID"))
	respond(w, participants, err)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, domain.Validationf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	entries, err := h.engine.TopParticipants(r.Context(), r.PathValue("quizID"), limit)
	respond(w, entries, err)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the recorder usable for the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func decodeBody(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

func respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	writeJSON(w, statusFor(kind), errorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
