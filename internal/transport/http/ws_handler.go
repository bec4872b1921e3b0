package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// heartbeatInterval paces player liveness refreshes; it must stay well
// under the presence TTL.
const heartbeatInterval = 5 * time.Second

type Handler struct {
	service  *app.GameService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service *app.GameService, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/sessions", h.CreateSession)
	mux.HandleFunc("/join", h.Join)
	mux.HandleFunc("/ws/host", h.ServeHost)
	mux.HandleFunc("/ws/play", h.ServePlayer)
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createSessionRequest struct {
	QuizID string `json:"quizId"`
	HostID string `json:"hostId"`
}

type joinRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type joinResponse struct {
	Player  domain.Player  `json:"player"`
	Session domain.Session `json:"session"`
}

type answerPayload struct {
	OptionIndex   int `json:"optionIndex"`
	QuestionIndex int `json:"questionIndex"`
}

// CreateSession launches a waiting session for a quiz.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.CreateSession(r.Context(), req.QuizID, req.HostID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// Join resolves a join code, creates the player record and returns the
// identity used on the player socket.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	player, session, err := h.service.Join(r.Context(), req.Code, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, joinResponse{Player: player, Session: session})
}

// ServeHost is the operator socket: it starts the game, advances phases and
// receives every phase update plus persistence failure notices.
func (h *Handler) ServeHost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwarderDone := make(chan struct{})
	forwarding := false

	go writeLoop(conn, send, writerDone, h.log)

	startForwarder := func(runner *app.Runner) {
		if forwarding {
			return
		}
		forwarding = true
		go func() {
			defer close(forwarderDone)
			h.forwardHost(runner, send, closeSignals)
		}()
	}

	if runner, ok := h.service.Runner(sessionID); ok {
		startForwarder(runner)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			runner, err := h.service.Start(r.Context(), sessionID)
			if err != nil {
				send <- errorFrame(err)
				continue
			}
			startForwarder(runner)
		case "next":
			if runner, ok := h.service.Runner(sessionID); ok {
				runner.Advance()
			} else {
				send <- errorFrame(domain.ErrSessionNotActive)
			}
		case "abort":
			if runner, ok := h.service.Runner(sessionID); ok {
				runner.Abort()
			} else {
				send <- errorFrame(domain.ErrSessionNotActive)
			}
		default:
			send <- errorFrame(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	if forwarding {
		<-forwarderDone
	}
	close(send)
	<-writerDone
}

// ServePlayer is the participant socket: it registers presence, mirrors
// phase updates and forwards answers and power-up requests.
func (h *Handler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	playerID := r.URL.Query().Get("playerId")
	if sessionID == "" || playerID == "" {
		http.Error(w, "missing sessionId or playerId", http.StatusBadRequest)
		return
	}

	snap, err := h.service.Snapshot(r.Context(), sessionID, playerID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrPlayerNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	presence := h.service.Presence()
	if err := presence.Join(r.Context(), sessionID, playerID); err != nil {
		h.log.Warn("presence join failed", zap.String("session", sessionID), zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := presence.Leave(ctx, sessionID, playerID); err != nil {
			h.log.Warn("presence leave failed", zap.String("session", sessionID), zap.Error(err))
		}
		if runner, ok := h.service.Runner(sessionID); ok {
			runner.NotifyLeave(playerID)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwarderDone := make(chan struct{})

	go writeLoop(conn, send, writerDone, h.log)
	go func() {
		defer close(forwarderDone)
		h.forwardPlayer(sessionID, playerID, send, closeSignals)
	}()
	go h.heartbeatLoop(sessionID, playerID, closeSignals)

	// Reconciliation first: full state, never a delta.
	send <- outboundMessage[any]{Type: "state", Payload: snap}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorFrame(errors.New("invalid answer payload"))
				continue
			}
			runner, ok := h.service.Runner(sessionID)
			if !ok {
				send <- errorFrame(domain.ErrSessionNotActive)
				continue
			}
			runner.SubmitAnswer(domain.AnswerSubmission{
				PlayerID:      playerID,
				OptionIndex:   payload.OptionIndex,
				QuestionIndex: payload.QuestionIndex,
			})
		case "powerup":
			runner, ok := h.service.Runner(sessionID)
			if !ok {
				send <- errorFrame(domain.ErrSessionNotActive)
				continue
			}
			grant, err := runner.RequestPowerup(r.Context(), playerID)
			if err != nil {
				send <- errorFrame(err)
				continue
			}
			send <- outboundMessage[any]{Type: "powerup", Payload: grant}
		case "sync":
			snap, err := h.service.Snapshot(r.Context(), sessionID, playerID)
			if err != nil {
				send <- errorFrame(err)
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: snap}
		default:
			send <- errorFrame(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	<-forwarderDone
	close(send)
	<-writerDone
}

// forwardHost relays phase updates and store-failure notices to the host.
func (h *Handler) forwardHost(runner *app.Runner, send chan outboundMessage[any], closeSignals chan struct{}) {
	updates, cancel := runner.Subscribe()
	defer cancel()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if !trySend(send, outboundMessage[any]{Type: "phase", Payload: update}, closeSignals) {
				return
			}
		case err := <-runner.Errors():
			if !trySend(send, errorFrame(err), closeSignals) {
				return
			}
		case <-closeSignals:
			return
		}
	}
}

// forwardPlayer relays phase updates to a player, attaching the player's
// own persisted result when a question closes. The runner may not exist
// yet (waiting room); keep checking until the host starts the game.
func (h *Handler) forwardPlayer(sessionID, playerID string, send chan outboundMessage[any], closeSignals chan struct{}) {
	var runner *app.Runner
	for {
		var ok bool
		runner, ok = h.service.Runner(sessionID)
		if ok {
			break
		}
		select {
		case <-time.After(time.Second):
		case <-closeSignals:
			return
		}
	}

	updates, cancel := runner.Subscribe()
	defer cancel()
	lastResults := -1
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if !trySend(send, outboundMessage[any]{Type: "phase", Payload: update}, closeSignals) {
				return
			}
			resultsLike := update.Phase == domain.PhaseResults || update.Phase == domain.PhaseFinished
			if resultsLike && update.QuestionIndex != lastResults {
				lastResults = update.QuestionIndex
				ctx, cancelFetch := context.WithTimeout(context.Background(), 2*time.Second)
				player, err := h.service.GetPlayer(ctx, playerID)
				cancelFetch()
				if err != nil {
					h.log.Warn("player fetch failed", zap.String("player", playerID), zap.Error(err))
					continue
				}
				if !trySend(send, outboundMessage[any]{Type: "player", Payload: player}, closeSignals) {
					return
				}
			}
		case <-closeSignals:
			return
		}
	}
}

func (h *Handler) heartbeatLoop(sessionID, playerID string, closeSignals chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := h.service.Presence().Heartbeat(ctx, sessionID, playerID)
			cancel()
			if err != nil {
				h.log.Warn("heartbeat failed", zap.String("session", sessionID), zap.Error(err))
			}
		case <-closeSignals:
			return
		}
	}
}

func writeLoop(conn *websocket.Conn, send chan outboundMessage[any], done chan struct{}, log *zap.Logger) {
	defer close(done)
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("ws write error", zap.Error(err))
			return
		}
	}
}

func trySend(send chan outboundMessage[any], msg outboundMessage[any], closeSignals chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	}
}

func errorFrame(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrPlayerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionFinished), errors.Is(err, domain.ErrInvalidQuestion):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
