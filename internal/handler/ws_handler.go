package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/classplay/classplay-backend/internal/middleware"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/classplay/classplay-backend/internal/session"
	ws "github.com/classplay/classplay-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes; the event pump goroutine and the read loop
// both reply on the same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws.WriteError(w.conn, msg)
}

// WSHandler streams live attempt events to students.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/quizzes/:id/stream
// Upgrades to WebSocket for countdown ticks, forced progression and the
// final result of the student's live attempt. Answers may also be sent
// over the channel instead of the HTTP endpoint.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
		return
	}

	ctrl, ok := h.attemptService.Live(quizID, claims.UserID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attempt in progress"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("quiz_id", quizID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	events, cancel := ctrl.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go h.writeEvents(raw, conn, events, done, wsLog)

	for {
		var msg ws.AnswerRequest
		err := ws.ReadJSON(raw, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			cancel()
			<-done
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, ctrl, &msg, wsLog)
		case ws.ActionPing:
			conn.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.writeError("unknown action: " + string(msg.Action))
		}
	}
}

// writeEvents pumps controller events out to the client until the
// subscription closes. A terminal event closes the connection, which in
// turn wakes the read loop.
func (h *WSHandler) writeEvents(raw *websocket.Conn, conn *wsConn, events <-chan session.Event, done chan<- struct{}, wsLog zerolog.Logger) {
	defer close(done)

	for ev := range events {
		var err error
		switch ev.Kind {
		case session.EventTick:
			err = conn.write(ws.TickResponse{
				Event:            ws.EventTick,
				QuestionIndex:    ev.QuestionIndex,
				RemainingSeconds: ev.RemainingSeconds,
			})
		case session.EventAdvance:
			err = conn.write(ws.AdvanceResponse{
				Event:            ws.EventAdvance,
				QuestionIndex:    ev.QuestionIndex,
				RemainingSeconds: ev.RemainingSeconds,
				TimedOut:         ev.TimedOut,
			})
		case session.EventCompleted:
			resp := ws.CompletedResponse{Event: ws.EventCompleted}
			if ev.Result != nil {
				resp.CorrectCount = ev.Result.CorrectCount
				resp.TotalPoints = ev.Result.TotalPoints
			}
			conn.write(resp)
			raw.Close()
			return
		case session.EventErrored:
			conn.writeError(ev.Error)
			raw.Close()
			return
		}
		if err != nil {
			wsLog.Debug().Err(err).Msg("Event write failed")
			raw.Close()
			return
		}
	}
}

// handleAnswer feeds a channel-sent answer into the live session. The
// outcome comes back through the event stream, so only failures get a
// direct reply.
func (h *WSHandler) handleAnswer(conn *wsConn, ctrl *session.Controller, msg *ws.AnswerRequest, wsLog zerolog.Logger) {
	_, err := ctrl.RecordAnswer(context.Background(), msg.SelectedIndex)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Answer rejected")
		conn.writeError(err.Error())
	}
}
