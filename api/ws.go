package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"singlish-bot/internal/logger"
	"singlish-bot/model"
	"singlish-bot/service"
)

const (
	wsReadLimit   = 16 << 10
	wsIdleTimeout = 5 * time.Minute
	wsWriteWait   = 10 * time.Second
	// turns kept in memory for anonymous sockets
	wsHistoryCap = 20
)

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, origin)
		},
	}
}

// ChatSocketHandler serves chat over a websocket. Every inbound text frame
// is a chat request and gets exactly one reply frame. The socket remembers
// its session id, and for anonymous callers the recent turns, until it
// closes.
func ChatSocketHandler(chatSvc *service.ChatService, origins []string, log *zap.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(origins)
	log = logger.Named(log, "chat_socket")

	return func(c *gin.Context) {
		owner := OwnerID(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		conn.SetReadLimit(wsReadLimit)

		var (
			sessionID string
			recent    []model.Turn
		)
		ctx := c.Request.Context()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("websocket closed", zap.Error(err), zap.String("session_id", sessionID))
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}

			var req model.ChatRequest
			if err := json.Unmarshal(data, &req); err != nil {
				if !writeFrame(conn, errorBody{Error: errorDetail{Message: "invalid JSON frame", Code: "validation_error", Field: "body"}}) {
					return
				}
				continue
			}
			if req.SessionID == "" {
				req.SessionID = sessionID
			} else if req.SessionID != sessionID {
				// turns from the previous session are not context for this one
				recent = nil
			}

			resp, err := chatSvc.HandleMessage(ctx, owner, req, recent)
			if err != nil {
				_, body := errorResponse(err)
				var verr *model.ValidationError
				if !errors.As(err, &verr) {
					log.Error("chat over websocket failed", zap.Error(err))
				}
				if !writeFrame(conn, body) {
					return
				}
				continue
			}

			sessionID = resp.SessionID
			if owner == "" {
				recent = append(recent,
					model.Turn{Role: model.RoleUser, Content: req.Message},
					model.Turn{Role: model.RoleBot, Content: resp.Response, Intent: resp.Intent},
				)
				if len(recent) > wsHistoryCap {
					recent = slices.Clone(recent[len(recent)-wsHistoryCap:])
				}
			}
			if !writeFrame(conn, resp) {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v) == nil
}
