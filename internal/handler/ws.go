package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"alpacabot/internal/events"
)

const wsWriteTimeout = 5 * time.Second

// WSHandler streams bot events to websocket clients.
type WSHandler struct {
	Source  events.Source
	Channel string
	Logger  *zap.Logger
}

func (h *WSHandler) Register(r *gin.Engine) {
	r.GET("/api/ws", h.serve)
}

// @Summary Event stream
// @Description Sends {"type":"hello","channel":...} and then every published event. Non-JSON messages arrive as {"type":"raw","data":...}.
// @Tags events
// @Router /api/ws [get]
func (h *WSHandler) serve(c *gin.Context) {
	if h.Source == nil {
		Error(c, http.StatusServiceUnavailable, "event stream unavailable", nil)
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		logger.Debug("ws: accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead cancels ctx when they go away.
	ctx := conn.CloseRead(c.Request.Context())
	msgs, cancel, err := h.Source.Subscribe(ctx)
	if err != nil {
		logger.Warn("ws: subscribe failed", zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cancel()

	if err := wsjson.Write(ctx, conn, gin.H{"type": "hello", "channel": h.Channel}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, forwardPayload(msg))
			wcancel()
			if err != nil {
				logger.Debug("ws: write failed", zap.Error(err))
				return
			}
		}
	}
}

// forwardPayload passes JSON through and wraps anything else as a raw message.
func forwardPayload(msg []byte) []byte {
	if json.Valid(msg) {
		return msg
	}
	raw, _ := json.Marshal(gin.H{"type": "raw", "data": string(msg)})
	return raw
}
