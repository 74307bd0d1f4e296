package handlers

import (
	"net/http"
	"time"

	"energy-net/internal/api/models"
	"energy-net/internal/episode"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// StreamMessage is one frame sent to a stream client.
type StreamMessage struct {
	Type    string              `json:"type"` // "step", "summary" or "error"
	Row     *episode.LedgerRow  `json:"row,omitempty"`
	Summary *models.Summary     `json:"summary,omitempty"`
	Error   *models.ErrorDetail `json:"error,omitempty"`
}

// StreamHandler runs an episode and pushes every ledger row over a websocket
type StreamHandler struct {
	deps     *Deps
	upgrader websocket.Upgrader
}

// NewStreamHandler accepts any origin when origins is empty.
func NewStreamHandler(deps *Deps, origins []string) *StreamHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// StreamSimulation handles GET /api/v1/simulate/stream. The client sends one
// SimulateRequest, then receives a "step" frame per step and a final "summary".
func (h *StreamHandler) StreamSimulation(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.deps.logger().WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req models.SimulateRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.sendError(conn, "INVALID_REQUEST", err)
		return
	}

	send := func(row episode.LedgerRow) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(StreamMessage{Type: "step", Row: &row})
	}
	res, err := runEpisode(c, h.deps, req, "stream", send)
	if err != nil {
		h.sendError(conn, "SIMULATION_ERROR", err)
		return
	}

	summary := buildSummary(res)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(StreamMessage{Type: "summary", Summary: &summary}); err != nil {
		h.deps.logger().WithError(err).Warn("failed to send stream summary")
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (h *StreamHandler) sendError(conn *websocket.Conn, code string, err error) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if werr := conn.WriteJSON(StreamMessage{Type: "error", Error: &models.ErrorDetail{Code: code, Message: err.Error()}}); werr != nil {
		h.deps.logger().WithError(werr).Warn("failed to send stream error")
	}
}
