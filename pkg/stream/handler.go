package stream

import (
	"log"
	"net/http"
	"time"

	"userconsole/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketUpgrader is satisfied by *websocket.Upgrader.
type WebSocketUpgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error)
}

// Handler serves the console websocket and pushes state frames to it.
type Handler struct {
	manager *ConnectionManager
	// Optional: logger can be injected
	logger interface {
		Printf(string, ...interface{})
	}
	upgrader WebSocketUpgrader
	snapshot func() any // optional; sent as a hello frame on connect
}

func NewHandler(manager *ConnectionManager) *Handler {
	return &Handler{
		manager: manager,
		logger:  log.New(log.Writer(), "[stream] ", log.LstdFlags),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// consoles are served from this process
				return true
			},
		},
	}
}

func (h *Handler) SetLogger(l interface{ Printf(string, ...interface{}) }) {
	h.logger = l
}

func (h *Handler) SetWebSocketUpgrader(u WebSocketUpgrader) {
	h.upgrader = u
}

// SetSnapshotSource makes new connections start with a hello frame
// holding fn's result.
func (h *Handler) SetSnapshotSource(fn func() any) {
	h.snapshot = fn
}

// Publish pushes a state frame to every connected console.
func (h *Handler) Publish(state any) {
	h.manager.Broadcast(Frame{EventType: EventState, Data: state, SentAt: time.Now().UTC()})
}

// HandleWebSocket upgrades the request and starts the client's loops.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	var hello func() interface{}
	if h.snapshot != nil {
		hello = func() interface{} {
			return Frame{EventType: EventHello, Data: h.snapshot(), SentAt: time.Now().UTC()}
		}
	}
	client := h.manager.AddClient(conn, hello)
	h.logger.Printf("console %s connected", client.ID)

	go h.readLoop(client)
	go h.writeLoop(client)
}

func (h *Handler) HandleWebSocketGin(c *gin.Context) {
	h.HandleWebSocket(c.Writer, c.Request)
}

// readLoop only watches for the console going away; consoles send nothing.
func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.manager.RemoveClient(client.ID)
		client.Conn.Close()
		h.logger.Printf("console %s disconnected", client.ID)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("websocket error for console %s: %v", client.ID, err)
			}
			return
		}
	}
}

func (h *Handler) writeLoop(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.Done:
			return

		case message := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteJSON(message); err != nil {
				h.logger.Printf("write error for console %s: %v", client.ID, err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Printf("ping error for console %s: %v", client.ID, err)
				return
			}
		}
	}
}

// GetStatusGin godoc
// @Summary Connected consoles
// @Description Returns how many console pages hold a live websocket
// @Tags console
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /api/console/viewers [get]
func (h *Handler) GetStatusGin(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "stream status", map[string]interface{}{
		"count": h.manager.Count(),
	})
}
