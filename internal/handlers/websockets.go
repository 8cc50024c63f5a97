package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMsgSize        = 1 << 12 // 4 KB
	commandTimeout    = 15 * time.Second
	defaultSendBuffer = 64
)

// Inbound frame types.
const (
	frameJoin    = "join-greenhouse"
	frameLeave   = "leave-greenhouse"
	frameControl = "device-control"
)

// Envelope used for WebSocket messages in both directions.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsOutbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsClient is one dashboard socket. Deliver only queues; writePump owns the
// connection's write side.
type wsClient struct {
	id    string
	actor models.Actor
	conn  *websocket.Conn
	send  chan realtime.Event
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	joined string // last greenhouse joined, used when a command names none
}

func newWSClient(conn *websocket.Conn, actor models.Actor, buffer int) *wsClient {
	return &wsClient{
		id:    uuid.NewString(),
		actor: actor,
		conn:  conn,
		send:  make(chan realtime.Event, buffer),
		done:  make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

// Deliver never blocks. A full queue drops the event.
func (c *wsClient) Deliver(ev realtime.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) setJoined(gh string) {
	c.mu.Lock()
	c.joined = gh
	c.mu.Unlock()
}

func (c *wsClient) lastJoined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (h *Handler) upgrader() websocket.Upgrader {
	allowed := h.opts.AllowedOrigins
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsToken accepts ?token= (browsers cannot set headers on upgrade) or a bearer header.
func wsToken(c *gin.Context) (string, error) {
	if t := c.Query("token"); t != "" {
		return t, nil
	}
	return bearerToken(c.GetHeader("Authorization"))
}

// @Summary      Realtime socket
// @Description  Frames are {"type","data"}. Send join-greenhouse, leave-greenhouse or device-control; receive room events.
// @Tags         realtime
// @Param        token  query  string  false  "JWT, when no Authorization header is sent"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	token, err := wsToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	actor, err := h.services.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}

	client := newWSClient(conn, actor, h.opts.SendBuffer)
	h.log.Infow("ws_connected", "client_id", client.id, "user", actor.Username)

	go h.writePump(client)
	h.readPump(c.Request.Context(), client)

	left := h.rooms.LeaveAll(client)
	client.close()
	h.log.Infow("ws_disconnected", "client_id", client.id, "rooms", left)
}

// readPump handles inbound frames until the socket closes.
func (h *Handler) readPump(ctx context.Context, client *wsClient) {
	conn := client.conn
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Infow("ws_read_closed", "client_id", client.id, "err", err)
			}
			return
		}
		h.handleFrame(ctx, client, env)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *wsClient, env wsEnvelope) {
	switch env.Type {
	case frameJoin:
		gh := h.frameGreenhouse(env.Data)
		h.rooms.Join(realtime.RoomKey(gh), client)
		client.setJoined(gh)
		client.Deliver(realtime.Event{
			Name:    realtime.EventRoomJoined,
			Payload: models.RoomJoined{GreenhouseID: gh, Message: "Joined greenhouse " + gh},
		})

	case frameLeave:
		gh := h.frameGreenhouse(env.Data)
		h.rooms.Leave(realtime.RoomKey(gh), client)
		client.Deliver(realtime.Event{
			Name:    realtime.EventRoomLeft,
			Payload: models.RoomJoined{GreenhouseID: gh, Message: "Left greenhouse " + gh},
		})

	case frameControl:
		var cmd models.DeviceCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			client.Deliver(errorEvent("invalid device-control payload", ""))
			return
		}
		if client.actor.Role == models.RoleViewer {
			client.Deliver(errorEvent("role viewer may not control devices", cmd.Action))
			return
		}
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		// failures were already sent to this client
		_, _ = h.services.HandleCommand(cctx, client, client.actor, client.lastJoined(), cmd)

	default:
		client.Deliver(errorEvent("unknown message type "+env.Type, ""))
	}
}

// frameGreenhouse accepts "gh-1" or {"greenhouseId":"gh-1"}.
func (h *Handler) frameGreenhouse(data json.RawMessage) string {
	var gh string
	if err := json.Unmarshal(data, &gh); err == nil && gh != "" {
		return gh
	}
	var obj struct {
		GreenhouseID string `json:"greenhouseId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.GreenhouseID != "" {
		return obj.GreenhouseID
	}
	return h.opts.DefaultGreenhouse
}

func errorEvent(msg string, action models.Action) realtime.Event {
	return realtime.Event{Name: realtime.EventError, Payload: models.ErrorNotice{Message: msg, Action: action}}
}

// writePump drains the client's queue and keeps the connection alive with pings.
func (h *Handler) writePump(client *wsClient) {
	conn := client.conn
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-client.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsOutbound{Type: ev.Name, Data: ev.Payload}); err != nil {
				h.log.Infow("ws_write_failed", "client_id", client.id, "event", ev.Name, "err", err)
				client.close()
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "client_id", client.id, "err", err)
				client.close()
				return
			}
		}
	}
}
