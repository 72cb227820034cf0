package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amanazads/flashbites-sub000/internal/auth"
	"github.com/amanazads/flashbites-sub000/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

// Inbound client events.
const (
	evJoinRestaurant = "join-restaurant"
	evJoinOrderRoom  = "join_order_room"
	evLeaveOrderRoom = "leave_order_room"
	evPing           = "ping"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app origin; cross-origin checks are
	// the reverse proxy's concern in this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomRef struct {
	RestaurantID int64 `json:"restaurant_id,omitempty"`
	OrderID      int64 `json:"order_id,omitempty"`
}

// Handler upgrades authenticated HTTP requests to websocket connections and
// bridges them into the Registry.
type Handler struct {
	registry  *Registry
	jwtSecret string
}

// NewHandler creates a websocket Handler over the given registry.
func NewHandler(registry *Registry, jwtSecret string) *Handler {
	return &Handler{registry: registry, jwtSecret: jwtSecret}
}

// ServeHTTP performs the authenticated handshake. The token travels either
// in the Authorization header or a `token` query parameter (browser
// websocket clients cannot set headers). Invalid or missing tokens refuse
// the connection before the upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade: %v", err)
		return
	}

	client := h.registry.Connect(p.UserID, p.Role)
	go h.writeLoop(conn, client)
	h.readLoop(conn, client)
}

func (h *Handler) authenticate(r *http.Request) (*auth.Principal, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return auth.ParseBearer(header, h.jwtSecret)
	}
	return auth.ParseToken(r.URL.Query().Get("token"), h.jwtSecret)
}

// readLoop consumes inbound events until the connection dies, then runs the
// idempotent registry cleanup.
func (h *Handler) readLoop(conn *websocket.Conn, client *Client) {
	defer func() {
		h.registry.Disconnect(client)
		_ = conn.Close()
	}()
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read (user %d): %v", client.UserID, err)
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.handleEvent(client, msg)
	}
}

func (h *Handler) handleEvent(client *Client, msg inboundMessage) {
	var ref roomRef
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &ref)
	}
	switch msg.Event {
	case evJoinRestaurant:
		// Restaurant identity is unknown until the owner announces it.
		if client.Role != models.RoleRestaurantOwner || ref.RestaurantID == 0 {
			return
		}
		h.registry.Join(client, models.RestaurantRoom(ref.RestaurantID))
	case evJoinOrderRoom:
		if ref.OrderID != 0 {
			h.registry.Join(client, models.OrderRoom(ref.OrderID))
		}
	case evLeaveOrderRoom:
		if ref.OrderID != 0 {
			h.registry.Leave(client, models.OrderRoom(ref.OrderID))
		}
	case evPing:
		h.reply(client, "pong", nil)
	}
}

// reply queues a direct message to one client, best-effort.
func (h *Handler) reply(client *Client, event string, data any) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// writeLoop drains the client's outbound queue onto the socket and keeps
// the connection alive with periodic pings. The transport preserves
// per-connection order, which is what gives a single client in-order
// status updates for any one order.
func (h *Handler) writeLoop(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
