package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ericfitz/boardsync/internal/config"
	"github.com/ericfitz/boardsync/internal/slogging"
	"github.com/ericfitz/boardsync/internal/telemetry"
)

// Hub is the process-wide synchronization authority. It owns the room
// registry and every RoomState inside it, and it processes all inbound
// messages on a single run loop in arrival order: messages from one
// connection stay ordered, messages from different connections interleave as
// the hub observes them, and that application order is the canonical order.
// Room state therefore needs no locks.
type Hub struct {
	cfg      config.WebSocketConfig
	store    BoardStore
	identity IdentityProvider
	metrics  *telemetry.SessionMetrics
	router   *MessageRouter

	// Registered rooms by room ID
	rooms map[string]*liveRoom

	// Register requests from new connections
	register chan *Client
	// Unregister requests from dropped connections
	unregister chan *Client
	// Inbound messages from clients
	inbound chan inboundFrame
	// Deliveries queued by goroutines outside the run loop; only the run
	// loop touches send queues
	outbound chan outboundDelivery
}

type outboundDelivery struct {
	client *Client
	data   []byte
}

// liveRoom pairs a room's canonical state with its subscribed connections
type liveRoom struct {
	state   *RoomState
	clients map[*Client]bool
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Client represents one connected participant. The hub run loop owns roomID
// and closed; the read and write pumps own only the connection and the send
// channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Participant ID, unique per connection
	ID string
	// Identity resolved at connection time
	Identity Identity

	// Room this connection is joined to; empty until the first join
	roomID string
	// Buffered channel of outbound messages
	send chan []byte
	// Set by the hub once send is closed; guards double-close
	closed bool
}

// Upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a hub with an empty room registry. The registry is explicit
// state constructed at startup and handed to the transport layer; there is no
// package-level room map.
func NewHub(cfg config.WebSocketConfig, store BoardStore, identity IdentityProvider, metrics *telemetry.SessionMetrics) *Hub {
	if identity == nil {
		identity = GuestIdentityProvider{}
	}
	return &Hub{
		cfg:        cfg,
		store:      store,
		identity:   identity,
		metrics:    metrics,
		router:     NewMessageRouter(),
		rooms:      make(map[string]*liveRoom),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 64),
		outbound:   make(chan outboundDelivery, 16),
	}
}

// Run processes registrations, disconnects and inbound messages until ctx is
// cancelled. All RoomState mutation happens here.
func (h *Hub) Run(ctx context.Context) {
	logger := slogging.Get()
	logger.Info("Session hub started")

	for {
		select {
		case client := <-h.register:
			if h.metrics != nil {
				h.metrics.ConnectionOpened(ctx)
			}
			logger.Debug("Connection registered - participant_id=%s", client.ID)

		case client := <-h.unregister:
			h.disconnectClient(ctx, client)

		case frame := <-h.inbound:
			if frame.client != nil {
				h.router.RouteMessage(ctx, h, frame.client, frame.data)
			}

		case d := <-h.outbound:
			h.deliver(d.client, d.data)

		case <-ctx.Done():
			logger.Info("Session hub stopping, closing %d rooms", len(h.rooms))
			for _, rm := range h.rooms {
				for client := range rm.clients {
					h.closeSend(client)
				}
			}
			h.rooms = make(map[string]*liveRoom)
			return
		}
	}
}

// disconnectClient handles an ungraceful or explicit disconnect: remove the
// connection's presence, tear the room down if that emptied it, otherwise
// tell the remaining members
func (h *Hub) disconnectClient(ctx context.Context, client *Client) {
	if client.roomID != "" {
		h.leaveRoom(ctx, client)
	}
	h.closeSend(client)
	if h.metrics != nil {
		h.metrics.ConnectionClosed(ctx)
	}
	slogging.Get().Debug("Connection unregistered - participant_id=%s", client.ID)
}

// joinRoom binds a client to a room, creating the room on first join. A join
// while already in a different room leaves that room first. The joiner gets
// the full snapshot; everyone else gets the updated presence list.
func (h *Hub) joinRoom(ctx context.Context, client *Client, roomID string, identity Identity) {
	logger := slogging.Get()

	if client.roomID == roomID && client.roomID != "" {
		// Re-join of the current room: refresh the snapshot, presence is
		// unchanged
		if rm, ok := h.rooms[roomID]; ok {
			h.sendSnapshot(client, rm)
			return
		}
	}
	if client.roomID != "" {
		h.leaveRoom(ctx, client)
	}

	rm, ok := h.rooms[roomID]
	if !ok {
		rm = &liveRoom{
			state:   NewRoomState(roomID, h.cfg.HistoryDepth),
			clients: make(map[*Client]bool),
		}
		h.seedFromStore(ctx, rm)
		h.rooms[roomID] = rm
		if h.metrics != nil {
			h.metrics.RoomOpened(ctx)
		}
		logger.Info("Room created - room_id=%s", roomID)
	}

	rm.state.AddParticipant(client.ID, identity)
	rm.clients[client] = true
	client.roomID = roomID
	if h.metrics != nil {
		h.metrics.ParticipantJoined(ctx)
	}
	logger.Info("Participant joined - room_id=%s participant_id=%s name=%s",
		roomID, client.ID, identity.DisplayName)

	h.sendSnapshot(client, rm)
	h.broadcastPresence(ctx, rm, client)
}

// leaveRoom removes the client's presence from its current room and tears
// the room down the instant it empties: all state is discarded, no grace
// period
func (h *Hub) leaveRoom(ctx context.Context, client *Client) {
	rm, ok := h.rooms[client.roomID]
	roomID := client.roomID
	client.roomID = ""
	if !ok {
		return
	}

	delete(rm.clients, client)
	empty := rm.state.RemoveParticipant(client.ID)
	if h.metrics != nil {
		h.metrics.ParticipantLeft(ctx)
	}

	if empty {
		delete(h.rooms, roomID)
		if h.metrics != nil {
			h.metrics.RoomClosed(ctx, rm.state.CreatedAt())
		}
		slogging.Get().Info("Room empty, torn down - room_id=%s", roomID)
		return
	}

	h.broadcastPresence(ctx, rm, nil)
}

// seedFromStore loads a previously saved board into a freshly created room.
// Load failures degrade to an empty room; they never block the join.
func (h *Hub) seedFromStore(ctx context.Context, rm *liveRoom) {
	if h.store == nil {
		return
	}
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	snapshot, err := h.store.LoadRoom(loadCtx, rm.state.RoomID)
	if err != nil {
		if err != ErrBoardNotFound {
			slogging.Get().Warn("Board load failed, starting empty - room_id=%s error=%v",
				rm.state.RoomID, err)
		}
		return
	}
	rm.state.Seed(snapshot.Elements, snapshot.Name)
}

// sendSnapshot delivers the full room state to one client: the complete
// presence list (the receiver included) and the canonical elements
func (h *Hub) sendSnapshot(client *Client, rm *liveRoom) {
	msg := RoomStateMessage{
		MessageType:    MessageTypeRoomState,
		RoomID:         rm.state.RoomID,
		Name:           rm.state.Name,
		Participants:   rm.state.ParticipantList(),
		Elements:       rm.state.SnapshotElements(),
		SequenceNumber: rm.state.Seq(),
	}
	h.sendMessage(client, msg)
}

// broadcastPresence sends the room's participant list to every member except
// the excluded one
func (h *Hub) broadcastPresence(ctx context.Context, rm *liveRoom, exclude *Client) {
	msg := PresenceUpdatedMessage{
		MessageType:    MessageTypePresenceUpdated,
		Participants:   rm.state.ParticipantList(),
		SequenceNumber: rm.state.NextSeq(),
	}
	h.broadcastMessage(ctx, rm, msg, exclude)
}

// broadcastMessage fans a message out to every connection subscribed to the
// room except the excluded one. Delivery is best-effort, at-most-once: a
// client whose send queue is full is dropped rather than allowed to stall
// the room.
func (h *Hub) broadcastMessage(ctx context.Context, rm *liveRoom, msg Message, exclude *Client) {
	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal broadcast - room_id=%s type=%s error=%v",
			rm.state.RoomID, msg.GetMessageType(), err)
		return
	}
	h.broadcastRaw(ctx, rm, string(msg.GetMessageType()), data, exclude)
}

func (h *Hub) broadcastRaw(ctx context.Context, rm *liveRoom, messageType string, data []byte, exclude *Client) {
	var slow []*Client
	recipients := 0
	for client := range rm.clients {
		if client == exclude || client.closed {
			continue
		}
		select {
		case client.send <- data:
			recipients++
		default:
			slow = append(slow, client)
		}
	}
	if h.metrics != nil {
		h.metrics.Broadcast(ctx, messageType, recipients)
	}

	for _, client := range slow {
		slogging.Get().Warn("Dropping slow client - room_id=%s participant_id=%s",
			rm.state.RoomID, client.ID)
		h.closeSend(client)
	}
}

// sendMessage queues a message to a single client
func (h *Hub) sendMessage(client *Client, msg Message) {
	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal message - participant_id=%s type=%s error=%v",
			client.ID, msg.GetMessageType(), err)
		return
	}
	h.deliver(client, data)
}

// queueDelivery hands a message from an outside goroutine to the run loop
// for delivery. Non-blocking: if the hub is saturated or stopped the message
// is dropped rather than allowed to strand the caller.
func (h *Hub) queueDelivery(client *Client, data []byte) {
	select {
	case h.outbound <- outboundDelivery{client: client, data: data}:
	default:
		slogging.Get().Warn("Dropping queued delivery - participant_id=%s", client.ID)
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- data:
	default:
		h.closeSend(client)
	}
}

// sendError reports a protocol-level problem to the offending client only
func (h *Hub) sendError(client *Client, code, message string) {
	h.sendMessage(client, ErrorMessage{
		MessageType: MessageTypeError,
		Error:       code,
		Message:     message,
		Timestamp:   time.Now().UTC(),
	})
}

// closeSend closes a client's outbound queue, which ends its write pump and
// closes the connection. Safe to call more than once; only the run loop
// calls it.
func (h *Hub) closeSend(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
}

// HandleWS upgrades an HTTP request and registers the connection with the
// hub. The connection has no room membership until its first join message.
func (h *Hub) HandleWS(c *gin.Context) {
	identity := h.identity.FromRequest(c.Request)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slogging.Get().Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		ID:       uuid.New().String(),
		Identity: identity,
		send:     make(chan []byte, h.cfg.SendBufferSize),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket into the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slogging.Get().Warn("WebSocket read error - participant_id=%s error=%v", c.ID, err)
			}
			break
		}
		c.hub.inbound <- inboundFrame{client: c, data: message}
	}
}

// writePump pumps messages from the hub to the WebSocket, one frame per
// message, with keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
