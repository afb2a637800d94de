package api

import (
	"context"
	"errors"
	"time"

	"github.com/ericfitz/boardsync/internal/slogging"
)

// MessageHandler processes one parsed message type. Handlers run on the hub
// goroutine and may mutate room state directly.
type MessageHandler interface {
	HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message)
}

// MessageRouter dispatches inbound messages by message type
type MessageRouter struct {
	handlers map[MessageType]MessageHandler
}

// NewMessageRouter creates a router with all client message handlers
// registered
func NewMessageRouter() *MessageRouter {
	return &MessageRouter{
		handlers: map[MessageType]MessageHandler{
			MessageTypeJoin:           JoinHandler{},
			MessageTypeCursorMove:     CursorMoveHandler{},
			MessageTypeBoardOperation: BoardOperationHandler{},
			MessageTypeUndoRequest:    UndoHandler{},
			MessageTypeRedoRequest:    RedoHandler{},
			MessageTypeSaveRequest:    SaveHandler{},
		},
	}
}

// RouteMessage parses a raw frame and dispatches it. Protocol errors are
// logged and dropped without a reply and without disturbing the room; only a
// message type outside the protocol is answered with an error message.
func (r *MessageRouter) RouteMessage(ctx context.Context, hub *Hub, client *Client, data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedMessageType) || errors.Is(err, ErrServerOnlyMessage) {
			if hub.metrics != nil {
				hub.metrics.MessageDropped(ctx, "unsupported_message_type")
			}
			hub.sendError(client, "unsupported_message_type", err.Error())
			return
		}
		slogging.Get().Debug("Dropping malformed message - participant_id=%s error=%v", client.ID, err)
		if hub.metrics != nil {
			hub.metrics.MessageDropped(ctx, "invalid_message")
		}
		return
	}

	if hub.metrics != nil {
		hub.metrics.MessageReceived(ctx, string(msg.GetMessageType()))
	}

	handler, ok := r.handlers[msg.GetMessageType()]
	if !ok {
		hub.sendError(client, "unsupported_message_type", "no handler for message type")
		return
	}
	handler.HandleMessage(ctx, hub, client, msg)
}

// requireRoom checks that the client is joined to the room a message names.
// Messages for other rooms, or from clients that never joined, are dropped
// silently; the connection stays open.
func requireRoom(ctx context.Context, hub *Hub, client *Client, roomID string) (*liveRoom, bool) {
	if client.roomID == "" || client.roomID != roomID {
		slogging.Get().Debug("Dropping message for unjoined room - participant_id=%s room_id=%s",
			client.ID, roomID)
		if hub.metrics != nil {
			hub.metrics.MessageDropped(ctx, "not_in_room")
		}
		return nil, false
	}
	rm, ok := hub.rooms[roomID]
	if !ok {
		return nil, false
	}
	return rm, true
}

// JoinHandler binds the connection to a room
type JoinHandler struct{}

func (JoinHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	join, ok := msg.(JoinMessage)
	if !ok {
		return
	}

	identity := client.Identity
	// A verified identity wins; the join payload only fills the gaps for
	// guests
	if identity.DisplayName == "" || identity == GuestIdentity {
		if join.DisplayName != "" {
			identity.DisplayName = join.DisplayName
		}
		if join.AvatarURL != "" {
			identity.AvatarURL = join.AvatarURL
		}
	}
	if identity.DisplayName == "" {
		identity = GuestIdentity
	}

	hub.joinRoom(ctx, client, join.RoomID, identity)
}

// CursorMoveHandler relays a cursor position to the rest of the room
type CursorMoveHandler struct{}

func (CursorMoveHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	move, ok := msg.(CursorMoveMessage)
	if !ok {
		return
	}
	rm, ok := requireRoom(ctx, hub, client, move.RoomID)
	if !ok {
		return
	}
	if !rm.state.UpdateCursor(client.ID, move.X, move.Y) {
		return
	}

	hub.broadcastMessage(ctx, rm, CursorMovedMessage{
		MessageType:    MessageTypeCursorMoved,
		ParticipantID:  client.ID,
		X:              move.X,
		Y:              move.Y,
		SequenceNumber: rm.state.NextSeq(),
	}, client)
}

// BoardOperationHandler merges one edit into canonical state and relays the
// sender's original message to the rest of the room
type BoardOperationHandler struct{}

func (BoardOperationHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	opMsg, ok := msg.(BoardOperationMessage)
	if !ok {
		return
	}
	rm, ok := requireRoom(ctx, hub, client, opMsg.RoomID)
	if !ok {
		return
	}

	outcome, err := rm.state.Apply(&opMsg.Operation)
	if err != nil {
		// Rejected merges are logged and dropped; nothing is relayed and
		// the connection stays open
		slogging.Get().Warn("Dropping board operation - room_id=%s participant_id=%s operation_id=%s error=%v",
			opMsg.RoomID, client.ID, opMsg.OperationID, err)
		if hub.metrics != nil {
			hub.metrics.MessageDropped(ctx, "invalid_operation")
		}
		return
	}
	if hub.metrics != nil {
		hub.metrics.OperationApplied(ctx, string(opMsg.Operation.Type))
	}
	slogging.Get().Debug("Operation applied - room_id=%s operation_id=%s outcome=%s",
		opMsg.RoomID, opMsg.OperationID, outcome)

	// Relay the inbound message itself, not the merged result. Receivers run
	// the identical merge against their mirrored state, so relaying the
	// operation keeps every mirror convergent without shipping snapshots.
	seq := rm.state.NextSeq()
	opMsg.SequenceNumber = &seq
	hub.broadcastMessage(ctx, rm, opMsg, client)
}

// UndoHandler steps the room's history back one snapshot
type UndoHandler struct{}

func (UndoHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	undo, ok := msg.(UndoRequestMessage)
	if !ok {
		return
	}
	rm, ok := requireRoom(ctx, hub, client, undo.RoomID)
	if !ok {
		return
	}
	if !rm.state.Undo() {
		// Already at the history base; nothing to correct
		slogging.Get().Debug("Undo at history base ignored - room_id=%s", undo.RoomID)
		return
	}
	broadcastCorrection(ctx, hub, rm)
}

// RedoHandler steps the room's history forward one snapshot
type RedoHandler struct{}

func (RedoHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	redo, ok := msg.(RedoRequestMessage)
	if !ok {
		return
	}
	rm, ok := requireRoom(ctx, hub, client, redo.RoomID)
	if !ok {
		return
	}
	if !rm.state.Redo() {
		slogging.Get().Debug("Redo at history head ignored - room_id=%s", redo.RoomID)
		return
	}
	broadcastCorrection(ctx, hub, rm)
}

// broadcastCorrection replaces every member's mirrored elements, the
// initiator included, after the history cursor moves
func broadcastCorrection(ctx context.Context, hub *Hub, rm *liveRoom) {
	hub.broadcastMessage(ctx, rm, StateCorrectionMessage{
		MessageType:    MessageTypeStateCorrection,
		Elements:       rm.state.SnapshotElements(),
		SequenceNumber: rm.state.NextSeq(),
	}, nil)
}

// SaveHandler persists the room's elements through the board store
type SaveHandler struct{}

func (SaveHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, msg Message) {
	save, ok := msg.(SaveRequestMessage)
	if !ok {
		return
	}
	rm, ok := requireRoom(ctx, hub, client, save.RoomID)
	if !ok {
		return
	}
	if hub.store == nil {
		hub.sendMessage(client, SaveResultMessage{
			MessageType: MessageTypeSaveResult,
			OK:          false,
			Message:     "persistence is not configured",
		})
		return
	}

	name := save.Name
	if name == "" {
		name = rm.state.Name
	}
	snapshot := &BoardSnapshot{
		RoomID:   save.RoomID,
		Name:     name,
		Elements: rm.state.SnapshotElements(),
		SavedBy:  client.ID,
		SavedAt:  time.Now().UTC(),
	}
	rm.state.Name = name

	// The store call leaves the hub goroutine; it works on a deep copy and
	// reports back through the client's send queue only
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result := SaveResultMessage{MessageType: MessageTypeSaveResult, OK: true, Message: "board saved"}
		if err := hub.store.SaveRoom(saveCtx, snapshot); err != nil {
			slogging.Get().Error("Board save failed - room_id=%s error=%v", save.RoomID, err)
			result.OK = false
			result.Message = "save failed: " + err.Error()
		}
		data, err := MarshalMessage(result)
		if err != nil {
			return
		}
		hub.queueDelivery(client, data)
	}()
}
