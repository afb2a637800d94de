package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WebSocket message types. Clients may only send the request types; the
// remainder are server-emitted. Every server broadcast carries the room's
// monotonic sequence number so clients can detect missed messages.

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client-sent message types
	MessageTypeJoin           MessageType = "join"
	MessageTypeCursorMove     MessageType = "cursor_move"
	MessageTypeBoardOperation MessageType = "board_operation"
	MessageTypeUndoRequest    MessageType = "undo_request"
	MessageTypeRedoRequest    MessageType = "redo_request"
	MessageTypeSaveRequest    MessageType = "save_request"

	// Server-emitted message types
	MessageTypeRoomState       MessageType = "room_state"
	MessageTypePresenceUpdated MessageType = "presence_updated"
	MessageTypeCursorMoved     MessageType = "cursor_moved"
	MessageTypeStateCorrection MessageType = "state_correction"
	MessageTypeSaveResult      MessageType = "save_result"
	MessageTypeError           MessageType = "error"
)

var (
	// ErrServerOnlyMessage marks a client sending a message type only the
	// server may emit
	ErrServerOnlyMessage = errors.New("message type is server-only")
	// ErrUnsupportedMessageType marks a message type outside the protocol;
	// the one protocol error that gets an error reply
	ErrUnsupportedMessageType = errors.New("unsupported message type")
)

// Message is the base interface for all WebSocket messages
type Message interface {
	GetMessageType() MessageType
	Validate() error
}

// JoinMessage binds the connection to a room. Display name and avatar are
// only consulted when no verified identity accompanied the connection.
type JoinMessage struct {
	MessageType MessageType `json:"message_type"`
	RoomID      string      `json:"room_id"`
	DisplayName string      `json:"display_name,omitempty"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
}

func (m JoinMessage) GetMessageType() MessageType { return m.MessageType }

func (m JoinMessage) Validate() error {
	if m.MessageType != MessageTypeJoin {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeJoin, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// CursorMoveMessage reports the sender's cursor position. The drawing surface
// throttles these at the source (one per 50ms); the server applies only the
// latest position and holds no history.
type CursorMoveMessage struct {
	MessageType MessageType `json:"message_type"`
	RoomID      string      `json:"room_id"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
}

func (m CursorMoveMessage) GetMessageType() MessageType { return m.MessageType }

func (m CursorMoveMessage) Validate() error {
	if m.MessageType != MessageTypeCursorMove {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeCursorMove, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// BoardOperationMessage carries one edit operation. The server merges it into
// canonical room state and relays this exact message, with SequenceNumber
// assigned, to every other room member: receivers apply the identical merge
// function against their mirrored state rather than receiving a snapshot.
type BoardOperationMessage struct {
	MessageType    MessageType    `json:"message_type"`
	RoomID         string         `json:"room_id"`
	OperationID    string         `json:"operation_id"`
	SequenceNumber *uint64        `json:"sequence_number,omitempty"` // Server-assigned
	Operation      BoardOperation `json:"operation"`
}

func (m BoardOperationMessage) GetMessageType() MessageType { return m.MessageType }

func (m BoardOperationMessage) Validate() error {
	if m.MessageType != MessageTypeBoardOperation {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeBoardOperation, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if m.OperationID == "" {
		return fmt.Errorf("operation_id is required")
	}
	if _, err := uuid.Parse(m.OperationID); err != nil {
		return fmt.Errorf("operation_id must be a valid UUID: %w", err)
	}
	if m.Operation.Type == "" {
		return fmt.Errorf("operation.type is required")
	}
	// Structural checks only. An operation type outside the closed set is
	// not a validation failure; the merge engine logs and drops it.
	switch m.Operation.Type {
	case OperationUpsert, OperationDelete:
		if m.Operation.Element == nil {
			return fmt.Errorf("%s operation requires an element payload", m.Operation.Type)
		}
		if m.Operation.Element.ID == "" {
			return fmt.Errorf("element id is required")
		}
	}
	return nil
}

// UndoRequestMessage asks the server to step the room's history back one
// snapshot; the result reaches every member as a state correction
type UndoRequestMessage struct {
	MessageType MessageType `json:"message_type"`
	RoomID      string      `json:"room_id"`
}

func (m UndoRequestMessage) GetMessageType() MessageType { return m.MessageType }

func (m UndoRequestMessage) Validate() error {
	if m.MessageType != MessageTypeUndoRequest {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeUndoRequest, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// RedoRequestMessage asks the server to step the room's history forward
type RedoRequestMessage struct {
	MessageType MessageType `json:"message_type"`
	RoomID      string      `json:"room_id"`
}

func (m RedoRequestMessage) GetMessageType() MessageType { return m.MessageType }

func (m RedoRequestMessage) Validate() error {
	if m.MessageType != MessageTypeRedoRequest {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeRedoRequest, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// SaveRequestMessage persists the room's current elements through the board
// store; the outcome goes back to the requester only
type SaveRequestMessage struct {
	MessageType MessageType `json:"message_type"`
	RoomID      string      `json:"room_id"`
	Name        string      `json:"name,omitempty"`
}

func (m SaveRequestMessage) GetMessageType() MessageType { return m.MessageType }

func (m SaveRequestMessage) Validate() error {
	if m.MessageType != MessageTypeSaveRequest {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeSaveRequest, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// RoomStateMessage is the full snapshot sent to a joiner: every current
// participant (the joiner included) and the canonical element collection
type RoomStateMessage struct {
	MessageType    MessageType `json:"message_type"`
	RoomID         string      `json:"room_id"`
	Name           string      `json:"name,omitempty"`
	Participants   []Presence  `json:"participants"`
	Elements       []*Element  `json:"elements"`
	SequenceNumber uint64      `json:"sequence_number"`
}

func (m RoomStateMessage) GetMessageType() MessageType { return m.MessageType }

func (m RoomStateMessage) Validate() error {
	if m.MessageType != MessageTypeRoomState {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeRoomState, m.MessageType)
	}
	if m.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// PresenceUpdatedMessage carries the complete participant list after a join
// or leave
type PresenceUpdatedMessage struct {
	MessageType    MessageType `json:"message_type"`
	Participants   []Presence  `json:"participants"`
	SequenceNumber uint64      `json:"sequence_number"`
}

func (m PresenceUpdatedMessage) GetMessageType() MessageType { return m.MessageType }

func (m PresenceUpdatedMessage) Validate() error {
	if m.MessageType != MessageTypePresenceUpdated {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypePresenceUpdated, m.MessageType)
	}
	return nil
}

// CursorMovedMessage relays one participant's cursor position to the rest of
// the room
type CursorMovedMessage struct {
	MessageType    MessageType `json:"message_type"`
	ParticipantID  string      `json:"participant_id"`
	X              float64     `json:"x"`
	Y              float64     `json:"y"`
	SequenceNumber uint64      `json:"sequence_number"`
}

func (m CursorMovedMessage) GetMessageType() MessageType { return m.MessageType }

func (m CursorMovedMessage) Validate() error {
	if m.MessageType != MessageTypeCursorMoved {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeCursorMoved, m.MessageType)
	}
	if m.ParticipantID == "" {
		return fmt.Errorf("participant_id is required")
	}
	return nil
}

// StateCorrectionMessage replaces the receiver's mirrored element collection
// wholesale; emitted after undo/redo moves the room's history cursor
type StateCorrectionMessage struct {
	MessageType    MessageType `json:"message_type"`
	Elements       []*Element  `json:"elements"`
	SequenceNumber uint64      `json:"sequence_number"`
}

func (m StateCorrectionMessage) GetMessageType() MessageType { return m.MessageType }

func (m StateCorrectionMessage) Validate() error {
	if m.MessageType != MessageTypeStateCorrection {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeStateCorrection, m.MessageType)
	}
	return nil
}

// SaveResultMessage reports a save's outcome to its requester
type SaveResultMessage struct {
	MessageType MessageType `json:"message_type"`
	OK          bool        `json:"ok"`
	Message     string      `json:"message,omitempty"`
}

func (m SaveResultMessage) GetMessageType() MessageType { return m.MessageType }

func (m SaveResultMessage) Validate() error {
	if m.MessageType != MessageTypeSaveResult {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeSaveResult, m.MessageType)
	}
	return nil
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	MessageType MessageType `json:"message_type"`
	Error       string      `json:"error"`
	Message     string      `json:"message"`
	Timestamp   time.Time   `json:"timestamp"`
}

func (m ErrorMessage) GetMessageType() MessageType { return m.MessageType }

func (m ErrorMessage) Validate() error {
	if m.MessageType != MessageTypeError {
		return fmt.Errorf("invalid message_type: expected %s, got %s", MessageTypeError, m.MessageType)
	}
	if m.Error == "" {
		return fmt.Errorf("error is required")
	}
	return nil
}

// ParseClientMessage parses and validates an inbound WebSocket message.
// Server-only message types return ErrServerOnlyMessage.
func ParseClientMessage(data []byte) (Message, error) {
	var base struct {
		MessageType MessageType `json:"message_type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse base message: %w", err)
	}

	switch base.MessageType {
	case MessageTypeJoin:
		var msg JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse join message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeCursorMove:
		var msg CursorMoveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse cursor move message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeBoardOperation:
		var msg BoardOperationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse board operation message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeUndoRequest:
		var msg UndoRequestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse undo request message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeRedoRequest:
		var msg RedoRequestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse redo request message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeSaveRequest:
		var msg SaveRequestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse save request message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeRoomState, MessageTypePresenceUpdated, MessageTypeCursorMoved,
		MessageTypeStateCorrection, MessageTypeSaveResult, MessageTypeError:
		return nil, fmt.Errorf("%w: %s", ErrServerOnlyMessage, base.MessageType)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessageType, base.MessageType)
	}
}

// MarshalMessage validates and marshals a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("message validation failed: %w", err)
	}
	return json.Marshal(msg)
}
