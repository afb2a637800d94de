package api

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

// Presence is one participant's live metadata within a room. Participants
// are keyed by connection, not by person: the same person in two tabs is two
// participants.
type Presence struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Color         string    `json:"color"`
	CursorX       float64   `json:"cursor_x"`
	CursorY       float64   `json:"cursor_y"`
	JoinedAt      time.Time `json:"joined_at"`
}

// RoomState is the canonical mutable state of one room: the ordered element
// collection, the presence set, the broadcast sequence counter, and a bounded
// snapshot history backing undo/redo. It is owned by the hub's run loop and
// must only be touched from there; no internal locking.
type RoomState struct {
	RoomID   string
	Name     string
	Elements []*Element
	Presence map[string]*Presence

	seq          uint64
	history      [][]*Element
	cursor       int
	historyDepth int
	createdAt    time.Time
}

// NewRoomState creates an empty room. The empty element collection is the
// history's base snapshot, so the first undo target always exists.
func NewRoomState(roomID string, historyDepth int) *RoomState {
	if historyDepth <= 0 {
		historyDepth = 1
	}
	return &RoomState{
		RoomID:       roomID,
		Elements:     []*Element{},
		Presence:     make(map[string]*Presence),
		history:      [][]*Element{{}},
		cursor:       0,
		historyDepth: historyDepth,
		createdAt:    time.Now().UTC(),
	}
}

// CreatedAt returns the room's creation time
func (s *RoomState) CreatedAt() time.Time {
	return s.createdAt
}

// Seq returns the last assigned sequence number
func (s *RoomState) Seq() uint64 {
	return s.seq
}

// NextSeq assigns the next broadcast sequence number. Strictly monotonic per
// room; clients use gaps to detect missed messages.
func (s *RoomState) NextSeq() uint64 {
	s.seq++
	return s.seq
}

// Seed replaces the element collection with a loaded snapshot. Only valid
// before any participant has joined; the snapshot becomes the history base.
func (s *RoomState) Seed(elements []*Element, name string) {
	s.Elements = CloneElements(elements)
	if s.Elements == nil {
		s.Elements = []*Element{}
	}
	s.Name = name
	s.history = [][]*Element{CloneElements(s.Elements)}
	s.cursor = 0
}

// AddParticipant inserts a participant with a fresh display color and the
// cursor at the origin. Joining twice with the same id refreshes identity but
// keeps the assigned color.
func (s *RoomState) AddParticipant(participantID string, identity Identity) *Presence {
	if existing, ok := s.Presence[participantID]; ok {
		existing.DisplayName = identity.DisplayName
		existing.AvatarURL = identity.AvatarURL
		return existing
	}
	p := &Presence{
		ParticipantID: participantID,
		DisplayName:   identity.DisplayName,
		AvatarURL:     identity.AvatarURL,
		Color:         randomColor(),
		JoinedAt:      time.Now().UTC(),
	}
	s.Presence[participantID] = p
	return p
}

// RemoveParticipant drops a participant and reports whether the room is now
// empty. The caller tears the room down the instant it empties.
func (s *RoomState) RemoveParticipant(participantID string) (empty bool) {
	delete(s.Presence, participantID)
	return len(s.Presence) == 0
}

// UpdateCursor overwrites a participant's cursor position. Returns false if
// the participant is unknown; only the latest position is held, never a
// history, so bursts cost nothing beyond the overwrite.
func (s *RoomState) UpdateCursor(participantID string, x, y float64) bool {
	p, ok := s.Presence[participantID]
	if !ok {
		return false
	}
	p.CursorX = x
	p.CursorY = y
	return true
}

// ParticipantList returns the presence set as a slice in join order
func (s *RoomState) ParticipantList() []Presence {
	out := make([]Presence, 0, len(s.Presence))
	for _, p := range s.Presence {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Apply merges one edit operation into the element collection and, when it
// changed anything, records a history snapshot. A new operation discards any
// redo tail.
func (s *RoomState) Apply(op *BoardOperation) (MergeOutcome, error) {
	merged, outcome, err := ApplyOperation(s.Elements, op)
	if err != nil {
		return outcome, err
	}
	s.Elements = merged
	if outcome != OutcomeNoop {
		s.pushHistory()
	}
	return outcome, nil
}

// Undo steps the element collection back one snapshot. Returns false when
// already at the history base.
func (s *RoomState) Undo() bool {
	if s.cursor == 0 {
		return false
	}
	s.cursor--
	s.Elements = CloneElements(s.history[s.cursor])
	return true
}

// Redo steps the element collection forward one snapshot. Returns false when
// there is nothing to redo.
func (s *RoomState) Redo() bool {
	if s.cursor >= len(s.history)-1 {
		return false
	}
	s.cursor++
	s.Elements = CloneElements(s.history[s.cursor])
	return true
}

// SnapshotElements returns a deep copy of the current element collection,
// safe to hand to goroutines outside the run loop
func (s *RoomState) SnapshotElements() []*Element {
	return CloneElements(s.Elements)
}

func (s *RoomState) pushHistory() {
	s.history = append(s.history[:s.cursor+1], CloneElements(s.Elements))
	s.cursor = len(s.history) - 1
	if len(s.history) > s.historyDepth {
		drop := len(s.history) - s.historyDepth
		s.history = s.history[drop:]
		s.cursor -= drop
	}
}

// randomColor draws a display color uniformly over the 24-bit color space
func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(1<<24))
}
