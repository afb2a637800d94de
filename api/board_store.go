package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBoardNotFound is returned when no saved board exists for a room id
var ErrBoardNotFound = errors.New("board not found")

// BoardSnapshot is a durable point-in-time copy of a room's element
// collection and metadata
type BoardSnapshot struct {
	RoomID   string     `json:"room_id"`
	Name     string     `json:"name,omitempty"`
	Elements []*Element `json:"elements"`
	SavedBy  string     `json:"saved_by,omitempty"`
	SavedAt  time.Time  `json:"saved_at"`
}

// BoardStore persists board snapshots. It sits outside the synchronization
// hot path: the hub loads once when a room is created and saves on explicit
// request, never per operation.
type BoardStore interface {
	LoadRoom(ctx context.Context, roomID string) (*BoardSnapshot, error)
	SaveRoom(ctx context.Context, snapshot *BoardSnapshot) error
}

// RedisBoardStore implements BoardStore on Redis, one JSON value per room
type RedisBoardStore struct {
	client *redis.Client
	prefix string
}

// NewRedisBoardStore creates a Redis-backed board store
func NewRedisBoardStore(client *redis.Client) *RedisBoardStore {
	return &RedisBoardStore{
		client: client,
		prefix: "boardsync:board:",
	}
}

func (s *RedisBoardStore) key(roomID string) string {
	return s.prefix + roomID
}

// LoadRoom fetches the saved snapshot for a room
func (s *RedisBoardStore) LoadRoom(ctx context.Context, roomID string) (*BoardSnapshot, error) {
	data, err := s.client.Get(ctx, s.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load board %s: %w", roomID, err)
	}

	var snapshot BoardSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode board %s: %w", roomID, err)
	}
	return &snapshot, nil
}

// SaveRoom persists a snapshot, overwriting any prior save for the room
func (s *RedisBoardStore) SaveRoom(ctx context.Context, snapshot *BoardSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode board %s: %w", snapshot.RoomID, err)
	}
	if err := s.client.Set(ctx, s.key(snapshot.RoomID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save board %s: %w", snapshot.RoomID, err)
	}
	return nil
}

// MemoryBoardStore implements BoardStore in process memory. Used when no
// Redis is configured and in tests; contents are lost on restart.
type MemoryBoardStore struct {
	mu     sync.RWMutex
	boards map[string]*BoardSnapshot
}

// NewMemoryBoardStore creates an empty in-memory board store
func NewMemoryBoardStore() *MemoryBoardStore {
	return &MemoryBoardStore{
		boards: make(map[string]*BoardSnapshot),
	}
}

// LoadRoom fetches the saved snapshot for a room
func (s *MemoryBoardStore) LoadRoom(_ context.Context, roomID string) (*BoardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.boards[roomID]
	if !ok {
		return nil, ErrBoardNotFound
	}
	out := *snapshot
	out.Elements = CloneElements(snapshot.Elements)
	return &out, nil
}

// SaveRoom persists a snapshot, overwriting any prior save for the room
func (s *MemoryBoardStore) SaveRoom(_ context.Context, snapshot *BoardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snapshot
	stored.Elements = CloneElements(snapshot.Elements)
	s.boards[snapshot.RoomID] = &stored
	return nil
}
