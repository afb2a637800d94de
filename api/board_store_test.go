package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisBoardStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBoardStore(client)
}

func testSnapshot(roomID string) *BoardSnapshot {
	return &BoardSnapshot{
		RoomID: roomID,
		Name:   "Test Board",
		Elements: []*Element{
			{ID: "r1", Kind: ElementKindRectangle, X: fptr(10), Width: fptr(50)},
			{ID: "s1", Kind: ElementKindFreedraw, Points: []float64{0, 0, 1, 1}},
		},
		SavedBy: "alice",
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisBoardStoreSaveAndLoad(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	saved := testSnapshot("room-1")
	require.NoError(t, store.SaveRoom(ctx, saved))

	loaded, err := store.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, saved.Name, loaded.Name)
	assert.Equal(t, saved.SavedBy, loaded.SavedBy)
	require.Len(t, loaded.Elements, 2)
	assert.Equal(t, ElementKindFreedraw, loaded.Elements[1].Kind)
	assert.Equal(t, []float64{0, 0, 1, 1}, loaded.Elements[1].Points)
}

func TestRedisBoardStoreNotFound(t *testing.T) {
	store := newTestRedisStore(t)

	_, err := store.LoadRoom(context.Background(), "never-saved")
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestRedisBoardStoreOverwrite(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRoom(ctx, testSnapshot("room-1")))

	second := testSnapshot("room-1")
	second.Name = "Renamed"
	second.Elements = second.Elements[:1]
	require.NoError(t, store.SaveRoom(ctx, second))

	loaded, err := store.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Len(t, loaded.Elements, 1)
}

func TestMemoryBoardStoreSaveAndLoad(t *testing.T) {
	store := NewMemoryBoardStore()
	ctx := context.Background()

	_, err := store.LoadRoom(ctx, "room-1")
	assert.ErrorIs(t, err, ErrBoardNotFound)

	saved := testSnapshot("room-1")
	require.NoError(t, store.SaveRoom(ctx, saved))

	loaded, err := store.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, saved.Elements, loaded.Elements)
}

func TestMemoryBoardStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryBoardStore()
	ctx := context.Background()

	saved := testSnapshot("room-1")
	require.NoError(t, store.SaveRoom(ctx, saved))

	// Mutations on either side of the store must not leak through it
	*saved.Elements[0].X = 999

	loaded, err := store.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *loaded.Elements[0].X)

	*loaded.Elements[0].X = -1
	again, err := store.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *again.Elements[0].X)
}
