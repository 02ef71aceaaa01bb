package user

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("creates user with empty rules", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, 100, "alice"))

		u, err := store.Get(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), u.TelegramID)
		assert.Equal(t, "alice", u.Username)
		assert.Empty(t, u.Goals)
		assert.Empty(t, u.AllowedUsecases)
		assert.Empty(t, u.ForbiddenUsecases)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate id returns ErrExists", func(t *testing.T) {
		err := store.Create(ctx, 100, "alice-again")
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("username is optional", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, 101, ""))

		u, err := store.Get(ctx, 101)
		require.NoError(t, err)
		assert.Empty(t, u.Username)
	})

	t.Run("rejects non-positive id", func(t *testing.T) {
		assert.Error(t, store.Create(ctx, 0, "bob"))
	})
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("unknown user returns ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreSetGoals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Create(ctx, 200, "carol"))

	t.Run("replaces goals and rules", func(t *testing.T) {
		goals := []string{"learn Go", "ship the project"}
		allowed := []string{"study"}
		forbidden := []string{"scrolling"}

		require.NoError(t, store.SetGoals(ctx, 200, goals, allowed, forbidden))

		u, err := store.Get(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, goals, u.Goals)
		assert.Equal(t, allowed, u.AllowedUsecases)
		assert.Equal(t, forbidden, u.ForbiddenUsecases)
		assert.True(t, u.UpdatedAt.After(u.CreatedAt) || u.UpdatedAt.Equal(u.CreatedAt))
	})

	t.Run("second call overwrites, not appends", func(t *testing.T) {
		require.NoError(t, store.SetGoals(ctx, 200, []string{"one goal"}, nil, nil))

		u, err := store.Get(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, []string{"one goal"}, u.Goals)
		assert.Empty(t, u.AllowedUsecases)
	})

	t.Run("unknown user returns ErrNotFound", func(t *testing.T) {
		err := store.SetGoals(ctx, 999, []string{"x"}, nil, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Create(ctx, 300, "dave"))

	t.Run("append and read back newest first", func(t *testing.T) {
		minutes := 30
		first := HistoryEntry{
			Timestamp:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			RequestText:     "open feed to scroll",
			Decision:        "deny",
			Alternative:     "take a walk",
			DurationMinutes: &minutes,
		}
		second := HistoryEntry{
			Timestamp:   time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
			RequestText: "watch a tutorial",
			Decision:    "allow",
		}
		require.NoError(t, store.AppendHistory(ctx, 300, first))
		require.NoError(t, store.AppendHistory(ctx, 300, second))

		entries, err := store.History(ctx, 300, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, "watch a tutorial", entries[0].RequestText)
		assert.Equal(t, "allow", entries[0].Decision)
		assert.Nil(t, entries[0].DurationMinutes)

		assert.Equal(t, "open feed to scroll", entries[1].RequestText)
		assert.Equal(t, "deny", entries[1].Decision)
		assert.Equal(t, "take a walk", entries[1].Alternative)
		require.NotNil(t, entries[1].DurationMinutes)
		assert.Equal(t, 30, *entries[1].DurationMinutes)
	})

	t.Run("limit caps results", func(t *testing.T) {
		entries, err := store.History(ctx, 300, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("no history yields empty", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, 301, ""))
		entries, err := store.History(ctx, 301, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("zero timestamp is stamped on write", func(t *testing.T) {
		require.NoError(t, store.AppendHistory(ctx, 300, HistoryEntry{
			RequestText: "check messages",
			Decision:    "allow",
		}))
		entries, err := store.History(ctx, 300, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.False(t, entries[0].Timestamp.IsZero())
	})
}
