package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/sleuth/internal/session"
)

// setupTabStore creates a new DB and returns its TabStore.
// The DB is closed when the test completes.
func setupTabStore(t *testing.T) *TabStore {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db.TabStore()
}

func TestTabStore_LoadMissing(t *testing.T) {
	store := setupTabStore(t)

	id, ok, err := store.Load("nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, id)
}

func TestTabStore_StoreAndLoad(t *testing.T) {
	store := setupTabStore(t)

	require.NoError(t, store.Store("TMUX_PANE=%1", "tab_1700000000000_abc123"))

	id, ok, err := store.Load("TMUX_PANE=%1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tab_1700000000000_abc123", id)
}

func TestTabStore_StoreOverwrites(t *testing.T) {
	store := setupTabStore(t)

	require.NoError(t, store.Store("scope", "tab_1_aaaaaa"))
	require.NoError(t, store.Store("scope", "tab_2_bbbbbb"))

	id, _, err := store.Load("scope")
	require.NoError(t, err)
	require.Equal(t, "tab_2_bbbbbb", id)
}

func TestTabStore_TabIDIsUniqueAcrossScopes(t *testing.T) {
	store := setupTabStore(t)

	require.NoError(t, store.Store("scope-a", "tab_1_aaaaaa"))
	require.Error(t, store.Store("scope-b", "tab_1_aaaaaa"), "two tabs must never share an id")
}

func TestTabStore_RemoveIsIdempotent(t *testing.T) {
	store := setupTabStore(t)

	require.NoError(t, store.Store("scope", "tab_1_aaaaaa"))
	require.NoError(t, store.Remove("scope"))
	require.NoError(t, store.Remove("scope"))

	_, ok, err := store.Load("scope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTabStore_ListAndPrune(t *testing.T) {
	store := setupTabStore(t)
	base := time.Unix(1_700_000_000, 0)

	store.now = func() time.Time { return base }
	require.NoError(t, store.Store("old", "tab_1_aaaaaa"))
	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, store.Store("new", "tab_2_bbbbbb"))

	tabs, err := store.List()
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	require.Equal(t, "new", tabs[0].Scope, "most recently seen first")
	require.Equal(t, base.Add(48*time.Hour), tabs[0].LastSeen())

	removed, err := store.Prune(base.Add(24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	tabs, err = store.List()
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	require.Equal(t, "tab_2_bbbbbb", tabs[0].TabID)
}

func TestTabStore_BacksIdentity(t *testing.T) {
	store := setupTabStore(t)

	first := session.NewIdentity(store, "WT_SESSION=x").Get()
	second := session.NewIdentity(store, "WT_SESSION=x").Get()
	require.Equal(t, first, second)

	session.NewIdentity(store, "WT_SESSION=x").Release()
	_, ok, err := store.Load("WT_SESSION=x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTabStore_RoundTripProperty(t *testing.T) {
	store := setupTabStore(t)

	rapid.Check(t, func(rt *rapid.T) {
		scope := rapid.StringMatching(`[A-Z_]{1,12}=[a-z0-9%]{1,6}`).Draw(rt, "scope")
		id := session.NewID(time.Now())

		require.NoError(rt, store.Store(scope, id))
		got, ok, err := store.Load(scope)
		require.NoError(rt, err)
		require.True(rt, ok)
		require.Equal(rt, id, got)
		require.NoError(rt, store.Remove(scope))
	})
}
