package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "apm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestRememberOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"100", "200", "300", "200", " 400 "} {
		require.NoError(t, s.Remember(ctx, "ops", id))
	}

	ids, err := s.List(ctx, "ops", 0)
	require.NoError(t, err)
	// repeated ids keep their original slot
	assert.Equal(t, []string{"400", "300", "200", "100"}, ids)

	ids, err = s.List(ctx, "ops", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"400", "300"}, ids)
}

func TestRememberBlank(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.Remember(context.Background(), "ops", "  "), ErrBlankDeviceID)
}

func TestOwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Remember(ctx, "a", "1"))
	require.NoError(t, s.Remember(ctx, "b", "2"))

	ids, err := s.List(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	ids, err = s.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestForgetAndClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Remember(ctx, "ops", id))
	}

	require.NoError(t, s.Forget(ctx, "ops", "2"))
	require.NoError(t, s.Forget(ctx, "ops", "unknown"))
	ids, err := s.List(ctx, "ops", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, ids)

	require.NoError(t, s.Clear(ctx, "ops"))
	ids, err = s.List(ctx, "ops", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"200001", "200002", "300001", "200003"} {
		require.NoError(t, s.Remember(ctx, "ops", id))
	}

	ids, err := s.Suggest(ctx, "ops", "2000", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"200003", "200002"}, ids)

	ids, err = s.Suggest(ctx, "ops", "", DefaultSuggestions)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "apm.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Remember(ctx, "ops", "42"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ids, err := s.List(ctx, "ops", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)
}
