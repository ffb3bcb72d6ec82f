package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore().WithClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Hour))

	now = now.Add(2 * time.Minute)
	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	val := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", val, 0))
	val[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[0] = 'y'
	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}
