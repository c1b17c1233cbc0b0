package remote_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tenthousand/internal/remote"
)

type delivery struct {
	doc string
	ok  bool
}

func TestMemoryStore_SubscribeDeliversCurrentAndChanges(t *testing.T) {
	ctx := context.Background()
	s := remote.NewMemoryStore()
	var got []delivery

	cancel, err := s.Subscribe(ctx, "ROOM", func(doc []byte, ok bool) {
		got = append(got, delivery{string(doc), ok})
	})
	require.NoError(t, err)
	require.Equal(t, []delivery{{"", false}}, got)

	require.NoError(t, s.Set(ctx, "ROOM", []byte(`{"a":1}`)))
	require.NoError(t, s.Update(ctx, "ROOM", map[string]any{"a": 2}))
	require.NoError(t, s.Set(ctx, "OTHER", []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, "ROOM"))

	assert.Equal(t, []delivery{
		{"", false},
		{`{"a":1}`, true},
		{`{"a":2}`, true},
		{"", false},
	}, got)

	cancel()
	require.NoError(t, s.Set(ctx, "ROOM", []byte(`{}`)))
	assert.Len(t, got, 4)
}

func TestMemoryStore_GetUpdateDeleteList(t *testing.T) {
	ctx := context.Background()
	s := remote.NewMemoryStore()

	_, err := s.Get(ctx, "X")
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "X", map[string]any{"a": 1}), remote.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "X"))

	doc := []byte(`{"a":1}`)
	require.NoError(t, s.Set(ctx, "B", doc))
	require.NoError(t, s.Set(ctx, "A", []byte(`{}`)))
	doc[2] = 'z'

	got, err := s.Get(ctx, "B")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got), "stored copy is independent of the caller's slice")

	codes, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes)
}

func TestMemoryStore_SubscriberMayWrite(t *testing.T) {
	ctx := context.Background()
	s := remote.NewMemoryStore()
	writes := 0
	_, err := s.Subscribe(ctx, "R", func(doc []byte, ok bool) {
		if ok && writes == 0 {
			writes++
			require.NoError(t, s.Update(ctx, "R", map[string]any{"seen": true}))
		}
	})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "R", []byte(`{}`)))
	got, err := s.Get(ctx, "R")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seen":true}`, string(got))
}
