package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/remote"
	"github.com/cory-johannsen/tenthousand/internal/storage/postgres"
	"github.com/cory-johannsen/tenthousand/internal/testutil"
)

func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1_000_000_000)
}

func newStore(t *testing.T) *postgres.RecordStore {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	s := postgres.NewRecordStore(pc.DB(), zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestRecordStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	code := uniqueCode("R")

	_, err := s.Get(ctx, code)
	require.ErrorIs(t, err, remote.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, code, map[string]any{"a": 1}), remote.ErrNotFound)

	require.NoError(t, s.Set(ctx, code, []byte(`{"players":[{"name":"Alice"},{"name":"Bob"}],"dice":[]}`)))
	require.NoError(t, s.Update(ctx, code, map[string]any{"players/1/name": "Carol"}))

	doc, err := s.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "Carol", gjson.GetBytes(doc, "players.1.name").String())
	assert.True(t, remote.IsGameState(doc))

	require.NoError(t, s.Set(ctx, code, []byte(`{"players":[],"dice":[]}`)))
	doc, err = s.Get(ctx, code)
	require.NoError(t, err)
	assert.JSONEq(t, `{"players":[],"dice":[]}`, string(doc))

	codes, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, code)

	require.NoError(t, s.Delete(ctx, code))
	_, err = s.Get(ctx, code)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestRecordStore_PruneBefore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	code := uniqueCode("P")
	require.NoError(t, s.Set(ctx, code, []byte(`{}`)))

	n, err := s.PruneBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PruneBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

type delivery struct {
	name string
	ok   bool
}

func TestRecordStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	code := uniqueCode("S")
	events := make(chan delivery, 32)

	cancel, err := s.Subscribe(ctx, code, func(doc []byte, ok bool) {
		events <- delivery{gjson.GetBytes(doc, "name").String(), ok}
	})
	require.NoError(t, err)
	require.Equal(t, delivery{"", false}, <-events)

	next := func() delivery {
		t.Helper()
		select {
		case d := <-events:
			return d
		case <-time.After(5 * time.Second):
			t.Fatal("no notification")
			return delivery{}
		}
	}

	require.NoError(t, s.Set(ctx, code, []byte(`{"name":"one"}`)))
	assert.Equal(t, delivery{"one", true}, next())

	require.NoError(t, s.Update(ctx, code, map[string]any{"name": "two"}))
	assert.Equal(t, delivery{"two", true}, next())

	require.NoError(t, s.Delete(ctx, code))
	assert.Equal(t, delivery{"", false}, next())

	require.NoError(t, s.Set(ctx, uniqueCode("X"), []byte(`{"name":"other"}`)))
	cancel()
	require.NoError(t, s.Set(ctx, code, []byte(`{"name":"three"}`)))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, events)
}

func TestMigrator_DownAndUp(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	m, err := postgres.NewMigrator(pc.Config.DSN())
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, m.Down())
	require.NoError(t, postgres.MigrateUp(pc.Config.DSN()))
}
