package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/remote"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

const room = "ABC123"

type peer struct {
	m     *turn.Machine
	a     *remote.Adapter
	src   *dice.FixedSource
	sched *schedule.Manual
	logs  *observer.ObservedLogs
}

func newPeer(t *testing.T, store remote.Store) *peer {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	p := &peer{src: dice.NewFixedSource(), sched: schedule.NewManual(), logs: logs}
	loc := i18n.NewLocalizer(i18n.MustLoadEmbedded(), "en", logger)
	p.m = turn.NewMachine(dice.NewLoggedRoller(p.src, logger), p.sched, loc, logger, turn.DefaultConfig())
	p.a = remote.NewAdapter(p.m, store, p.sched, logger)
	return p
}

func (p *peer) roll(faces ...int) {
	p.src.Push(faces...)
	p.m.Roll()
}

// startRoom hosts a two-human game and joins it from a second peer.
func startRoom(t *testing.T) (*remote.MemoryStore, *peer, *peer) {
	t.Helper()
	ctx := context.Background()
	store := remote.NewMemoryStore()
	host, guest := newPeer(t, store), newPeer(t, store)

	host.m.NewGame([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Bob"}}, 500)
	require.NoError(t, host.a.Join(ctx, room, remote.RoleHost, true))
	require.NoError(t, guest.a.Join(ctx, room, remote.RoleJoin, false))
	return store, host, guest
}

func record(t *testing.T, store remote.Store) []byte {
	t.Helper()
	doc, err := store.Get(context.Background(), room)
	require.NoError(t, err)
	return doc
}

func TestAdapter_InactiveAllowsEverything(t *testing.T) {
	p := newPeer(t, remote.NewMemoryStore())
	assert.True(t, p.a.CanModify())
	assert.False(t, p.a.Active())
	assert.False(t, p.m.Multiplayer())
}

func TestAdapter_HostCreatesWaitingRecord(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemoryStore()
	host := newPeer(t, store)
	host.m.NewGame([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Bob"}}, 500)

	require.NoError(t, host.a.Join(ctx, room, remote.RoleHost, true))

	doc := record(t, store)
	assert.True(t, remote.IsGameState(doc))
	assert.True(t, gjson.GetBytes(doc, "waitingForPlayer2").Bool())
	assert.Equal(t, "Alice", gjson.GetBytes(doc, "players.0.name").String())
	assert.True(t, gjson.GetBytes(doc, "createdAt").Exists())
	assert.True(t, host.m.Multiplayer())
	assert.Equal(t, room, host.a.Code())
	assert.Equal(t, remote.RoleHost, host.a.Role())

	host.roll(1, 1, 1, 2, 3)
	assert.True(t, host.m.State().DiceHidden, "no rolling before the second participant joins")
	assert.Equal(t, "waitingForPlayer2", host.m.RollHint())
}

func TestAdapter_JoinClearsWaitingAndMirrors(t *testing.T) {
	store, host, guest := startRoom(t)

	assert.False(t, gjson.GetBytes(record(t, store), "waitingForPlayer2").Bool())
	assert.False(t, host.m.State().WaitingForPlayer2)

	gs := guest.m.State()
	require.Len(t, gs.Players, 2)
	assert.Equal(t, "Alice", gs.Players[0].Name)
	assert.Equal(t, "Bob", gs.Players[1].Name)
	assert.Equal(t, 500, gs.QualificationScore)
	assert.False(t, guest.m.MenuShowing())
	assert.True(t, host.m.State().Equal(gs))
}

func TestAdapter_TurnGating(t *testing.T) {
	_, host, guest := startRoom(t)

	assert.True(t, host.a.CanModify())
	assert.False(t, guest.a.CanModify())

	guest.roll(1, 1, 1, 1, 1)
	assert.True(t, guest.m.State().DiceHidden, "guest cannot roll on the host's turn")

	host.roll(1, 1, 1, 2, 3)
	gs := guest.m.State()
	assert.False(t, gs.DiceHidden)
	assert.Equal(t, 1, gs.Dice[0].Value)
	assert.Equal(t, turn.AwaitingSelection, guest.m.Tag())

	guest.m.ToggleSelection(0)
	assert.False(t, host.m.State().Dice[0].Selected, "guest selection is rejected")

	for _, i := range []int{0, 1, 2} {
		host.m.ToggleSelection(i)
	}
	assert.True(t, guest.m.State().Dice[2].Selected)
	assert.Equal(t, 1000, guest.m.State().PotentialScore)

	host.m.KeepScore()
	gs = guest.m.State()
	assert.Equal(t, 1000, gs.Players[0].TotalScore)
	assert.Equal(t, 1, gs.CurrentPlayer)
	assert.True(t, guest.a.CanModify())
	assert.False(t, host.a.CanModify())

	host.roll(1, 1, 1, 1, 1)
	assert.True(t, host.m.State().DiceHidden, "host cannot roll on the guest's turn")
}

func TestAdapter_GuestBustHandsBack(t *testing.T) {
	_, host, guest := startRoom(t)
	host.roll(1, 1, 1, 2, 3)
	for _, i := range []int{0, 1, 2} {
		host.m.ToggleSelection(i)
	}
	host.m.KeepScore()

	guest.roll(2, 2, 3, 4, 6)
	require.True(t, host.m.State().IsBust)
	assert.Equal(t, turn.Bust, host.m.Tag())
	assert.Equal(t, 0, host.sched.Pending(), "only the acting side runs the bust timer")

	guest.sched.Advance(2 * time.Second)
	gs := host.m.State()
	assert.False(t, gs.IsBust)
	assert.Equal(t, 0, gs.CurrentPlayer)
	assert.True(t, host.a.CanModify())
}

func TestAdapter_CreatedAtSurvivesUpdates(t *testing.T) {
	store, host, _ := startRoom(t)
	created := gjson.GetBytes(record(t, store), "createdAt").String()
	require.NotEmpty(t, created)

	host.roll(1, 5, 2, 3, 6)
	doc := record(t, store)
	assert.Equal(t, created, gjson.GetBytes(doc, "createdAt").String())
	assert.True(t, gjson.GetBytes(doc, "updatedAt").Exists())
}

func TestAdapter_UpdateJoiningPlayerName(t *testing.T) {
	ctx := context.Background()
	_, host, guest := startRoom(t)

	require.NoError(t, guest.a.UpdateJoiningPlayerName(ctx, "Carol"))
	assert.Equal(t, "Carol", host.m.State().Players[1].Name)
	assert.Equal(t, "Carol", guest.m.State().Players[1].Name)

	assert.Error(t, host.a.UpdateJoiningPlayerName(ctx, "Mallory"))
	assert.Error(t, guest.a.UpdateJoiningPlayerName(ctx, ""))
}

func TestAdapter_IgnoresInvalidRecords(t *testing.T) {
	ctx := context.Background()
	store, host, guest := startRoom(t)
	before := host.m.State()

	require.NoError(t, store.Set(ctx, room, []byte(`{"players":[{"name":"X"}]}`)))

	assert.True(t, host.m.State().Equal(before))
	assert.True(t, guest.m.State().Equal(before))
	assert.Equal(t, 1, host.logs.FilterMessage("ignoring invalid remote record").Len())
}

func TestAdapter_ResetDeletesRecordAndLeaves(t *testing.T) {
	ctx := context.Background()
	store, host, guest := startRoom(t)
	var closed string
	guest.a.OnClosed(func(code string) { closed = code })

	host.m.Reset(0)

	_, err := store.Get(ctx, room)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.False(t, host.a.Active())
	assert.False(t, host.m.Multiplayer())
	assert.False(t, guest.a.Active())
	assert.False(t, guest.m.Multiplayer())
	assert.Equal(t, room, closed)
	assert.Equal(t, 1, guest.logs.FilterMessage("remote record removed").Len())
}

func TestAdapter_LeaveStopsMirroring(t *testing.T) {
	_, host, guest := startRoom(t)
	guest.a.Leave()
	assert.False(t, guest.m.Multiplayer())

	host.roll(1, 5, 2, 3, 6)
	assert.True(t, guest.m.State().DiceHidden)
	guest.a.Leave()
}

func TestAdapter_JoinErrors(t *testing.T) {
	ctx := context.Background()
	p := newPeer(t, remote.NewMemoryStore())

	assert.ErrorIs(t, p.a.Join(ctx, room, remote.Role("spectator"), false), remote.ErrUnknownRole)
	assert.ErrorIs(t, p.a.Join(ctx, room, remote.RoleJoin, false), remote.ErrNotFound)
	assert.Error(t, p.a.Join(ctx, "", remote.RoleHost, true))
	assert.False(t, p.a.Active())
	assert.False(t, p.m.Multiplayer())
}

func TestAdapter_RejoinAsHostFollowsExistingRecord(t *testing.T) {
	ctx := context.Background()
	store, host, _ := startRoom(t)
	host.roll(1, 5, 2, 3, 6)
	host.a.Leave()

	fresh := newPeer(t, store)
	require.NoError(t, fresh.a.Join(ctx, room, remote.RoleHost, false))
	assert.True(t, fresh.m.State().Equal(host.m.State()))
	assert.True(t, fresh.a.CanModify())
}

func TestAdapter_GuestCannotChangeQualificationOnHostTurn(t *testing.T) {
	store, host, guest := startRoom(t)
	require.False(t, guest.a.CanModify())

	guest.m.SetQualificationScore(1000)

	assert.Equal(t, int64(500), gjson.GetBytes(record(t, store), "qualificationScore").Int())
	assert.Equal(t, 500, guest.m.State().QualificationScore)
	assert.Equal(t, 500, host.m.State().QualificationScore)
}

func TestAdapter_HostQualificationChangeReachesGuest(t *testing.T) {
	store, host, guest := startRoom(t)
	require.True(t, host.a.CanModify())

	host.m.SetQualificationScore(1000)

	assert.Equal(t, int64(1000), gjson.GetBytes(record(t, store), "qualificationScore").Int())
	assert.Equal(t, 1000, guest.m.State().QualificationScore)
}
