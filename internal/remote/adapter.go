package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

// Role is the seat a participant occupies in a remote game.
type Role string

const (
	// RoleHost owns seat 0 and creates the record.
	RoleHost Role = "host"
	// RoleJoin owns seat 1.
	RoleJoin Role = "join"
)

// Index returns the seat index the role controls, or -1 for an unknown role.
func (r Role) Index() int {
	switch r {
	case RoleHost:
		return 0
	case RoleJoin:
		return 1
	}
	return -1
}

// ErrUnknownRole is returned by Join for a role other than RoleHost or RoleJoin.
var ErrUnknownRole = errors.New("remote: unknown role")

const (
	pushTimeout = 5 * time.Second
	// maxInflight bounds the own writes remembered for echo suppression.
	maxInflight = 32
)

// Adapter mirrors one Machine through a Store. While active it is the
// Machine's Authority: the local participant may act only on its own seat.
//
// Join, Leave and UpdateJoiningPlayerName must be called on the Machine's
// scheduler. Store notifications are posted onto it.
type Adapter struct {
	m      *turn.Machine
	store  Store
	sched  schedule.Scheduler
	logger *zap.Logger

	code      string
	role      Role
	active    bool
	gen       uint64
	createdAt time.Time
	// inflight holds states pushed but not yet seen back from the store.
	inflight []turn.GameState

	cancelStore   func()
	cancelMachine func()
	onClosed      func(code string)
}

// NewAdapter creates an inactive Adapter for m.
//
// Precondition: every argument must be non-nil.
func NewAdapter(m *turn.Machine, store Store, sched schedule.Scheduler, logger *zap.Logger) *Adapter {
	return &Adapter{m: m, store: store, sched: sched, logger: logger}
}

// OnClosed registers fn to run when the bound room's record is deleted by
// the other participant. The adapter has already left when fn runs.
func (a *Adapter) OnClosed(fn func(code string)) {
	a.onClosed = fn
}

// Active reports whether the adapter is bound to a room.
func (a *Adapter) Active() bool {
	return a.active
}

// Code returns the bound room code, or "" when inactive.
func (a *Adapter) Code() string {
	return a.code
}

// Role returns the bound role, or "" when inactive.
func (a *Adapter) Role() Role {
	return a.role
}

// CanModify reports whether the local participant may change the shared
// game: always when not bound to a room, otherwise only on its own seat.
func (a *Adapter) CanModify() bool {
	if !a.active {
		return true
	}
	return a.m.State().CurrentPlayer == a.role.Index()
}

// Join binds the adapter to room code as role.
//
// A host with startGame writes the Machine's current game as the record,
// marked as waiting for the second participant. A joiner requires the record
// to exist and clears the waiting flag. Either way the adapter then follows
// the record and pushes local changes.
func (a *Adapter) Join(ctx context.Context, code string, role Role, startGame bool) error {
	if role.Index() < 0 {
		return fmt.Errorf("joining room %q: %w: %q", code, ErrUnknownRole, role)
	}
	if code == "" {
		return fmt.Errorf("joining room: empty room code")
	}
	if a.active {
		a.Leave()
	}

	a.code, a.role = code, role
	a.createdAt = time.Time{}
	a.inflight = nil

	switch {
	case role == RoleHost && startGame:
		a.m.SetAuthority(a)
		a.m.SetWaitingForPlayer2(true)
		a.createdAt = time.Now().UTC()
		if err := a.write(ctx, a.m.State()); err != nil {
			a.m.SetAuthority(nil)
			return fmt.Errorf("creating room %q: %w", code, err)
		}
	case role == RoleJoin:
		if _, err := a.store.Get(ctx, code); err != nil {
			return fmt.Errorf("joining room %q: %w", code, err)
		}
		a.m.SetAuthority(a)
		if err := a.store.Update(ctx, code, map[string]any{"waitingForPlayer2": false}); err != nil {
			a.m.SetAuthority(nil)
			return fmt.Errorf("joining room %q: %w", code, err)
		}
	default:
		a.m.SetAuthority(a)
	}

	a.active = true
	a.gen++
	gen := a.gen
	cancel, err := a.store.Subscribe(ctx, code, func(doc []byte, ok bool) {
		a.sched.Post(func() {
			if a.gen != gen || !a.active {
				return
			}
			a.applyRemote(doc, ok)
		})
	})
	if err != nil {
		a.active = false
		a.m.SetAuthority(nil)
		return fmt.Errorf("subscribing to room %q: %w", code, err)
	}
	a.cancelStore = cancel
	a.cancelMachine = a.m.Subscribe(a.onChange)
	a.logger.Info("joined room", zap.String("code", code), zap.String("role", string(role)), zap.Bool("start", startGame))
	return nil
}

// Leave unbinds the adapter and returns the Machine to local play.
func (a *Adapter) Leave() {
	if !a.active {
		return
	}
	if a.cancelStore != nil {
		a.cancelStore()
	}
	if a.cancelMachine != nil {
		a.cancelMachine()
	}
	a.cancelStore, a.cancelMachine = nil, nil
	a.m.SetAuthority(nil)
	a.logger.Info("left room", zap.String("code", a.code), zap.String("role", string(a.role)))
	a.active = false
	a.gen++
	a.code, a.role = "", ""
	a.inflight = nil
}

// UpdateJoiningPlayerName renames seat 1 in the shared record. Only the
// joining participant may do this.
func (a *Adapter) UpdateJoiningPlayerName(ctx context.Context, name string) error {
	if !a.active || a.role != RoleJoin {
		return fmt.Errorf("updating player name: not joined as %s", RoleJoin)
	}
	if name == "" {
		return fmt.Errorf("updating player name: empty name")
	}
	if err := a.store.Update(ctx, a.code, map[string]any{"players/1/name": name}); err != nil {
		return fmt.Errorf("updating player name: %w", err)
	}
	return nil
}

func (a *Adapter) applyRemote(doc []byte, ok bool) {
	if !ok {
		code := a.code
		a.logger.Info("remote record removed", zap.String("code", code))
		a.Leave()
		if a.onClosed != nil {
			a.onClosed(code)
		}
		return
	}
	if !IsGameState(doc) {
		a.logger.Warn("ignoring invalid remote record", zap.String("code", a.code), zap.Int("bytes", len(doc)))
		return
	}
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		a.logger.Warn("ignoring undecodable remote record", zap.String("code", a.code), zap.Error(err))
		return
	}
	if a.createdAt.IsZero() {
		a.createdAt = rec.CreatedAt
	}
	if a.echo(rec.GameState) {
		return
	}
	a.m.Replace(rec.GameState)
}

// echo reports whether gs is one of our own pushes coming back, forgetting
// it and every older push.
func (a *Adapter) echo(gs turn.GameState) bool {
	for i := len(a.inflight) - 1; i >= 0; i-- {
		if a.inflight[i].Equal(gs) {
			a.inflight = a.inflight[i+1:]
			return true
		}
	}
	return false
}

func (a *Adapter) onChange(c turn.Change) {
	if c.Remote {
		return
	}
	if c.Op == turn.OpReset {
		code := a.code
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		a.Leave()
		if err := a.store.Delete(ctx, code); err != nil {
			a.logger.Error("deleting room record", zap.String("code", code), zap.Error(err))
		}
		return
	}
	if !c.Push && !a.CanModify() && !a.m.MenuShowing() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := a.write(ctx, c.State); err != nil {
		a.logger.Error("pushing game state", zap.String("code", a.code), zap.String("op", string(c.Op)), zap.Error(err))
	}
}

func (a *Adapter) write(ctx context.Context, gs turn.GameState) error {
	now := time.Now().UTC()
	if a.createdAt.IsZero() {
		a.createdAt = now
	}
	doc, err := json.Marshal(Record{GameState: gs, CreatedAt: a.createdAt, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	a.inflight = append(a.inflight, gs.Clone())
	if len(a.inflight) > maxInflight {
		a.inflight = a.inflight[len(a.inflight)-maxInflight:]
	}
	return a.store.Set(ctx, a.code, doc)
}

var _ turn.Authority = (*Adapter)(nil)
