package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/remote"
)

// notifyChannel is the LISTEN channel the game_records trigger notifies
// with the changed room code as payload.
const notifyChannel = "game_records"

const reconnectDelay = time.Second

// RecordStore is a remote.Store on the game_records table. Subscriptions
// share one LISTEN connection, started with the first Subscribe.
type RecordStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	mu        sync.Mutex
	subs      map[string]map[int]*subscription
	nextID    int
	listening bool
	stop      context.CancelFunc
	done      chan struct{}
}

type subscription struct {
	mu   sync.Mutex
	fn   func([]byte, bool)
	last int64
	dead bool
}

// deliver calls fn unless the record is older than one already delivered.
func (s *subscription) deliver(doc []byte, version int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead || (ok && version <= s.last) {
		return
	}
	if ok {
		s.last = version
	}
	s.fn(doc, ok)
}

// NewRecordStore creates a RecordStore backed by db.
//
// Precondition: db must be a valid, open connection pool with the
// game_records schema applied; logger must be non-nil.
func NewRecordStore(db *pgxpool.Pool, logger *zap.Logger) *RecordStore {
	return &RecordStore{db: db, logger: logger, subs: map[string]map[int]*subscription{}}
}

// Get implements remote.Store.
func (s *RecordStore) Get(ctx context.Context, code string) ([]byte, error) {
	doc, _, err := s.load(ctx, code)
	return doc, err
}

func (s *RecordStore) load(ctx context.Context, code string) ([]byte, int64, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.db.QueryRow(ctx,
		`SELECT doc, version FROM game_records WHERE code = $1`, code,
	).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, remote.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading record %q: %w", code, err)
	}
	return doc, version, nil
}

// Set implements remote.Store.
func (s *RecordStore) Set(ctx context.Context, code string, doc []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO game_records (code, doc)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (code) DO UPDATE
		 SET doc = EXCLUDED.doc,
		     version = nextval('game_record_versions'),
		     updated_at = NOW()`,
		code, string(doc),
	)
	if err != nil {
		return fmt.Errorf("storing record %q: %w", code, err)
	}
	return nil
}

// Update implements remote.Store. The record is locked for the duration of
// the read-modify-write.
func (s *RecordStore) Update(ctx context.Context, code string, paths map[string]any) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx,
			`SELECT doc FROM game_records WHERE code = $1 FOR UPDATE`, code,
		).Scan(&doc)
		if errors.Is(err, pgx.ErrNoRows) {
			return remote.ErrNotFound
		}
		if err != nil {
			return err
		}
		updated, err := remote.ApplyPaths(doc, paths)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE game_records
			 SET doc = $2::jsonb, version = nextval('game_record_versions'), updated_at = NOW()
			 WHERE code = $1`,
			code, string(updated),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating record %q: %w", code, err)
	}
	return nil
}

// Delete implements remote.Store.
func (s *RecordStore) Delete(ctx context.Context, code string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM game_records WHERE code = $1`, code); err != nil {
		return fmt.Errorf("deleting record %q: %w", code, err)
	}
	return nil
}

// List implements remote.Store.
func (s *RecordStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT code FROM game_records ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return codes, nil
}

// PruneBefore deletes records not updated since cutoff and returns how many
// were removed.
func (s *RecordStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM game_records WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Subscribe implements remote.Store.
func (s *RecordStore) Subscribe(ctx context.Context, code string, fn func([]byte, bool)) (func(), error) {
	if err := s.ensureListening(ctx); err != nil {
		return nil, err
	}

	sub := &subscription{fn: fn}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[code] == nil {
		s.subs[code] = map[int]*subscription{}
	}
	s.subs[code][id] = sub
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs[code], id)
		if len(s.subs[code]) == 0 {
			delete(s.subs, code)
		}
		s.mu.Unlock()
		sub.mu.Lock()
		sub.dead = true
		sub.mu.Unlock()
	}

	doc, version, err := s.load(ctx, code)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		sub.deliver(nil, 0, false)
	case err != nil:
		cancel()
		return nil, err
	default:
		sub.deliver(doc, version, true)
	}
	return cancel, nil
}

// ensureListening starts the LISTEN goroutine once and waits until it is
// receiving notifications.
func (s *RecordStore) ensureListening(ctx context.Context) error {
	s.mu.Lock()
	if s.listening {
		s.mu.Unlock()
		return nil
	}
	lctx, stop := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	s.listening, s.stop, s.done = true, stop, make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.listen(lctx, ready, done)

	select {
	case err := <-ready:
		if err != nil {
			s.Close()
			return fmt.Errorf("listening for record changes: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

func (s *RecordStore) listen(ctx context.Context, ready chan<- error, done chan<- struct{}) {
	defer close(done)
	first := true
	for ctx.Err() == nil {
		err := s.listenOnce(ctx, func() {
			if first {
				first = false
				ready <- nil
				return
			}
			s.refreshAll(ctx)
		})
		if ctx.Err() != nil {
			return
		}
		if first {
			ready <- err
			return
		}
		s.logger.Warn("record listener lost connection", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
}

// listenOnce holds one connection in LISTEN mode until it fails or ctx ends.
func (s *RecordStore) listenOnce(ctx context.Context, onReady func()) error {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	onReady()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.dispatch(ctx, n.Payload)
	}
}

func (s *RecordStore) subscribers(code string) []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscription, 0, len(s.subs[code]))
	for _, sub := range s.subs[code] {
		out = append(out, sub)
	}
	return out
}

func (s *RecordStore) dispatch(ctx context.Context, code string) {
	subs := s.subscribers(code)
	if len(subs) == 0 {
		return
	}
	doc, version, err := s.load(ctx, code)
	ok := err == nil
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.logger.Warn("reloading changed record", zap.String("code", code), zap.Error(err))
		return
	}
	for _, sub := range subs {
		sub.deliver(doc, version, ok)
	}
}

// refreshAll re-delivers every watched record after a reconnect, since
// notifications may have been missed.
func (s *RecordStore) refreshAll(ctx context.Context) {
	s.mu.Lock()
	codes := make([]string, 0, len(s.subs))
	for code := range s.subs {
		codes = append(codes, code)
	}
	s.mu.Unlock()
	for _, code := range codes {
		s.dispatch(ctx, code)
	}
}

// Close stops the listener. It does not close the pool.
func (s *RecordStore) Close() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.listening, s.stop, s.done = false, nil, nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

var _ remote.Store = (*RecordStore)(nil)
