// Package remote mirrors a game between two participants through a shared
// record store keyed by room code.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cory-johannsen/tenthousand/internal/game/turn"
)

// ErrNotFound is returned when no record exists for a room code.
var ErrNotFound = errors.New("remote: record not found")

// Store is a key-value store of JSON game records.
//
// Subscribe delivers the current record immediately and then every change,
// with ok == false when the record does not exist. Callbacks may run on any
// goroutine. The ctx passed to Subscribe bounds only establishing the
// subscription; it lasts until cancel is called.
type Store interface {
	Get(ctx context.Context, code string) ([]byte, error)
	Set(ctx context.Context, code string, doc []byte) error
	// Update applies slash-separated path assignments such as
	// "players/1/name" to an existing record.
	Update(ctx context.Context, code string, paths map[string]any) error
	Delete(ctx context.Context, code string) error
	Subscribe(ctx context.Context, code string, fn func(doc []byte, ok bool)) (cancel func(), err error)
	List(ctx context.Context) ([]string, error)
}

// Record is the stored form of a game: the full state plus timestamps.
type Record struct {
	turn.GameState
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsGameState reports whether doc carries the parts of a game record the
// engine cannot do without: a players array and a dice array.
func IsGameState(doc []byte) bool {
	if !gjson.ValidBytes(doc) {
		return false
	}
	res := gjson.GetManyBytes(doc, "players", "dice")
	return res[0].IsArray() && res[1].IsArray()
}

// ApplyPaths returns doc with every slash path in paths set to its value.
// Intermediate objects are created as needed.
//
// Precondition: doc is a JSON object.
func ApplyPaths(doc []byte, paths map[string]any) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("apply paths: invalid document")
	}
	out := doc
	for p, v := range paths {
		key, err := jsonPath(p)
		if err != nil {
			return nil, err
		}
		out, err = sjson.SetBytes(out, key, v)
		if err != nil {
			return nil, fmt.Errorf("apply path %q: %w", p, err)
		}
	}
	return out, nil
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`)

// jsonPath converts "players/1/name" into the dotted form sjson expects,
// escaping characters that are special to it.
func jsonPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", fmt.Errorf("apply paths: empty path")
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == "" {
			return "", fmt.Errorf("apply paths: empty segment in %q", p)
		}
		parts[i] = pathEscaper.Replace(part)
	}
	return strings.Join(parts, "."), nil
}

// NewRoomCode returns a short random room code.
func NewRoomCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
}

// FreeRoomCode draws room codes until one is unused in store.
func FreeRoomCode(ctx context.Context, store Store) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := NewRoomCode()
		_, err := store.Get(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking room code: %w", err)
		}
	}
	return "", fmt.Errorf("no free room code after 10 attempts")
}

// Pruner deletes records not updated since cutoff in one operation.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneStale deletes every record of store whose updatedAt is before
// cutoff, using the store's own Pruner when it has one. Records without a
// readable updatedAt are kept.
func PruneStale(ctx context.Context, store Store, cutoff time.Time) (int64, error) {
	if p, ok := store.(Pruner); ok {
		return p.PruneBefore(ctx, cutoff)
	}
	codes, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing records: %w", err)
	}
	var n int64
	for _, code := range codes {
		doc, err := store.Get(ctx, code)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("reading record %q: %w", code, err)
		}
		updated := gjson.GetBytes(doc, "updatedAt").Time()
		if updated.IsZero() || !updated.Before(cutoff) {
			continue
		}
		if err := store.Delete(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
			return n, fmt.Errorf("deleting record %q: %w", code, err)
		}
		n++
	}
	return n, nil
}
