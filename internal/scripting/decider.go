package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/computer"
)

// decideHook is the global function a decider script must define.
const decideHook = "decide"

// LuaDecider is a computer.Decider backed by a Lua script. The script
// defines decide(view) returning "keep", "reroll" or nil; nil and any
// runtime error defer to the built-in heuristic.
//
// LuaDecider is safe for concurrent use; calls are serialized.
type LuaDecider struct {
	mu     sync.Mutex
	L      *lua.LState
	name   string
	limit  int
	logger *zap.Logger
}

// LoadDecider reads and compiles the script at path.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a ready LuaDecider or a non-nil error. The caller
// must Close the decider.
func LoadDecider(path string, instLimit int, logger *zap.Logger) (*LuaDecider, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading decider %q: %w", path, err)
	}
	return NewDecider(filepath.Base(path), string(src), instLimit, logger)
}

// NewDecider compiles src. name identifies the script in logs.
func NewDecider(name, src string, instLimit int, logger *zap.Logger) (*LuaDecider, error) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := NewSandboxedState()
	registerModule(L, logger, name)
	if err := RunBudgeted(L, src, instLimit); err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", name, err)
	}
	if fn := L.GetGlobal(decideHook); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("scripting: %q does not define %s(view)", name, decideHook)
	}
	return &LuaDecider{L: L, name: name, limit: instLimit, logger: logger}, nil
}

// Decide implements computer.Decider.
func (d *LuaDecider) Decide(v computer.View) (computer.Decision, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	release := withBudget(d.L, d.limit)
	err := d.L.CallByParam(lua.P{
		Fn:      d.L.GetGlobal(decideHook),
		NRet:    1,
		Protect: true,
	}, viewTable(d.L, v))
	release()
	if err != nil {
		d.logger.Warn("scripting: decide failed", zap.String("script", d.name), zap.Error(err))
		return computer.Keep, false
	}

	ret := d.L.Get(-1)
	d.L.Pop(1)
	switch {
	case ret == lua.LNil:
		return computer.Keep, false
	case ret.String() == "keep":
		return computer.Keep, true
	case ret.String() == "reroll":
		return computer.Reroll, true
	default:
		d.logger.Warn("scripting: unexpected decision",
			zap.String("script", d.name),
			zap.String("value", ret.String()),
		)
		return computer.Keep, false
	}
}

// Close releases the Lua state.
func (d *LuaDecider) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.L.Close()
}

var _ computer.Decider = (*LuaDecider)(nil)
