// Package scripting runs sandboxed GopherLua scripts that can take over the
// computer player's keep-or-reroll decision.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the Lua opcode budget of one call when none is
// configured.
const DefaultInstructionLimit = 100_000

// budget is a context that cancels itself once Done has been called limit
// times. GopherLua calls Done once per opcode while a context is set.
type budget struct {
	context.Context
	cancel    context.CancelFunc
	remaining atomic.Int64
}

func (b *budget) Done() <-chan struct{} {
	if b.remaining.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// withBudget installs a fresh opcode budget on L and returns the function
// that removes it.
//
// Precondition: limit > 0.
func withBudget(L *lua.LState, limit int) func() {
	base, cancel := context.WithCancel(context.Background())
	b := &budget{Context: base, cancel: cancel}
	b.remaining.Store(int64(limit))
	L.SetContext(b)
	return func() {
		L.RemoveContext()
		cancel()
	}
}

// NewSandboxedState creates a GopherLua LState with only the base, table,
// string and math libraries, and without dofile, loadfile, load,
// collectgarbage or require.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// RunBudgeted executes src in L under an opcode budget.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
func RunBudgeted(L *lua.LState, src string, limit int) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	release := withBudget(L, limit)
	defer release()
	return L.DoString(src)
}
