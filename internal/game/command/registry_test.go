package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResolve(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		input   string
		handler string
	}{
		{"roll", HandlerRoll},
		{"R", HandlerRoll},
		{"pick", HandlerPick},
		{"s", HandlerPick},
		{"keep", HandlerKeep},
		{"bank", HandlerKeep},
		{"look", HandlerState},
		{"new", HandlerNew},
		{"reset", HandlerMenu},
		{"host", HandlerHost},
		{"join", HandlerJoin},
		{"langue", HandlerLang},
		{"?", HandlerHelp},
		{"exit", HandlerQuit},
		{"gameover", HandlerGameOver},
	}
	for _, tt := range tests {
		cmd, ok := r.Resolve(tt.input)
		require.True(t, ok, "input %q not found", tt.input)
		assert.Equal(t, tt.handler, cmd.Handler, "input %q wrong handler", tt.input)
	}

	_, ok := r.Resolve("attack")
	assert.False(t, ok)
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry([]Command{{Name: "a", Handler: "x"}, {Name: "a", Handler: "y"}})
	assert.ErrorContains(t, err, `"a" claimed by both "a" and "a"`)

	_, err = NewRegistry([]Command{{Name: "a", Aliases: []string{"t"}, Handler: "x"}, {Name: "b", Aliases: []string{"t"}, Handler: "y"}})
	assert.ErrorContains(t, err, `"t" claimed by both "a" and "b"`)

	_, err = NewRegistry([]Command{{Name: "a", Handler: "x"}, {Name: "b", Aliases: []string{"a"}, Handler: "y"}})
	assert.ErrorContains(t, err, `"a" claimed by both "a" and "b"`)

	_, err = NewRegistry([]Command{{Name: "a"}})
	assert.ErrorContains(t, err, "required")
}

func TestCommands_HidesDevCommands(t *testing.T) {
	r := DefaultRegistry()
	for _, cmd := range r.Commands(false) {
		assert.False(t, cmd.Dev, cmd.Name)
	}
	assert.Greater(t, len(r.Commands(true)), len(r.Commands(false)))
	assert.Equal(t, "roll", r.Commands(false)[0].Name)
}

func TestHelpKeys(t *testing.T) {
	r := DefaultRegistry()
	keys := r.HelpKeys(false)
	assert.Equal(t, "help.roll", keys[0])
	assert.NotContains(t, keys, "help.title")
	assert.NotContains(t, keys, "help.dev")

	dev := r.HelpKeys(true)
	assert.Equal(t, "help.dev", dev[len(dev)-1])
	assert.Len(t, dev, len(keys)+1, "dev commands share one help line")
}

func TestPropertyAllAliasesResolveToCanonical(t *testing.T) {
	r := DefaultRegistry()
	cmds := r.Commands(true)
	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.SampledFrom(cmds).Draw(t, "cmd")
		resolved, ok := r.Resolve(cmd.Name)
		if !ok || resolved.Name != cmd.Name {
			t.Fatalf("canonical name %q did not resolve to itself", cmd.Name)
		}
		for _, alias := range cmd.Aliases {
			got, ok := r.Resolve(alias)
			if !ok || got.Name != cmd.Name {
				t.Fatalf("alias %q did not resolve to %q", alias, cmd.Name)
			}
		}
	})
}
