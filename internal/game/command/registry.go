package command

import (
	"fmt"
	"slices"
	"strings"
)

// Registry indexes commands by name and alias.
type Registry struct {
	byWord map[string]*Command
	order  []*Command
}

// NewRegistry indexes cmds. Names and aliases share one namespace.
//
// Precondition: every command has a Name and a Handler.
// Postcondition: Returns an error naming the first word claimed twice.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{byWord: make(map[string]*Command)}
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Name == "" || cmd.Handler == "" {
			return nil, fmt.Errorf("command %d: name and handler are required", i)
		}
		for _, word := range append([]string{cmd.Name}, cmd.Aliases...) {
			word = strings.ToLower(word)
			if prev, taken := r.byWord[word]; taken {
				return nil, fmt.Errorf("%q claimed by both %q and %q", word, prev.Name, cmd.Name)
			}
			r.byWord[word] = cmd
		}
		r.order = append(r.order, cmd)
	}
	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias, case-insensitively.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Command, bool) {
	cmd, ok := r.byWord[strings.ToLower(input)]
	return cmd, ok
}

// Commands returns the registered commands in registration order. Dev
// commands are included only when dev is set.
func (r *Registry) Commands(dev bool) []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, cmd := range r.order {
		if dev || !cmd.Dev {
			out = append(out, cmd)
		}
	}
	return out
}

// HelpKeys returns the distinct help message keys of the visible commands,
// in registration order.
func (r *Registry) HelpKeys(dev bool) []string {
	var keys []string
	for _, cmd := range r.Commands(dev) {
		if cmd.Handler == HandlerHelp || slices.Contains(keys, cmd.HelpKey) {
			continue
		}
		keys = append(keys, cmd.HelpKey)
	}
	return keys
}
