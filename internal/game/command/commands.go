// Package command defines the text commands of a game session and resolves
// typed input to them.
package command

// Categories group commands in help output.
const (
	CategoryPlay   = "play"
	CategoryGame   = "game"
	CategoryOnline = "online"
	CategorySystem = "system"
	CategoryDev    = "dev"
)

// Handler identifiers.
const (
	HandlerRoll     = "roll"
	HandlerPick     = "pick"
	HandlerKeep     = "keep"
	HandlerState    = "state"
	HandlerNew      = "new"
	HandlerMenu     = "menu"
	HandlerQual     = "qual"
	HandlerHost     = "host"
	HandlerJoin     = "join"
	HandlerLeave    = "leave"
	HandlerName     = "name"
	HandlerLang     = "lang"
	HandlerRules    = "rules"
	HandlerHelp     = "help"
	HandlerQuit     = "quit"
	HandlerScore    = "score"
	HandlerDie      = "die"
	HandlerQualify  = "qualify"
	HandlerGameOver = "gameover"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// HelpKey is the message key of the command's help line.
	HelpKey string
	// Category groups the command in help output.
	Category string
	// Handler identifies the session operation the command runs.
	Handler string
	// MinArgs is the number of arguments the command requires.
	MinArgs int
	// Dev marks commands only available when developer commands are enabled.
	Dev bool
}

// BuiltinCommands returns every session command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "roll", Aliases: []string{"r"}, HelpKey: "help.roll", Category: CategoryPlay, Handler: HandlerRoll},
		{Name: "pick", Aliases: []string{"p", "select", "s"}, HelpKey: "help.pick", Category: CategoryPlay, Handler: HandlerPick, MinArgs: 1},
		{Name: "keep", Aliases: []string{"k", "bank"}, HelpKey: "help.keep", Category: CategoryPlay, Handler: HandlerKeep},
		{Name: "state", Aliases: []string{"look", "l", "board"}, HelpKey: "help.state", Category: CategoryPlay, Handler: HandlerState},

		{Name: "new", Aliases: []string{"newgame"}, HelpKey: "help.new", Category: CategoryGame, Handler: HandlerNew, MinArgs: 1},
		{Name: "menu", Aliases: []string{"reset"}, HelpKey: "help.menu", Category: CategoryGame, Handler: HandlerMenu},
		{Name: "qual", Aliases: []string{"qualification"}, HelpKey: "help.qual", Category: CategoryGame, Handler: HandlerQual, MinArgs: 1},

		{Name: "host", HelpKey: "help.host", Category: CategoryOnline, Handler: HandlerHost},
		{Name: "join", HelpKey: "help.join", Category: CategoryOnline, Handler: HandlerJoin, MinArgs: 1},
		{Name: "leave", HelpKey: "help.leave", Category: CategoryOnline, Handler: HandlerLeave},

		{Name: "name", HelpKey: "help.name", Category: CategorySystem, Handler: HandlerName, MinArgs: 1},
		{Name: "lang", Aliases: []string{"language", "langue"}, HelpKey: "help.lang", Category: CategorySystem, Handler: HandlerLang},
		{Name: "rules", HelpKey: "help.rules", Category: CategorySystem, Handler: HandlerRules},
		{Name: "help", Aliases: []string{"?", "aide"}, HelpKey: "help.title", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, HelpKey: "help.quit", Category: CategorySystem, Handler: HandlerQuit},

		{Name: "score", HelpKey: "help.dev", Category: CategoryDev, Handler: HandlerScore, MinArgs: 2, Dev: true},
		{Name: "die", HelpKey: "help.dev", Category: CategoryDev, Handler: HandlerDie, MinArgs: 2, Dev: true},
		{Name: "qualify", HelpKey: "help.dev", Category: CategoryDev, Handler: HandlerQualify, MinArgs: 1, Dev: true},
		{Name: "gameover", HelpKey: "help.dev", Category: CategoryDev, Handler: HandlerGameOver, Dev: true},
	}
}
