// Package handlers implements the telnet game session: command dispatch,
// board rendering and the wiring of one game engine per client.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/frontend/telnet"
	"github.com/cory-johannsen/tenthousand/internal/game/command"
	"github.com/cory-johannsen/tenthousand/internal/game/computer"
	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/remote"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

const maxNameLength = 24

// Output receives a session's rendered text.
type Output interface {
	WriteString(text string) error
	WritePrompt(prompt string) error
}

// Deps are the collaborators shared by every session of a server.
type Deps struct {
	Config config.Config
	Bundle *i18n.Bundle
	// Store holds online game records. nil disables host and join.
	Store remote.Store
	// Decider overrides the computer's keep-or-reroll heuristic when set.
	Decider  computer.Decider
	Registry *command.Registry
	// NewSource returns the dice randomness of a new session.
	NewSource func() dice.Source
}

// WithDefaults fills unset optional collaborators.
func (d Deps) WithDefaults() Deps {
	if d.Bundle == nil {
		d.Bundle = i18n.MustLoadEmbedded()
	}
	if d.Registry == nil {
		d.Registry = command.DefaultRegistry()
	}
	if d.NewSource == nil {
		d.NewSource = dice.NewCryptoSource
	}
	return d
}

// Tuning converts the configured computer tuning. RerollBands[i] applies to
// i+1 free dice.
func Tuning(g config.GameConfig) computer.Tuning {
	t := computer.DefaultTuning()
	if g.KeepThreshold > 0 {
		t.KeepThreshold = g.KeepThreshold
	}
	if g.CloseMargin > 0 {
		t.CloseMargin = g.CloseMargin
	}
	if len(g.RerollBands) > 0 {
		t.RerollBands = make(map[int]float64, len(g.RerollBands))
		for i, p := range g.RerollBands {
			t.RerollBands[i+1] = p
		}
	}
	return t
}

// Session is one client's game: a turn machine, its computer opponent, an
// online adapter and the text rendering of every change.
//
// Session runs on its scheduler and is not safe for concurrent use.
type Session struct {
	ctx     context.Context
	out     Output
	deps    Deps
	logger  *zap.Logger
	loc     *i18n.Localizer
	m       *turn.Machine
	cpu     *computer.Player
	adapter *remote.Adapter

	name      string
	prev      turn.GameState
	executing bool
	cancels   []func()
}

// NewSession builds a session and its engine.
//
// Precondition: deps has been through WithDefaults; must be called on sched.
func NewSession(ctx context.Context, out Output, sched schedule.Scheduler, deps Deps, logger *zap.Logger) *Session {
	cfg := deps.Config.Game
	s := &Session{ctx: ctx, out: out, deps: deps, logger: logger}
	s.loc = i18n.NewLocalizer(deps.Bundle, cfg.Locale, logger)

	src := deps.NewSource()
	s.m = turn.NewMachine(dice.NewLoggedRoller(src, logger), sched, s.loc, logger, turn.Config{
		BustDelay:    cfg.BustDelay,
		HandoffDelay: cfg.HandoffDelay,
	})
	s.cpu = computer.New(s.m, sched, logger, computer.Config{StepDelay: cfg.StepDelay, Tuning: Tuning(cfg)})
	if chance, ok := src.(computer.Chance); ok {
		s.cpu.SetChance(chance)
	}
	if deps.Decider != nil {
		s.cpu.SetDecider(deps.Decider)
	}
	if deps.Store != nil {
		s.adapter = remote.NewAdapter(s.m, deps.Store, sched, logger)
		s.adapter.OnClosed(s.onRoomClosed)
	}

	if turn.ValidQualificationScore(cfg.QualificationScore) {
		s.m.SetQualificationScore(cfg.QualificationScore)
	}
	s.prev = s.m.State()
	s.m.SetRollHook(s.onRoll)
	s.cancels = append(s.cancels,
		s.m.Subscribe(s.onChange),
		s.loc.Subscribe(func(string) { s.m.Relocalize() }),
	)
	return s
}

// Machine exposes the session's engine.
func (s *Session) Machine() *turn.Machine {
	return s.m
}

// Localizer exposes the session's locale.
func (s *Session) Localizer() *i18n.Localizer {
	return s.loc
}

// Adapter returns the online adapter, or nil when online play is disabled.
func (s *Session) Adapter() *remote.Adapter {
	return s.adapter
}

// Greet writes the welcome banner and the menu.
func (s *Session) Greet() {
	s.say(telnet.Colorize(telnet.Bold+telnet.BrightYellow, s.loc.T("session.welcome")))
	s.say(s.loc.T("session.menu"))
	s.prompt()
}

// Close leaves any online room and detaches from the engine.
func (s *Session) Close() {
	if s.adapter != nil && s.adapter.Active() {
		s.adapter.Leave()
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// Execute runs one line of input and reports whether the session goes on.
func (s *Session) Execute(line string) bool {
	s.executing = true
	defer func() { s.executing = false }()

	p := command.Parse(line)
	if p.Command == "" {
		s.prompt()
		return true
	}
	cmd, ok := s.deps.Registry.Resolve(p.Command)
	switch {
	case !ok:
		s.say(s.loc.T("session.unknownCommand", p.Command))
	case cmd.Dev && !s.deps.Config.Game.DevCommands:
		s.say(s.loc.T("session.devDisabled"))
	case len(p.Args) < cmd.MinArgs:
		s.say(s.loc.T("session.usage", strings.TrimSpace(s.loc.T(cmd.HelpKey))))
	default:
		s.logger.Debug("command", zap.String("handler", cmd.Handler), zap.Strings("args", p.Args))
		if cmd.Handler == command.HandlerQuit {
			s.say(s.loc.T("session.goodbye"))
			return false
		}
		s.dispatch(cmd, p)
	}
	s.prompt()
	return true
}

func (s *Session) dispatch(cmd *command.Command, p command.ParseResult) {
	switch cmd.Handler {
	case command.HandlerRoll:
		s.roll()
	case command.HandlerPick:
		s.pick(p.Args)
	case command.HandlerKeep:
		s.keep()
	case command.HandlerState:
		s.showState()
	case command.HandlerNew:
		s.newGame(p.Args)
	case command.HandlerMenu:
		s.menu()
	case command.HandlerQual:
		s.qualification(p.Args[0])
	case command.HandlerHost:
		s.host(p.Args)
	case command.HandlerJoin:
		s.join(p.Args[0], strings.TrimSpace(strings.TrimPrefix(p.RawArgs, p.Args[0])))
	case command.HandlerLeave:
		s.leave()
	case command.HandlerName:
		s.setName(p.RawArgs)
	case command.HandlerLang:
		s.language(p.Args)
	case command.HandlerRules:
		s.say(RenderRules(s.loc))
	case command.HandlerHelp:
		s.say(RenderHelp(s.loc, s.deps.Registry.HelpKeys(s.deps.Config.Game.DevCommands)))
	case command.HandlerScore, command.HandlerDie, command.HandlerQualify, command.HandlerGameOver:
		s.dev(cmd.Handler, p.Args)
	}
}

func (s *Session) say(text string) {
	if err := s.out.WriteString(strings.TrimRight(text, "\n") + "\n"); err != nil {
		s.logger.Debug("write failed", zap.Error(err))
	}
}

func (s *Session) prompt() {
	label := s.loc.T("newGame")
	if !s.m.MenuShowing() {
		label = s.m.Current().Name
	}
	if err := s.out.WritePrompt(telnet.Colorf(telnet.BrightCyan, "[%s] > ", label)); err != nil {
		s.logger.Debug("write failed", zap.Error(err))
	}
}

func (s *Session) inGame() bool {
	if s.m.MenuShowing() {
		s.say(s.loc.T("session.noGame"))
		s.say(s.loc.T("session.menu"))
		return false
	}
	return true
}

func (s *Session) roll() {
	if !s.inGame() {
		return
	}
	if !s.m.CanRoll() || s.m.State().WaitingForPlayer2 {
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T(s.m.RollHint())))
		return
	}
	s.m.Roll()
}

func (s *Session) pick(args []string) {
	if !s.inGame() {
		return
	}
	if !s.m.IsPlayerTurn() {
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("notYourTurn")))
		return
	}
	if s.m.Tag() != turn.AwaitingSelection {
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T(s.m.RollHint())))
		return
	}
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > dice.Count {
			s.say(s.loc.T("session.badDie"))
			continue
		}
		d := s.m.State().Dice[n-1]
		if d.Locked || (!d.Selected && !d.ValidSelection) {
			s.say(s.loc.T("session.cantSelect", n))
			continue
		}
		s.m.ToggleSelection(n - 1)
	}
}

func (s *Session) keep() {
	if !s.inGame() {
		return
	}
	gs := s.m.State()
	switch {
	case !s.m.IsPlayerTurn():
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("notYourTurnKeep")))
		return
	case gs.WaitingForPlayer2:
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("waitingForPlayer2")))
		return
	case gs.PotentialScore <= 0:
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("noPointsToKeep")))
		return
	case !s.m.CanKeepScore():
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("qualificationNeeded", gs.QualificationScore, gs.TurnTotal())))
		return
	}
	s.m.KeepScore()
}

func (s *Session) showState() {
	if s.m.MenuShowing() {
		s.say(s.loc.T("session.menu"))
		return
	}
	s.say(RenderBoard(s.loc, s.m.State()))
}

func (s *Session) parseQualification(arg string) (int, bool) {
	q, err := strconv.Atoi(strings.ReplaceAll(arg, ",", ""))
	if err != nil || !turn.ValidQualificationScore(q) {
		s.say(s.loc.T("session.invalidQualification"))
		return 0, false
	}
	return q, true
}

func (s *Session) newGame(args []string) {
	q := 0
	if len(args) > 1 {
		var ok bool
		if q, ok = s.parseQualification(args[1]); !ok {
			return
		}
	}
	var players []turn.PlayerSetup
	switch strings.ToLower(args[0]) {
	case "computer", "cpu", "c", "ordinateur":
		players = []turn.PlayerSetup{{Name: s.firstName("player")}, {Name: s.loc.T("computer"), Computer: true}}
	case "friend", "f", "ami", "local":
		players = []turn.PlayerSetup{{Name: s.firstName("player1")}, {Name: s.loc.T("player2")}}
	default:
		s.say(s.loc.T("session.usage", strings.TrimSpace(s.loc.T("help.new"))))
		return
	}
	s.leaveRoom()
	s.m.NewGame(players, q)
}

func (s *Session) firstName(defaultKey string) string {
	if s.name != "" {
		return s.name
	}
	return s.loc.T(defaultKey)
}

func (s *Session) menu() {
	if s.adapter != nil && s.adapter.Active() {
		s.say(s.loc.T("session.left", s.adapter.Code()))
	}
	s.m.Reset(0)
}

func (s *Session) qualification(arg string) {
	q, ok := s.parseQualification(arg)
	if !ok {
		return
	}
	if !s.m.CanChangeQualification() {
		s.say(telnet.Colorize(telnet.Yellow, s.loc.T("session.qualificationLocked")))
		return
	}
	s.m.SetQualificationScore(q)
}

func (s *Session) remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.deps.Config.Remote.Timeout)
}

func (s *Session) remoteFailed(err error) {
	s.logger.Warn("online play failed", zap.Error(err))
	s.say(telnet.Colorize(telnet.Red, s.loc.T("session.remoteFailed", err.Error())))
}

func (s *Session) host(args []string) {
	if s.adapter == nil {
		s.say(s.loc.T("session.remoteDisabled"))
		return
	}
	q := 0
	if len(args) > 0 {
		var ok bool
		if q, ok = s.parseQualification(args[0]); !ok {
			return
		}
	}
	ctx, cancel := s.remoteContext()
	defer cancel()

	code, err := remote.FreeRoomCode(ctx, s.deps.Store)
	if err != nil {
		s.remoteFailed(err)
		return
	}
	s.leaveRoom()
	s.m.NewGame([]turn.PlayerSetup{{Name: s.firstName("player1")}, {Name: s.loc.T("player2")}}, q)
	if err := s.adapter.Join(ctx, code, remote.RoleHost, true); err != nil {
		s.remoteFailed(err)
		return
	}
	s.say(telnet.Colorize(telnet.BrightGreen, s.loc.T("session.hosting", code)))
	s.say(s.loc.T("roomCode", code))
}

func (s *Session) join(code, name string) {
	if s.adapter == nil {
		s.say(s.loc.T("session.remoteDisabled"))
		return
	}
	code = strings.ToUpper(code)
	ctx, cancel := s.remoteContext()
	defer cancel()

	s.leaveRoom()
	if err := s.adapter.Join(ctx, code, remote.RoleJoin, false); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			s.say(s.loc.T("session.roomNotFound", code))
			return
		}
		s.remoteFailed(err)
		return
	}
	s.say(telnet.Colorize(telnet.BrightGreen, s.loc.T("session.joined", code)))

	if name = clampName(name); name != "" {
		s.name = name
	}
	if s.name != "" {
		if err := s.adapter.UpdateJoiningPlayerName(ctx, s.name); err != nil {
			s.remoteFailed(err)
		}
	}
}

// leaveRoom unbinds from the current room without touching the record.
func (s *Session) leaveRoom() {
	if s.adapter == nil || !s.adapter.Active() {
		return
	}
	s.say(s.loc.T("session.left", s.adapter.Code()))
	s.adapter.Leave()
}

func (s *Session) leave() {
	if s.adapter == nil || !s.adapter.Active() {
		s.say(s.loc.T("session.notInRoom"))
		return
	}
	// Reset while bound deletes the shared record.
	s.say(s.loc.T("session.left", s.adapter.Code()))
	s.m.Reset(0)
}

func (s *Session) onRoomClosed(code string) {
	s.logger.Info("room closed by opponent", zap.String("code", code))
	s.say(telnet.Colorize(telnet.Yellow, s.loc.T("session.roomClosed")))
	s.m.Reset(0)
}

func clampName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

func (s *Session) setName(raw string) {
	name := clampName(raw)
	if name == "" {
		s.say(s.loc.T("session.usage", strings.TrimSpace(s.loc.T("help.name"))))
		return
	}
	s.name = name
	s.say(s.loc.T("session.nameSet", name))
	if s.adapter != nil && s.adapter.Active() && s.adapter.Role() == remote.RoleJoin {
		ctx, cancel := s.remoteContext()
		defer cancel()
		if err := s.adapter.UpdateJoiningPlayerName(ctx, name); err != nil {
			s.remoteFailed(err)
		}
	}
}

func (s *Session) language(args []string) {
	var locale string
	if len(args) > 0 {
		locale = s.loc.SetLocale(args[0])
	} else {
		locale = s.loc.Toggle()
	}
	s.say(s.loc.T("session.languageSet", locale))
}

func (s *Session) dev(handler string, args []string) {
	ints := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			break
		}
		ints = append(ints, n)
	}
	switch handler {
	case command.HandlerScore:
		if len(ints) < 2 {
			s.say(s.loc.T("session.usage", s.loc.T("help.dev")))
			return
		}
		s.m.SetPlayerScore(ints[0]-1, ints[1])
	case command.HandlerDie:
		if len(ints) < 2 {
			s.say(s.loc.T("session.usage", s.loc.T("help.dev")))
			return
		}
		s.m.SetDieValue(ints[0]-1, ints[1])
	case command.HandlerQualify:
		if len(ints) < 1 {
			s.say(s.loc.T("session.usage", s.loc.T("help.dev")))
			return
		}
		s.m.QualifyPlayer(ints[0] - 1)
	case command.HandlerGameOver:
		s.m.SetGameOver(len(args) == 0 || !strings.EqualFold(args[0], "off"))
	}
}

// onRoll announces hot dice: a roll of all five dice after the first roll
// of the turn.
func (s *Session) onRoll(indices []int) {
	if len(indices) == dice.Count && !s.prev.IsFirstRoll {
		s.say(telnet.Colorize(telnet.Bold+telnet.Magenta, s.loc.T("session.hotDice")))
	}
}

func (s *Session) onChange(c turn.Change) {
	prev := s.prev
	s.prev = c.State
	gs := c.State

	switch c.Op {
	case turn.OpNewGame, turn.OpDebug:
		s.say(RenderBoard(s.loc, gs))
		s.announceTurn(gs)
	case turn.OpReset:
		s.say(s.loc.T("session.menu"))
	case turn.OpRoll:
		s.say(s.loc.T("session.rolls", gs.Current().Name))
		s.say(RenderBoard(s.loc, gs))
	case turn.OpBust:
		s.say(s.loc.T("session.rolls", gs.Current().Name))
		s.say(RenderDice(gs.Dice, false))
		s.say(telnet.Colorize(telnet.Bold+telnet.BrightRed, gs.BustMessage))
	case turn.OpSelect:
		if gs.Current().Computer {
			s.say(s.loc.T("session.selects", gs.Current().Name))
		}
		s.say(RenderDice(gs.Dice, gs.DiceHidden))
		s.say(fmt.Sprintf("%s %s   %s %s", s.loc.T("selected"), s.loc.Number(gs.PotentialScore),
			s.loc.T("totalAvailable"), s.loc.Number(gs.TurnTotal())))
	case turn.OpKeep:
		if p := prev.CurrentPlayer; p < len(prev.Players) && p < len(gs.Players) {
			banked := gs.Players[p].TotalScore - prev.Players[p].TotalScore
			s.say(telnet.Colorize(telnet.Green, s.loc.T("session.banks", gs.Players[p].Name, banked, gs.Players[p].TotalScore)))
		}
		if gs.IsGameOver {
			s.say(RenderGameOver(s.loc, gs))
			break
		}
		s.announceTurn(gs)
	case turn.OpOvershoot:
		s.say(telnet.Colorize(telnet.Bold+telnet.BrightRed, gs.BustMessage))
	case turn.OpEndTurn:
		s.say(telnet.Colorize(telnet.Dim, s.loc.T("transitioningToNextPlayer")))
		s.announceTurn(gs)
	case turn.OpReplace:
		if prev.WaitingForPlayer2 && !gs.WaitingForPlayer2 {
			s.say(telnet.Colorize(telnet.BrightGreen, s.loc.T("session.opponentJoined")))
		}
		s.say(RenderBoard(s.loc, gs))
		if gs.CurrentPlayer != prev.CurrentPlayer && !gs.IsGameOver {
			s.announceTurn(gs)
		}
	case turn.OpQualification:
		s.say(s.loc.T("session.qualificationSet", s.loc.Number(gs.QualificationScore)))
	case turn.OpWaiting:
		if gs.WaitingForPlayer2 {
			s.say(telnet.Colorize(telnet.Yellow, s.loc.T("waitingForPlayer2")))
		}
	case turn.OpLocale:
	}

	if !s.executing {
		s.prompt()
	}
}

func (s *Session) announceTurn(gs turn.GameState) {
	if gs.IsGameOver || len(gs.Players) == 0 {
		return
	}
	s.say(telnet.Colorize(telnet.BrightCyan, s.loc.T("session.turnOf", gs.Current().Name)))
	if s.m.IsPlayerTurn() && !gs.WaitingForPlayer2 {
		s.say(s.loc.T("rollToStart"))
	}
}
