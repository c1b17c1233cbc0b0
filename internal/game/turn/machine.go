package turn

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/scoring"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

// Localizer is the text lookup used for bust messages and default names.
type Localizer interface {
	i18n.Translator
	// Variants returns the template of key in every supported locale.
	Variants(key string) []string
}

// Authority decides whether the local participant may mutate shared state.
// A Machine without an Authority is a local game.
type Authority interface {
	CanModify() bool
}

// Autoplayer drives computer-controlled seats.
type Autoplayer interface {
	// TakeTurn starts the turn of the computer seated at index player.
	TakeTurn(player int)
}

// Op names the operation that produced a Change.
type Op string

const (
	OpNewGame       Op = "new-game"
	OpReset         Op = "reset"
	OpRoll          Op = "roll"
	OpBust          Op = "bust"
	OpSelect        Op = "select"
	OpKeep          Op = "keep"
	OpOvershoot     Op = "overshoot"
	OpEndTurn       Op = "end-turn"
	OpQualification Op = "qualification"
	OpWaiting       Op = "waiting"
	OpLocale        Op = "locale"
	OpReplace       Op = "replace"
	OpDebug         Op = "debug"
)

// Change is delivered to subscribers after every accepted operation.
type Change struct {
	Op    Op
	State GameState
	Tag   State
	// Remote is set when the change was applied from the remote record.
	Remote bool
	// Push is set when the change must be mirrored regardless of who may
	// currently act.
	Push bool
}

// Config holds the pacing delays of a Machine.
type Config struct {
	BustDelay    time.Duration
	HandoffDelay time.Duration
}

// DefaultConfig returns the standard pacing.
func DefaultConfig() Config {
	return Config{BustDelay: 2 * time.Second, HandoffDelay: 2 * time.Second}
}

type subscriber struct {
	id int
	fn func(Change)
}

// Machine owns one GameState and is the only thing that mutates it.
//
// Machine is not safe for concurrent use. Every call, including the
// callbacks it schedules, must run on the game's schedule.Scheduler.
//
// Invalid actions are ignored: each operation checks its guards before
// mutating anything and returns silently when they fail.
type Machine struct {
	gs   GameState
	tag  State
	menu bool
	// epoch increments whenever the seat to act changes or a new game starts.
	epoch uint64

	roller *dice.Roller
	sched  schedule.Scheduler
	loc    Localizer
	logger *zap.Logger
	cfg    Config

	authority Authority
	auto      Autoplayer
	rollHook  func(indices []int)
	subs      []subscriber
	nextSub   int
}

// NewMachine creates a Machine holding the default local game (a human
// player against the computer) with the pre-game menu showing.
//
// Precondition: roller, sched, loc and logger must be non-nil.
func NewMachine(roller *dice.Roller, sched schedule.Scheduler, loc Localizer, logger *zap.Logger, cfg Config) *Machine {
	m := &Machine{
		roller: roller,
		sched:  sched,
		loc:    loc,
		logger: logger,
		cfg:    cfg,
		menu:   true,
	}
	m.gs = NewGameState([]PlayerSetup{
		{Name: loc.T("player")},
		{Name: loc.T("computer"), Computer: true},
	}, DefaultQualificationScore)
	m.tag = AwaitingFirstRoll
	return m
}

// SetAutoplayer installs the driver for computer seats.
func (m *Machine) SetAutoplayer(a Autoplayer) {
	m.auto = a
}

// SetAuthority switches the Machine into multiplayer mode. A nil Authority
// returns it to local play.
func (m *Machine) SetAuthority(a Authority) {
	m.authority = a
}

// Multiplayer reports whether an Authority is installed.
func (m *Machine) Multiplayer() bool {
	return m.authority != nil
}

// SetRollHook registers fn to receive the indices of the dice about to be
// rolled, just before every roll.
func (m *Machine) SetRollHook(fn func(indices []int)) {
	m.rollHook = fn
}

// Subscribe registers fn for every Change. The returned function removes it.
func (m *Machine) Subscribe(fn func(Change)) (cancel func()) {
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	return func() {
		m.subs = slices.DeleteFunc(m.subs, func(s subscriber) bool { return s.id == id })
	}
}

// State returns a copy of the current game state.
func (m *Machine) State() GameState {
	return m.gs.Clone()
}

// Tag returns the explicit turn state.
func (m *Machine) Tag() State {
	return m.tag
}

// MenuShowing reports whether the pre-game menu is showing.
func (m *Machine) MenuShowing() bool {
	return m.menu
}

// TurnID identifies the current turn. It changes whenever the seat to act
// changes or a new game begins, so deferred work can tell whether it is stale.
func (m *Machine) TurnID() uint64 {
	return m.epoch
}

// Current returns a copy of the player whose turn it is.
func (m *Machine) Current() Player {
	return *m.gs.Current()
}

// IsPlayerTurn reports whether the local participant controls the current
// seat: in multiplayer the Authority decides; locally any human seat counts.
func (m *Machine) IsPlayerTurn() bool {
	if m.authority != nil {
		return m.authority.CanModify()
	}
	return !m.gs.Current().Computer
}

// mayAct is the authority check for banking. Locally the computer banks
// through the same entry point as a human.
func (m *Machine) mayAct() bool {
	if m.authority != nil {
		return m.authority.CanModify()
	}
	return true
}

// CanRoll reports whether the roll action is currently enabled.
func (m *Machine) CanRoll() bool {
	gs := &m.gs
	if gs.IsGameOver || !m.IsPlayerTurn() {
		return false
	}
	if gs.IsFirstRoll {
		return !gs.IsBust
	}
	return gs.Dice.AnyUnlocked() && !gs.IsBust && gs.Dice.AnySelected()
}

// CanKeepScore reports whether the keep action is currently enabled.
func (m *Machine) CanKeepScore() bool {
	gs := &m.gs
	if gs.IsGameOver || gs.PotentialScore <= 0 || gs.WaitingForPlayer2 || gs.IsBust {
		return false
	}
	return gs.Current().Qualified || gs.TurnTotal() >= gs.QualificationScore
}

// RollHint returns the message key explaining the roll action's state.
func (m *Machine) RollHint() string {
	gs := &m.gs
	switch {
	case gs.IsGameOver:
		return "gameOver"
	case gs.IsBust:
		return "cantRollBust"
	case !m.IsPlayerTurn():
		return "notYourTurn"
	case gs.WaitingForPlayer2:
		return "waitingForPlayer2"
	case gs.Dice.AllLocked():
		return "allDiceLocked"
	case !gs.IsFirstRoll && !gs.Dice.AnySelected():
		return "mustSelectDie"
	case gs.IsFirstRoll:
		return "rollToStartTurn"
	default:
		return "rollDiceTooltip"
	}
}

// Roll banks the current selection and rolls every unlocked die.
func (m *Machine) Roll() {
	switch m.tag {
	case AwaitingFirstRoll, AwaitingSelection:
	default:
		m.reject("roll")
		return
	}
	if m.authority != nil && !m.authority.CanModify() {
		m.reject("roll")
		return
	}
	if m.gs.WaitingForPlayer2 {
		m.reject("roll")
		return
	}

	gs := &m.gs
	gs.DiceHidden = false
	gs.CurrentTurnScore += gs.PotentialScore
	gs.PotentialScore = 0
	if !gs.IsFirstRoll {
		gs.LastRollScore = 0
	}
	gs.Dice.LockSelected()
	if gs.Dice.UnlockAllIfFullyLocked() {
		m.logger.Debug("hot dice", zap.Int("player", gs.CurrentPlayer), zap.Int("turnScore", gs.CurrentTurnScore))
	}
	if m.rollHook != nil {
		m.rollHook(gs.Dice.Free())
	}
	m.roller.Roll(&gs.Dice)
	gs.IsFirstRoll = false

	if m.scoreRoll() {
		m.notify(OpRoll, false, false)
		return
	}
	m.bust()
	m.notify(OpBust, false, false)
}

// scoreRoll scores the freshly rolled dice, marks the eligible ones and
// reports whether the roll scored at all.
func (m *Machine) scoreRoll() bool {
	gs := &m.gs
	free := gs.Dice.Free()
	res := scoring.Evaluate(gs.Dice.Values(free))
	for n, i := range free {
		gs.Dice[i].ValidSelection = res.Eligible[n]
	}
	gs.LastRollScore = res.Points
	if res.Bust() {
		return false
	}
	m.tag = AwaitingSelection
	return true
}

func (m *Machine) bust() {
	gs := &m.gs
	gs.IsBust = true
	gs.BustMessage = m.bustMessage()
	gs.Dice.ClearSelection()
	m.tag = Bust
	m.logger.Info("bust",
		zap.Int("player", gs.CurrentPlayer),
		zap.Int("lost", gs.CurrentTurnScore),
	)

	epoch := m.epoch
	m.sched.After(m.cfg.BustDelay, func() {
		if m.epoch != epoch || m.tag != Bust {
			return
		}
		m.gs.CurrentTurnScore = 0
		m.endTurn()
		m.notify(OpEndTurn, false, true)
	})
}

func (m *Machine) bustMessage() string {
	gs := &m.gs
	if gs.CurrentTurnScore > 0 {
		return m.loc.T("bustLostPoints", gs.Current().Name, gs.CurrentTurnScore)
	}
	return m.loc.T("bustGeneric")
}

// ToggleSelection selects or unselects die i for the local player.
func (m *Machine) ToggleSelection(i int) {
	if m.tag != AwaitingSelection || i < 0 || i >= dice.Count {
		m.reject("toggle")
		return
	}
	d := m.gs.Dice[i]
	if !m.IsPlayerTurn() || m.gs.DiceHidden || m.gs.IsBust || d.Locked || (!d.Selected && !d.ValidSelection) {
		m.reject("toggle")
		return
	}
	m.gs.Dice.Toggle(i)
	m.recomputePotential()
	m.notify(OpSelect, false, false)
}

// SelectDice selects the given dice on behalf of a computer seat. Indices
// that are locked, already selected or not eligible are skipped.
func (m *Machine) SelectDice(indices []int) {
	if m.tag != AwaitingSelection || !m.gs.Current().Computer || m.gs.DiceHidden {
		m.reject("select")
		return
	}
	for _, i := range indices {
		if i < 0 || i >= dice.Count {
			continue
		}
		d := &m.gs.Dice[i]
		if d.Locked || d.Selected || !d.ValidSelection {
			continue
		}
		d.Selected = true
	}
	m.recomputePotential()
	m.notify(OpSelect, false, false)
}

func (m *Machine) recomputePotential() {
	values := m.gs.Dice.SelectedValues()
	slices.Sort(values)
	m.gs.PotentialScore = scoring.Points(values)
}

// KeepScore banks the turn total for the current player and ends the turn.
// Landing exactly on WinningScore ends the game; going past it is an
// overshoot bust that banks nothing.
func (m *Machine) KeepScore() {
	if !m.mayAct() || m.gs.WaitingForPlayer2 {
		m.reject("keep")
		return
	}
	switch m.tag {
	case AwaitingSelection:
	default:
		m.reject("keep")
		return
	}

	gs := &m.gs
	player := gs.Current()
	total := gs.TurnTotal()
	if total <= 0 || (!player.Qualified && total < gs.QualificationScore) {
		m.reject("keep")
		return
	}

	newTotal := player.TotalScore + total
	if newTotal > WinningScore {
		gs.IsBust = true
		gs.BustMessage = m.loc.T("bustExceededMax")
		m.tag = Bust
		m.logger.Info("overshoot", zap.Int("player", gs.CurrentPlayer), zap.Int("wouldBe", newTotal))
		m.notify(OpOvershoot, false, false)
		m.endTurn()
		m.notify(OpEndTurn, false, true)
		return
	}

	player.TotalScore = newTotal
	if !player.Qualified && newTotal >= gs.QualificationScore {
		player.Qualified = true
		gs.GamePhase = PhaseNormal
	}
	if newTotal == WinningScore {
		gs.IsGameOver = true
		gs.GamePhase = PhaseEndGame
		m.logger.Info("game over", zap.Int("winner", gs.CurrentPlayer), zap.String("name", player.Name))
	}
	m.logger.Debug("keep score", zap.Int("player", gs.CurrentPlayer), zap.Int("banked", total), zap.Int("total", newTotal))
	m.endTurn()
	m.notify(OpKeep, false, true)
}

// endTurn hands the dice to the next seat.
func (m *Machine) endTurn() {
	switch m.tag {
	case AwaitingSelection, Bust:
	default:
		return
	}
	m.tag = TurnEnd

	gs := &m.gs
	gs.CurrentTurnScore = 0
	gs.LastRollScore = 0
	gs.PotentialScore = 0
	gs.IsFirstRoll = true
	gs.IsBust = false
	gs.BustMessage = ""
	gs.Dice.Reset()
	gs.CurrentPlayer = (gs.CurrentPlayer + 1) % len(gs.Players)
	gs.DiceHidden = true
	m.epoch++

	if gs.IsGameOver {
		m.tag = GameOver
		return
	}
	m.tag = AwaitingFirstRoll
	m.scheduleAutoplayer()
}

func (m *Machine) scheduleAutoplayer() {
	if m.auto == nil || !m.gs.Current().Computer || m.gs.IsGameOver {
		return
	}
	epoch, player := m.epoch, m.gs.CurrentPlayer
	m.sched.After(m.cfg.HandoffDelay, func() {
		if m.epoch != epoch {
			return
		}
		m.auto.TakeTurn(player)
	})
}

// NewGame replaces the game with a fresh one for players and hides the menu.
// A qualificationScore outside QualificationOptions keeps the current one.
//
// Precondition: len(players) >= 1.
func (m *Machine) NewGame(players []PlayerSetup, qualificationScore int) {
	if len(players) == 0 {
		m.reject("new game")
		return
	}
	if !ValidQualificationScore(qualificationScore) {
		qualificationScore = m.gs.QualificationScore
	}
	m.gs = NewGameState(players, qualificationScore)
	m.tag = AwaitingFirstRoll
	m.menu = false
	m.epoch++
	m.logger.Info("new game", zap.Int("players", len(players)), zap.Int("qualification", qualificationScore))
	m.notify(OpNewGame, false, false)
	m.scheduleAutoplayer()
}

// Reset returns to the pre-game menu with a fresh two-seat game. Custom
// names and the vs-computer or vs-friend mode survive; default names are
// re-localized. A qualificationScore outside QualificationOptions keeps the
// current one.
func (m *Machine) Reset(qualificationScore int) {
	if !ValidQualificationScore(qualificationScore) {
		qualificationScore = m.gs.QualificationScore
	}
	vsComputer := m.vsComputer()
	first, second := m.defaultNames(vsComputer)
	if len(m.gs.Players) > 0 && !m.isDefaultFirst(m.gs.Players[0].Name) {
		first = m.gs.Players[0].Name
	}
	if len(m.gs.Players) > 1 && !m.isDefaultSecond(m.gs.Players[1].Name) {
		second = m.gs.Players[1].Name
	}
	m.gs = NewGameState([]PlayerSetup{
		{Name: first},
		{Name: second, Computer: vsComputer},
	}, qualificationScore)
	m.tag = AwaitingFirstRoll
	m.menu = true
	m.epoch++
	m.notify(OpReset, false, false)
}

// CanChangeQualification reports whether the qualification threshold may
// change: from the pre-game menu, or before anyone has scored while the first
// seat is still waiting on its opening roll. In multiplayer only the
// participant holding authority may change it outside the menu.
func (m *Machine) CanChangeQualification() bool {
	if m.menu {
		return true
	}
	if m.authority != nil && !m.authority.CanModify() {
		return false
	}
	gs := &m.gs
	if m.tag != AwaitingFirstRoll || gs.CurrentPlayer != 0 {
		return false
	}
	for _, p := range gs.Players {
		if p.TotalScore != 0 {
			return false
		}
	}
	return true
}

// SetQualificationScore changes the qualification threshold.
//
// Precondition: CanChangeQualification; s is one of QualificationOptions.
// Postcondition: otherwise the call is a logged no-op.
func (m *Machine) SetQualificationScore(s int) {
	if !ValidQualificationScore(s) || !m.CanChangeQualification() {
		m.reject("qualification score")
		return
	}
	m.gs.QualificationScore = s
	m.notify(OpQualification, false, false)
}

// SetWaitingForPlayer2 marks whether a hosted game is still waiting for its
// second participant.
func (m *Machine) SetWaitingForPlayer2(waiting bool) {
	m.gs.WaitingForPlayer2 = waiting
	m.notify(OpWaiting, false, false)
}

// Relocalize renames players still carrying a default name and rebuilds an
// active bust message in the current locale.
func (m *Machine) Relocalize() {
	gs := &m.gs
	vsComputer := m.vsComputer()
	first, second := m.defaultNames(vsComputer)
	if len(gs.Players) > 0 && m.isDefaultFirst(gs.Players[0].Name) {
		gs.Players[0].Name = first
	}
	if len(gs.Players) > 1 && m.isDefaultSecond(gs.Players[1].Name) {
		gs.Players[1].Name = second
	}
	if gs.BustMessage != "" {
		gs.BustMessage = m.bustMessage()
	}
	m.notify(OpLocale, false, false)
}

func (m *Machine) vsComputer() bool {
	if len(m.gs.Players) > 1 {
		return m.gs.Players[1].Computer
	}
	return true
}

func (m *Machine) defaultNames(vsComputer bool) (string, string) {
	if vsComputer {
		return m.loc.T("player"), m.loc.T("computer")
	}
	return m.loc.T("player1"), m.loc.T("player2")
}

func (m *Machine) isDefaultFirst(name string) bool {
	return slices.Contains(m.loc.Variants("player"), name) || slices.Contains(m.loc.Variants("player1"), name)
}

func (m *Machine) isDefaultSecond(name string) bool {
	return slices.Contains(m.loc.Variants("computer"), name) || slices.Contains(m.loc.Variants("player2"), name)
}

// Replace overwrites the local state with a record received from the remote
// store. Identical records are ignored.
func (m *Machine) Replace(gs GameState) {
	if len(gs.Players) == 0 || gs.CurrentPlayer < 0 || gs.CurrentPlayer >= len(gs.Players) {
		m.logger.Warn("ignoring malformed game state", zap.Int("players", len(gs.Players)), zap.Int("current", gs.CurrentPlayer))
		return
	}
	if gs.Equal(m.gs) {
		return
	}
	if gs.CurrentPlayer != m.gs.CurrentPlayer || gs.IsGameOver != m.gs.IsGameOver {
		m.epoch++
	}
	m.gs = gs.Clone()
	m.tag = deriveState(&m.gs)
	m.menu = false
	m.notify(OpReplace, true, false)
}

func (m *Machine) reject(op string) {
	m.logger.Debug("action rejected",
		zap.String("op", op),
		zap.Stringer("state", m.tag),
		zap.Int("player", m.gs.CurrentPlayer),
	)
}

func (m *Machine) notify(op Op, remote, push bool) {
	if len(m.subs) == 0 {
		return
	}
	c := Change{Op: op, State: m.gs.Clone(), Tag: m.tag, Remote: remote, Push: push}
	for _, s := range slices.Clone(m.subs) {
		s.fn(c)
	}
}
