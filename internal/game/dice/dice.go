// Package dice provides the five-die set used by the 10,000 game together with
// the randomness abstraction that drives every roll.
package dice

// Count is the number of dice in a Set.
const Count = 5

// Faces is the number of sides on each die.
const Faces = 6

// Die is one physical die in the set.
//
// Invariant: Value is in [1, 6] once the die has been rolled.
// Invariant: a die becomes Selected only while ValidSelection is true.
type Die struct {
	Value          int  `json:"value"`
	Selected       bool `json:"isSelected"`
	Locked         bool `json:"isLocked"`
	ValidSelection bool `json:"isValidSelection"`
}

// Free reports whether the die was produced by the latest roll and has not
// been set aside yet.
func (d Die) Free() bool {
	return !d.Locked && !d.Selected
}

// Set is the array of five dice owned by a game.
type Set [Count]Die

// NewSet returns a set of unrolled dice showing 1, unlocked and unselected.
//
// Postcondition: every die has Value 1 and all flags false.
func NewSet() Set {
	var s Set
	for i := range s {
		s[i] = Die{Value: 1}
	}
	return s
}

// RollUnlocked assigns a fresh value to every unlocked die and clears its
// selection state. Locked dice are untouched.
//
// Precondition: src must be non-nil.
// Postcondition: every unlocked die has Value in [1, 6], Selected == false and
// ValidSelection == false. Returns the indices that were rolled.
func (s *Set) RollUnlocked(src Source) []int {
	rolled := make([]int, 0, Count)
	for i := range s {
		if s[i].Locked {
			continue
		}
		s[i].Value = src.Intn(Faces) + 1
		s[i].Selected = false
		s[i].ValidSelection = false
		rolled = append(rolled, i)
	}
	return rolled
}

// LockSelected banks every selected die for the rest of the turn.
//
// Postcondition: previously selected dice are Locked, not Selected, and
// ValidSelection.
func (s *Set) LockSelected() {
	for i := range s {
		if s[i].Selected {
			s[i].Locked = true
			s[i].Selected = false
			s[i].ValidSelection = true
		}
	}
}

// UnlockAllIfFullyLocked applies the hot dice rule: once all five dice are
// banked, the whole set is released for further rolling within the turn.
//
// Postcondition: returns true and every die is unlocked, unselected and
// invalid iff all dice were locked on entry.
func (s *Set) UnlockAllIfFullyLocked() bool {
	if !s.AllLocked() {
		return false
	}
	for i := range s {
		s[i].Locked = false
		s[i].Selected = false
		s[i].ValidSelection = false
	}
	return true
}

// Toggle flips the Selected flag of the die at index i. Callers enforce the
// game guards before calling.
//
// Precondition: 0 <= i < Count.
func (s *Set) Toggle(i int) {
	s[i].Selected = !s[i].Selected
}

// ClearSelection unselects every die without touching locks or validity.
func (s *Set) ClearSelection() {
	for i := range s {
		s[i].Selected = false
	}
}

// Reset unlocks, unselects and invalidates every die. Face values are kept.
func (s *Set) Reset() {
	for i := range s {
		s[i].Locked = false
		s[i].Selected = false
		s[i].ValidSelection = false
	}
}

// AllLocked reports whether all five dice are banked.
func (s *Set) AllLocked() bool {
	for _, d := range s {
		if !d.Locked {
			return false
		}
	}
	return true
}

// AnyUnlocked reports whether at least one die can still be rolled.
func (s *Set) AnyUnlocked() bool {
	return !s.AllLocked()
}

// AnySelected reports whether at least one die is selected.
func (s *Set) AnySelected() bool {
	for _, d := range s {
		if d.Selected {
			return true
		}
	}
	return false
}

// Free returns the indices of dice that are neither locked nor selected, in
// array order.
func (s *Set) Free() []int {
	out := make([]int, 0, Count)
	for i, d := range s {
		if d.Free() {
			out = append(out, i)
		}
	}
	return out
}

// Values returns the face values at the given indices, in the given order.
//
// Precondition: every index is in [0, Count).
func (s *Set) Values(indices []int) []int {
	out := make([]int, len(indices))
	for n, i := range indices {
		out[n] = s[i].Value
	}
	return out
}

// SelectedValues returns the face values of every selected die in array order.
func (s *Set) SelectedValues() []int {
	out := make([]int, 0, Count)
	for _, d := range s {
		if d.Selected {
			out = append(out, d.Value)
		}
	}
	return out
}
