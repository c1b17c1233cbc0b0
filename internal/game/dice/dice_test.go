package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
)

func TestNewSet_AllUnrolled(t *testing.T) {
	s := dice.NewSet()
	for i, d := range s {
		assert.Equal(t, 1, d.Value, "die %d", i)
		assert.False(t, d.Selected)
		assert.False(t, d.Locked)
		assert.False(t, d.ValidSelection)
	}
}

func TestRollUnlocked_LeavesLockedDiceAlone(t *testing.T) {
	s := dice.NewSet()
	s[1] = dice.Die{Value: 5, Locked: true, ValidSelection: true}
	s[3] = dice.Die{Value: 1, Locked: true, ValidSelection: true}

	rolled := s.RollUnlocked(dice.NewFixedSource(6, 6, 6))

	assert.Equal(t, []int{0, 2, 4}, rolled)
	assert.Equal(t, 5, s[1].Value)
	assert.Equal(t, 1, s[3].Value)
	assert.True(t, s[1].Locked)
	for _, i := range rolled {
		assert.Equal(t, 6, s[i].Value)
		assert.False(t, s[i].Selected)
		assert.False(t, s[i].ValidSelection)
	}
}

func TestLockSelected(t *testing.T) {
	s := dice.NewSet()
	s[0].Selected = true
	s[4].Selected = true

	s.LockSelected()

	for _, i := range []int{0, 4} {
		assert.True(t, s[i].Locked)
		assert.False(t, s[i].Selected)
		assert.True(t, s[i].ValidSelection)
	}
	assert.False(t, s[2].Locked)
}

func TestUnlockAllIfFullyLocked(t *testing.T) {
	s := dice.NewSet()
	for i := 0; i < 4; i++ {
		s[i].Locked = true
	}
	assert.False(t, s.UnlockAllIfFullyLocked(), "four locked dice are not hot dice")
	assert.True(t, s[0].Locked)

	s[4].Locked = true
	require.True(t, s.UnlockAllIfFullyLocked())
	for _, d := range s {
		assert.False(t, d.Locked)
		assert.False(t, d.Selected)
		assert.False(t, d.ValidSelection)
	}
}

func TestFreeAndSelectedValues(t *testing.T) {
	s := dice.Set{
		{Value: 1, Locked: true},
		{Value: 5, Selected: true, ValidSelection: true},
		{Value: 3},
		{Value: 5, Selected: true, ValidSelection: true},
		{Value: 2},
	}
	assert.Equal(t, []int{2, 4}, s.Free())
	assert.Equal(t, []int{5, 5}, s.SelectedValues())
	assert.Equal(t, []int{3, 2}, s.Values(s.Free()))
	assert.True(t, s.AnySelected())
	assert.True(t, s.AnyUnlocked())
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(6), b.Intn(6))
	}
}

func TestFixedSource_PushAfterExhaustion(t *testing.T) {
	src := dice.NewFixedSource(2)
	assert.Equal(t, 1, src.Intn(6))
	src.Push(4, 6)
	assert.Equal(t, 3, src.Intn(6))
	assert.Equal(t, 5, src.Intn(6))
}

func TestLoggedRoller_LogsEachRoll(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewFixedSource(3), zap.New(core))
	s := dice.NewSet()
	s[0].Locked = true

	rolled := r.Roll(&s)

	assert.Equal(t, []int{1, 2, 3, 4}, rolled)
	require.Equal(t, 1, logs.FilterMessage("dice roll").Len())
}

// TestProperty_RollUnlocked_ValuesInRange verifies that every rolled die lands
// in [1, 6] and that locked dice keep their face.
func TestProperty_RollUnlocked_ValuesInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		locked := rapid.SliceOfN(rapid.Bool(), dice.Count, dice.Count).Draw(rt, "locked")
		s := dice.NewSet()
		for i := range s {
			s[i].Locked = locked[i]
			s[i].Value = 4
		}
		s.RollUnlocked(dice.NewSeededSource(seed))
		for i, d := range s {
			if locked[i] {
				assert.Equal(rt, 4, d.Value)
				continue
			}
			assert.GreaterOrEqual(rt, d.Value, 1)
			assert.LessOrEqual(rt, d.Value, 6)
		}
	})
}
