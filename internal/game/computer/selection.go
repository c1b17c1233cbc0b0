package computer

import (
	"slices"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/scoring"
)

// byFace groups the free dice of s by face value, preserving array order.
func byFace(s *dice.Set) (free []int, faces map[int][]int) {
	free = s.Free()
	faces = make(map[int][]int, dice.Faces)
	for _, i := range free {
		faces[s[i].Value] = append(faces[s[i].Value], i)
	}
	return free, faces
}

// StandardSelection returns the dice the computer keeps in normal play: a
// straight when all five are free, otherwise sets of five, four and three
// (in that priority, faces ascending) followed by every leftover 1 and 5.
func StandardSelection(s dice.Set) []int {
	free, faces := byFace(&s)
	if len(free) == 0 {
		return nil
	}
	if len(free) == dice.Count && scoring.IsStraight(s.Values(free)) {
		return free
	}

	for face := 1; face <= dice.Faces; face++ {
		if len(faces[face]) >= 5 {
			return append([]int(nil), faces[face][:5]...)
		}
	}

	var picked []int
	for _, size := range []int{4, 3} {
		for face := 1; face <= dice.Faces; face++ {
			if len(faces[face]) >= size {
				picked = append(picked, faces[face][:size]...)
				faces[face] = faces[face][size:]
			}
		}
	}
	picked = append(picked, faces[1]...)
	picked = append(picked, faces[5]...)
	return picked
}

// EndgameSelection looks for the selection whose value comes closest to
// target without exceeding it. Candidates are tried in order: runs of 1s,
// runs of 5s, mixes of 1s and 5s, then triplets; an exact hit stops the
// search. It returns nil when no candidate fits.
func EndgameSelection(s dice.Set, target int) []int {
	free, faces := byFace(&s)
	if len(free) == 0 {
		return nil
	}
	if len(free) == dice.Count && scoring.IsStraight(s.Values(free)) && scoring.StraightPoints <= target {
		return free
	}

	var best []int
	bestScore := 0
	consider := func(indices []int) bool {
		pts := scoring.Points(sortedValues(&s, indices))
		if pts <= target && pts > bestScore {
			bestScore = pts
			best = append([]int(nil), indices...)
		}
		return bestScore == target
	}

	ones, fives := faces[1], faces[5]
	for n := 1; n <= len(ones); n++ {
		if consider(ones[:n]) {
			return best
		}
	}
	for n := 1; n <= len(fives); n++ {
		if consider(fives[:n]) {
			return best
		}
	}
	for a := 1; a <= len(ones); a++ {
		for b := 1; b <= len(fives); b++ {
			mix := append(append([]int(nil), ones[:a]...), fives[:b]...)
			if consider(mix) {
				return best
			}
		}
	}
	for face := 1; face <= dice.Faces; face++ {
		if len(faces[face]) >= 3 && consider(faces[face][:3]) {
			return best
		}
	}
	return best
}

func sortedValues(s *dice.Set, indices []int) []int {
	values := s.Values(indices)
	slices.Sort(values)
	return values
}
