// Package scoring computes the point value of a group of die faces under the
// 10,000 rules and reports which of those faces take part in a scoring
// combination.
package scoring

import "sort"

// StraightPoints is the value of a five-die straight (1-5 or 2-6).
const StraightPoints = 1500

// Result is the outcome of evaluating a group of faces.
//
// Invariant: len(Eligible) equals the number of evaluated faces.
type Result struct {
	// Points is the total value of every recognised combination.
	Points int
	// Eligible marks, per input position, the faces that contributed.
	Eligible []bool
}

// Bust reports whether the evaluated faces contained no scoring die at all.
func (r Result) Bust() bool {
	return r.Points == 0
}

// Evaluate scores values and marks the faces that contribute to the total.
// When a face appears more times than a combination consumes, the first
// occurrences in input order are the ones marked.
//
// Precondition: every value is in [1, 6].
// Postcondition: len(result.Eligible) == len(values); result.Points >= 0.
func Evaluate(values []int) Result {
	res := Result{Eligible: make([]bool, len(values))}

	if IsStraight(values) {
		res.Points = StraightPoints
		for i := range res.Eligible {
			res.Eligible[i] = true
		}
		return res
	}

	positions := make(map[int][]int, 6)
	for i, v := range values {
		positions[v] = append(positions[v], i)
	}

	for face := 1; face <= 6; face++ {
		idx := positions[face]
		points, consumed := SetPoints(face, len(idx))
		if consumed == 0 {
			continue
		}
		res.Points += points
		for _, i := range idx[:consumed] {
			res.Eligible[i] = true
		}
		positions[face] = idx[consumed:]
	}

	for _, i := range positions[1] {
		res.Points += 100
		res.Eligible[i] = true
	}
	for _, i := range positions[5] {
		res.Points += 50
		res.Eligible[i] = true
	}
	return res
}

// Points returns the total value of values without any eligibility marking.
// The faces are sorted ascending before evaluation, as the selection total is
// independent of die order.
//
// Precondition: every value is in [1, 6].
func Points(values []int) int {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	return Evaluate(sorted).Points
}

// SetPoints returns the value of the largest of-a-kind combination that count
// dice showing face can form, and how many dice it consumes. It returns (0, 0)
// when count is below three.
//
// Precondition: face is in [1, 6]; count >= 0.
func SetPoints(face, count int) (points, consumed int) {
	base := face * 100
	if face == 1 {
		base = 1000
	}
	switch {
	case count >= 5:
		return base * 3, 5
	case count >= 4:
		return base * 2, 4
	case count >= 3:
		return base, 3
	}
	return 0, 0
}

// IsStraight reports whether values is exactly five faces forming 1-5 or 2-6.
func IsStraight(values []int) bool {
	if len(values) != 5 {
		return false
	}
	var seen [7]bool
	for _, v := range values {
		if v < 1 || v > 6 || seen[v] {
			return false
		}
		seen[v] = true
	}
	return seen[2] && seen[3] && seen[4] && seen[5]
}
