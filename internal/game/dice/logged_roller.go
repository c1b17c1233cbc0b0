package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged rolling of a Set.
// Every roll is logged at debug level with the rolled indices and the
// resulting faces.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn forwards to the wrapped Source so a Roller can stand in wherever a
// Source is expected.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}

// Roll rolls every unlocked die of s and logs the outcome.
//
// Precondition: s must be non-nil.
// Postcondition: same as Set.RollUnlocked; returns the rolled indices.
func (r *Roller) Roll(s *Set) []int {
	rolled := s.RollUnlocked(r.src)
	faces := make([]int, Count)
	for i, d := range s {
		faces[i] = d.Value
	}
	r.logger.Debug("dice roll",
		zap.Ints("rolled", rolled),
		zap.Ints("faces", faces),
	)
	return rolled
}
