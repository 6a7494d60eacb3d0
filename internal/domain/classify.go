package domain

import "time"

const (
	// earlyBirdWindow marks how far before the scheduled start a join is
	// counted as on-time.
	earlyBirdWindow = time.Hour
	// lateCutoff marks how far after the scheduled start a join still counts
	// as late.
	lateCutoff = 30 * time.Minute
)

// Classify buckets the signed offset between a join and the scheduled start.
// Positive delta means the member joined after the start.
//
// Joins in (-earlyBirdWindow, 0] record nothing. That window looks like an
// unintended hole, but it is the long-standing observable behavior and
// changing it would rewrite members' attendance outcomes, so it stays.
func Classify(delta time.Duration) (Status, bool) {
	switch {
	case delta < -earlyBirdWindow:
		return StatusPresent, true
	case delta > 0 && delta <= lateCutoff:
		return StatusLate, true
	default:
		return "", false
	}
}
