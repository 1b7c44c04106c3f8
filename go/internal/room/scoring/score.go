// Package scoring credits one-time achievements and computes the time-decay score shared
// by the live found-item path and the end-of-game results path.
package scoring

// Decay bands. The score falls linearly from MaxScore at GraceSeconds to MidScore at
// MidSeconds, then to LateScore at LateSeconds, and is FloorScore afterwards.
const (
	MaxScore     = 100
	GraceSeconds = 60

	MidScore   = 50
	MidSeconds = 300

	LateScore   = 20
	LateSeconds = 600

	FloorScore = 10
)

// Score returns the time-decayed score for elapsed seconds.
//
//	elapsed <= 60         100
//	60 < elapsed <= 300   floor(100 - (elapsed-60)/240*50)
//	300 < elapsed <= 600  floor(50 - (elapsed-300)/300*30)
//	elapsed > 600         10
//
// Both bands are evaluated in integer arithmetic; floor(a - x) is a - ceil(x). A negative
// elapsed is treated as zero.
func Score(elapsed int) int {
	switch {
	case elapsed <= GraceSeconds:
		return MaxScore
	case elapsed <= MidSeconds:
		drop := MaxScore - MidScore
		span := MidSeconds - GraceSeconds
		return MaxScore - ceilDiv((elapsed-GraceSeconds)*drop, span)
	case elapsed <= LateSeconds:
		drop := MidScore - LateScore
		span := LateSeconds - MidSeconds
		return MidScore - ceilDiv((elapsed-MidSeconds)*drop, span)
	default:
		return FloorScore
	}
}

// ceilDiv is ceil(a/b) for a >= 0, b > 0.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
