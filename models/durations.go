package models

// Round duration buckets. Scores and leaderboards are partitioned by these.
// Duration67Reps is a sentinel: the round has no fixed wall clock, the player
// races to 67 reps and the recorded score is elapsed time in milliseconds.
const (
	Duration6_7s   = 6700
	Duration20s    = 20000
	Duration67Reps = -1

	MinCustomDurationMS = 1000
	MaxCustomDurationMS = 120000
)

// StandardDurations are the buckets eligible for leaderboard submission and
// matchmaking.
var StandardDurations = []int{Duration6_7s, Duration20s, Duration67Reps}

// Is67RepsMode reports whether the bucket is the race-to-67-reps sentinel.
func Is67RepsMode(durationMS int) bool {
	return durationMS == Duration67Reps
}

// IsStandardDuration reports whether the bucket feeds the global leaderboard.
func IsStandardDuration(durationMS int) bool {
	for _, d := range StandardDurations {
		if durationMS == d {
			return true
		}
	}
	return false
}

// IsValidDuelDuration accepts the 67-reps sentinel or a custom fixed duration
// within the allowed window.
func IsValidDuelDuration(durationMS int) bool {
	if Is67RepsMode(durationMS) {
		return true
	}
	return durationMS >= MinCustomDurationMS && durationMS <= MaxCustomDurationMS
}

// SortAscending reports the compare direction for a bucket: 67-reps rounds
// record elapsed time (lower wins), timed rounds record reps (higher wins).
func SortAscending(durationMS int) bool {
	return Is67RepsMode(durationMS)
}
