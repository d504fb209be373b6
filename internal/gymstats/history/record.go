package history

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PersonalRecord is the most recent and the best-ever set of one exercise.
// Weight and reps keep the strings they were entered with; the two bests
// are tracked independently of each other.
type PersonalRecord struct {
	LastWeight string    `json:"lastWeight"`
	LastReps   string    `json:"lastReps"`
	BestWeight string    `json:"bestWeight"`
	BestReps   string    `json:"bestReps"`
	LastDate   time.Time `json:"lastDate"`
}

// ParseWeight parses a decimal weight. Anything unparsable, NaN or infinite is 0.
func ParseWeight(weight string) float64 {
	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

// ParseReps parses an integer rep count. Decimal input like "8.0" is
// truncated, anything else unparsable is 0.
func ParseReps(reps string) int64 {
	reps = strings.TrimSpace(reps)
	if r, err := strconv.ParseInt(reps, 10, 64); err == nil {
		return r
	}

	r, err := strconv.ParseFloat(reps, 64)
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	if r >= math.MaxInt64 || r <= math.MinInt64 {
		return 0
	}
	return int64(r)
}

// next returns the record after performing weight x reps at now on top of prev.
func next(prev PersonalRecord, exists bool, weight, reps string, now time.Time) PersonalRecord {
	rec := PersonalRecord{
		LastWeight: weight,
		LastReps:   reps,
		BestWeight: weight,
		BestReps:   reps,
		LastDate:   now,
	}
	if !exists {
		return rec
	}

	if ParseWeight(weight) <= ParseWeight(prev.BestWeight) {
		rec.BestWeight = prev.BestWeight
	}
	if ParseReps(reps) <= ParseReps(prev.BestReps) {
		rec.BestReps = prev.BestReps
	}
	return rec
}

// isPR reports whether weight x reps strictly beats prev on either axis.
// A first performance is never a PR.
func isPR(prev PersonalRecord, exists bool, weight, reps string) bool {
	if !exists {
		return false
	}
	return ParseWeight(weight) > ParseWeight(prev.BestWeight) ||
		ParseReps(reps) > ParseReps(prev.BestReps)
}
