package srs

import (
	"math"
	"time"
)

const (
	MinEaseFactor     = 1.3
	MaxEaseFactor     = 5.0
	InitialEaseFactor = 2.5
	DefaultEaseBonus  = 1.3

	hardPenalty = 0.20
	easyBoost   = 0.15

	// MaxInterval caps every interval at about a century, which keeps due
	// dates inside the DATE range and intervals inside an INTEGER column.
	MaxInterval = 36500

	// first interval of a new card rated easy
	graduatingInterval = 6
)

// State is the part of a flashcard the scheduler reads and writes.
type State struct {
	Stage      Stage
	Interval   int
	EaseFactor float64
	Reps       int
	Lapses     int
}

// NewCardState is the state every card starts in.
func NewCardState() State {
	return State{Stage: StageNew, EaseFactor: InitialEaseFactor}
}

// Next applies rating to s and returns the resulting state.
//
// Ease is adjusted and clamped before it feeds the interval. easeBonus only
// scales an easy answer on a card already in review; zero or negative values
// fall back to DefaultEaseBonus.
func Next(s State, rating Rating, easeBonus float64) (State, error) {
	if !rating.IsValid() {
		return s, ErrInvalidRating
	}
	if easeBonus <= 0 {
		easeBonus = DefaultEaseBonus
	}

	next := s
	next.Reps = s.Reps + 1

	var interval float64
	switch rating {
	case Hard:
		next.EaseFactor = ClampEase(s.EaseFactor - hardPenalty)
		next.Stage = StageLearning
		next.Lapses = s.Lapses + 1
		interval = 1

	case Good:
		next.EaseFactor = ClampEase(s.EaseFactor)
		switch s.Stage {
		case StageReview:
			next.Stage = StageReview
			interval = float64(s.Interval) * next.EaseFactor
		case StageLearning:
			next.Stage = StageLearning
			interval = float64(s.Interval + 1)
		default:
			next.Stage = StageLearning
			interval = 1
		}

	case Easy:
		next.EaseFactor = ClampEase(s.EaseFactor + easyBoost)
		next.Stage = StageReview
		switch s.Stage {
		case StageReview:
			interval = float64(s.Interval) * next.EaseFactor * easeBonus
		case StageLearning:
			interval = 1
		default:
			interval = graduatingInterval
		}
	}

	next.Interval = roundDays(interval)
	return next, nil
}

// ClampEase bounds an ease factor to [MinEaseFactor, MaxEaseFactor] and
// keeps it at hundredths so repeated adjustments do not drift.
func ClampEase(ease float64) float64 {
	if math.IsNaN(ease) {
		return InitialEaseFactor
	}
	ease = math.Round(ease*100) / 100
	return math.Max(MinEaseFactor, math.Min(MaxEaseFactor, ease))
}

// roundDays rounds to the nearest whole day within [1, MaxInterval].
func roundDays(days float64) int {
	if math.IsNaN(days) || days < 1 {
		return 1
	}
	if days >= MaxInterval {
		return MaxInterval
	}
	return int(math.Round(days))
}

// Today is the calendar day of now in loc, expressed as midnight UTC so it
// compares cleanly with DATE columns.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDate is the day a card with the given interval comes back.
func DueDate(today time.Time, interval int) time.Time {
	return today.AddDate(0, 0, interval)
}
