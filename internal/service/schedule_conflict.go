package service

import (
	"fmt"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

// TimeWindow is a weekly session slot. Start and End are HHMM integers.
type TimeWindow struct {
	Day   string
	Start int
	End   int
}

// WindowOf returns the slot occupied by a lesson.
func WindowOf(lesson models.Lesson) TimeWindow {
	return TimeWindow{Day: lesson.Day, Start: lesson.StartTime, End: lesson.EndTime}
}

// Validate rejects unknown days, malformed HHMM values and windows that do not
// end after they start.
func (w TimeWindow) Validate() error {
	if !models.ValidDay(w.Day) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid day %q", w.Day))
	}
	if !validClock(w.Start) || !validClock(w.End) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time window %04d-%04d", w.Start, w.End))
	}
	if w.End <= w.Start {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %04d-%04d must end after it starts", w.Start, w.End))
	}
	return nil
}

func validClock(hhmm int) bool {
	return hhmm >= 0 && hhmm <= 2359 && hhmm%100 < 60
}

// Overlaps reports whether two windows intersect. Intervals are half-open, so
// back-to-back sessions do not clash.
func Overlaps(candidate, existing TimeWindow) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, err
	}
	if err := existing.Validate(); err != nil {
		return false, err
	}
	if candidate.Day != existing.Day {
		return false, nil
	}
	return candidate.Start < existing.End && candidate.End > existing.Start, nil
}

// Clash names the pair of lessons that overlap.
type Clash struct {
	Candidate models.Lesson
	Existing  models.Lesson
}

// FindClash compares every candidate lesson with every existing one and returns
// the first overlapping pair, or nil. A lesson shared by both sides clashes
// with itself.
func FindClash(candidates, existing []models.Lesson) (*Clash, error) {
	for _, c := range candidates {
		for _, e := range existing {
			overlap, err := Overlaps(WindowOf(c), WindowOf(e))
			if err != nil {
				return nil, err
			}
			if overlap {
				return &Clash{Candidate: c, Existing: e}, nil
			}
		}
	}
	return nil, nil
}
