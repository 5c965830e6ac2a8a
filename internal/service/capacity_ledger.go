package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

type sectionStore interface {
	FindByRef(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error)
	List(ctx context.Context) ([]models.CourseSection, error)
	ListByCourse(ctx context.Context, courseCode string) ([]models.CourseSection, error)
	Create(ctx context.Context, section *models.CourseSection) error
	Update(ctx context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error)
	Rename(ctx context.Context, ref models.CourseRef, newIndex string) error
}

// CapacityLedger owns the seat counters and rosters of course indexes. Every
// roster change moves the index and course counters by the same amount.
type CapacityLedger struct {
	sections sectionStore
	cache    *CacheService
	logger   *zap.Logger
}

// NewCapacityLedger constructs the ledger.
func NewCapacityLedger(sections sectionStore, cache *CacheService, logger *zap.Logger) *CapacityLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityLedger{sections: sections, cache: cache, logger: logger}
}

// Get loads an index.
func (l *CapacityLedger) Get(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error) {
	section, err := l.sections.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course index %s not found", ref))
		}
		return nil, appErrors.Storage(err, "failed to load course index")
	}
	return section, nil
}

// AddEnrolled appends username to the roster and takes one seat.
func (l *CapacityLedger) AddEnrolled(ctx context.Context, ref models.CourseRef, username string) (*models.CourseSection, error) {
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		if s.Vacancy <= 0 || s.CourseVacancy <= 0 {
			return appErrors.Clone(appErrors.ErrSectionFull, fmt.Sprintf("index %s has no vacancy", ref))
		}
		if s.EnrolledPosition(username) >= 0 {
			return appErrors.Clone(appErrors.ErrAlreadyEnrolled, fmt.Sprintf("%s already enrolled in %s", username, ref))
		}
		s.Enrolled = append(s.Enrolled, username)
		s.Vacancy--
		s.CourseVacancy--
		return nil
	})
}

// RemoveEnrolled removes username from the roster and frees one seat. freed
// reports a transition from zero to one remaining seat.
func (l *CapacityLedger) RemoveEnrolled(ctx context.Context, ref models.CourseRef, username string) (bool, *models.CourseSection, error) {
	var before int
	section, err := l.update(ctx, ref, func(s *models.CourseSection) error {
		pos := s.EnrolledPosition(username)
		if pos < 0 {
			return appErrors.Clone(appErrors.ErrNotEnrolled, fmt.Sprintf("%s not enrolled in %s", username, ref))
		}
		before = s.Vacancy
		s.Enrolled = append(s.Enrolled[:pos:pos], s.Enrolled[pos+1:]...)
		s.Vacancy++
		s.CourseVacancy++
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return before == 0 && section.Vacancy == 1, section, nil
}

// AddWaitlist appends username to the back of the waitlist.
func (l *CapacityLedger) AddWaitlist(ctx context.Context, ref models.CourseRef, username string) (*models.CourseSection, error) {
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		if s.WaitlistPosition(username) >= 0 {
			return appErrors.Clone(appErrors.ErrAlreadyWaitlisted, fmt.Sprintf("%s already waitlisted for %s", username, ref))
		}
		s.Waitlist = append(s.Waitlist, username)
		return nil
	})
}

// RemoveWaitlistAt removes the waitlist entry at position. The caller holds the
// index lock, so positions read earlier are still valid.
func (l *CapacityLedger) RemoveWaitlistAt(ctx context.Context, ref models.CourseRef, position int) (*models.CourseSection, error) {
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		if position < 0 || position >= len(s.Waitlist) {
			return appErrors.Clone(appErrors.ErrNotWaitlisted, fmt.Sprintf("no waitlist entry %d for %s", position, ref))
		}
		s.Waitlist = append(s.Waitlist[:position:position], s.Waitlist[position+1:]...)
		return nil
	})
}

// RemoveWaitlist removes username from the waitlist.
func (l *CapacityLedger) RemoveWaitlist(ctx context.Context, ref models.CourseRef, username string) (*models.CourseSection, error) {
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		pos := s.WaitlistPosition(username)
		if pos < 0 {
			return appErrors.Clone(appErrors.ErrNotWaitlisted, fmt.Sprintf("%s not waitlisted for %s", username, ref))
		}
		s.Waitlist = append(s.Waitlist[:pos:pos], s.Waitlist[pos+1:]...)
		return nil
	})
}

// SetVacancy overwrites the index vacancy and moves the course vacancy by the
// same delta. The course counter may go negative on this path only.
func (l *CapacityLedger) SetVacancy(ctx context.Context, ref models.CourseRef, vacancy int) (*models.CourseSection, error) {
	if vacancy < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "vacancy must not be negative")
	}
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		delta := vacancy - s.Vacancy
		s.Vacancy = vacancy
		s.CourseVacancy += delta
		return nil
	})
}

// SetLessons replaces the lesson references of an index.
func (l *CapacityLedger) SetLessons(ctx context.Context, ref models.CourseRef, lessonIDs []int64) (*models.CourseSection, error) {
	return l.update(ctx, ref, func(s *models.CourseSection) error {
		s.LessonIDs = append([]int64{}, lessonIDs...)
		return nil
	})
}

func (l *CapacityLedger) update(ctx context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error) {
	section, err := l.sections.Update(ctx, ref, mutate)
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course index %s not found", ref))
		default:
			l.logger.Error("course index update failed", zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(err))
			return nil, appErrors.Storage(err, "failed to update course index")
		}
	}
	l.cache.InvalidateSection(ctx, ref)
	return section, nil
}
