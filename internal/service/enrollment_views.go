package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

// Me returns the acting student's record.
func (s *EnrollmentService) Me(ctx context.Context, username string) (*models.Student, error) {
	return s.loadStudent(ctx, models.NormalizeUsername(username))
}

// Timetable expands every enrolled and waitlisted index of username into one
// row per lesson. Waitlisted rows are flagged.
func (s *EnrollmentService) Timetable(ctx context.Context, username string) ([]models.TimetableEntry, error) {
	student, err := s.loadStudent(ctx, models.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	entries := []models.TimetableEntry{}
	appendRefs := func(refs []models.CourseRef, waitlisted bool) error {
		for _, ref := range refs {
			section, err := s.ledger.Get(ctx, ref)
			if err != nil {
				if errors.Is(err, appErrors.ErrNotFound) {
					s.logger.Warn("timetable references unknown index", zap.String("username", student.Username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index))
					continue
				}
				return err
			}
			lessons, err := s.lessons.FindByIDs(ctx, section.LessonIDs)
			if err != nil {
				return appErrors.Storage(err, "failed to load lessons")
			}
			byID := make(map[int64]models.Lesson, len(lessons))
			for _, lesson := range lessons {
				byID[lesson.ID] = lesson
			}
			for _, id := range section.LessonIDs {
				lesson, ok := byID[id]
				if !ok {
					continue
				}
				entries = append(entries, models.TimetableEntry{
					CourseCode: section.CourseCode,
					AU:         section.AU,
					Index:      section.Index,
					ClassType:  lesson.ClassType,
					Day:        lesson.Day,
					StartTime:  lesson.StartTime,
					EndTime:    lesson.EndTime,
					Location:   lesson.Location,
					Waitlisted: waitlisted,
				})
			}
		}
		return nil
	}
	if err := appendRefs(student.Enrolled, false); err != nil {
		return nil, err
	}
	if err := appendRefs(student.Waitlist, true); err != nil {
		return nil, err
	}
	return entries, nil
}

// Vacancy reports seat availability for one index.
func (s *EnrollmentService) Vacancy(ctx context.Context, ref models.CourseRef) (*models.Vacancy, error) {
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	var cached models.Vacancy
	if hit, _ := s.cache.Get(ctx, vacancyCacheKey(ref), &cached); hit {
		return &cached, nil
	}
	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "course index "+ref.String()+" does not exist")
		}
		return nil, err
	}
	vacancy := &models.Vacancy{
		CourseCode:     section.CourseCode,
		Index:          section.Index,
		Vacancy:        section.Vacancy,
		Capacity:       section.Capacity(),
		CourseVacancy:  section.CourseVacancy,
		WaitlistLength: len(section.Waitlist),
	}
	_ = s.cache.Set(ctx, vacancyCacheKey(ref), vacancy, 0)
	return vacancy, nil
}

// Courses lists every course with its indexes in creation order.
func (s *EnrollmentService) Courses(ctx context.Context) ([]models.CourseIndexes, error) {
	var cached []models.CourseIndexes
	if hit, _ := s.cache.Get(ctx, courseListCacheKey, &cached); hit {
		return cached, nil
	}
	sections, err := s.sections.List(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list course indexes")
	}
	courses := []models.CourseIndexes{}
	positions := map[string]int{}
	for _, section := range sections {
		pos, ok := positions[section.CourseCode]
		if !ok {
			pos = len(courses)
			positions[section.CourseCode] = pos
			courses = append(courses, models.CourseIndexes{CourseCode: section.CourseCode, School: section.School, AU: section.AU})
		}
		courses[pos].Indexes = append(courses[pos].Indexes, section.Index)
	}
	_ = s.cache.Set(ctx, courseListCacheKey, courses, 0)
	return courses, nil
}
