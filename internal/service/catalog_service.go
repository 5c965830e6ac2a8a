package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

type courseStore interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course, sections []models.CourseSection) error
	Update(ctx context.Context, code string, mutate func(*models.Course) error) (*models.Course, error)
	Rename(ctx context.Context, oldCode, newCode string) error
}

type lessonStore interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.Lesson, error)
	ListByLocationDay(ctx context.Context, location, day string) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	UpdateTime(ctx context.Context, lesson *models.Lesson) error
}

// CatalogService implements the administrative catalog edits. Renames and AU
// changes cascade into student records and subscriptions.
type CatalogService struct {
	courses   courseStore
	sections  sectionStore
	students  studentStore
	lessons   lessonStore
	subs      subscriptionStore
	ledger    *CapacityLedger
	cache     *CacheService
	locks     *LockManager
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(courses courseStore, sections sectionStore, students studentStore, lessons lessonStore, subs subscriptionStore, ledger *CapacityLedger, cache *CacheService, locks *LockManager, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewLockManager()
	}
	return &CatalogService{
		courses:   courses,
		sections:  sections,
		students:  students,
		lessons:   lessons,
		subs:      subs,
		ledger:    ledger,
		cache:     cache,
		locks:     locks,
		validator: validate,
		logger:    logger,
	}
}

// CreateStudent admits a student with no registrations.
func (s *CatalogService) CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	username := models.NormalizeUsername(req.Username)
	if _, err := s.students.FindByUsername(ctx, username); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student %s already exists", username))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to check student")
	}
	student := &models.Student{Username: username, Name: strings.TrimSpace(req.Name)}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Storage(err, "failed to create student")
	}
	s.logger.Info("student created", zap.String("username", username))
	return student, nil
}

// ListStudents returns every student.
func (s *CatalogService) ListStudents(ctx context.Context) ([]models.Student, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list students")
	}
	return students, nil
}

// CreateCourse adds a course and its initial indexes.
func (s *CatalogService) CreateCourse(ctx context.Context, req models.CreateCourseRequest) (*models.Course, []models.CourseSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	code := models.NormalizeCourseCode(req.Code)
	if _, err := s.courses.FindByCode(ctx, code); err == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s already exists", code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.Storage(err, "failed to check course")
	}

	sections := make([]models.CourseSection, 0, len(req.Indexes))
	seen := map[string]bool{}
	for _, idx := range req.Indexes {
		index := strings.TrimSpace(idx.Index)
		if seen[index] {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate index %s", index))
		}
		seen[index] = true
		if err := s.checkLessons(ctx, idx.LessonIDs); err != nil {
			return nil, nil, err
		}
		sections = append(sections, models.CourseSection{
			CourseCode: code,
			Index:      index,
			Vacancy:    idx.Vacancy,
			Enrolled:   []string{},
			Waitlist:   []string{},
			LessonIDs:  append([]int64{}, idx.LessonIDs...),
		})
	}

	course := &models.Course{Code: code, School: strings.TrimSpace(req.School), AU: req.AU}
	if err := s.courses.Create(ctx, course, sections); err != nil {
		return nil, nil, appErrors.Storage(err, "failed to create course")
	}
	s.cache.InvalidateCourse(ctx, code)
	s.logger.Info("course created", zap.String("course", code), zap.Int("indexes", len(sections)))
	return course, sections, nil
}

// AddSection adds an index to an existing course.
func (s *CatalogService) AddSection(ctx context.Context, courseCode string, req models.CreateSectionRequest) (*models.CourseSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid index payload")
	}
	ref := models.NewCourseRef(courseCode, req.Index)
	if err := s.requireCourse(ctx, ref.CourseCode); err != nil {
		return nil, err
	}
	release := s.locks.Acquire(sectionLockKey(ref))
	defer release()
	if err := s.requireAbsent(ctx, ref); err != nil {
		return nil, err
	}
	if err := s.checkLessons(ctx, req.LessonIDs); err != nil {
		return nil, err
	}
	section := &models.CourseSection{
		CourseCode: ref.CourseCode,
		Index:      ref.Index,
		Vacancy:    req.Vacancy,
		Enrolled:   []string{},
		Waitlist:   []string{},
		LessonIDs:  append([]int64{}, req.LessonIDs...),
	}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, appErrors.Storage(err, "failed to create index")
	}
	s.cache.InvalidateCourse(ctx, ref.CourseCode)
	return s.ledger.Get(ctx, ref)
}

// Section returns one index.
func (s *CatalogService) Section(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error) {
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return section, nil
}

// RenameCourse changes a course code everywhere it is referenced.
func (s *CatalogService) RenameCourse(ctx context.Context, oldCode string, req models.RenameRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rename payload")
	}
	oldCode = models.NormalizeCourseCode(oldCode)
	newCode := models.NormalizeCourseCode(req.NewValue)
	if oldCode == newCode {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new course code must differ")
	}
	release, err := s.lockCourse(ctx, oldCode)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.requireCourse(ctx, oldCode); err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByCode(ctx, newCode); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s already exists", newCode))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to check course")
	}

	if err := s.courses.Rename(ctx, oldCode, newCode); err != nil {
		return nil, appErrors.Storage(err, "failed to rename course")
	}
	if err := s.rewriteStudents(ctx, func(ref models.CourseRef) (models.CourseRef, bool) {
		if ref.CourseCode != oldCode {
			return ref, false
		}
		return models.CourseRef{CourseCode: newCode, Index: ref.Index}, true
	}); err != nil {
		return nil, err
	}
	if err := s.subs.RenameCourse(ctx, oldCode, newCode); err != nil {
		return nil, appErrors.Storage(err, "failed to rename course subscriptions")
	}
	s.cache.InvalidateCourse(ctx, oldCode)
	s.cache.InvalidateCourse(ctx, newCode)
	s.logger.Info("course renamed", zap.String("from", oldCode), zap.String("to", newCode))
	return s.findCourse(ctx, newCode)
}

// RenameIndex changes an index identifier everywhere it is referenced.
func (s *CatalogService) RenameIndex(ctx context.Context, ref models.CourseRef, req models.RenameRequest) (*models.CourseSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rename payload")
	}
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	target := models.NewCourseRef(ref.CourseCode, req.NewValue)
	if ref == target {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new index must differ")
	}
	releaseSections := s.locks.Acquire(sectionLockKey(ref), sectionLockKey(target))
	defer releaseSections()

	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.requireAbsent(ctx, target); err != nil {
		return nil, err
	}
	releaseStudents := s.locks.Acquire(rosterLockKeys(*section)...)
	defer releaseStudents()

	if err := s.sections.Rename(ctx, ref, target.Index); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course index %s not found", ref))
		}
		return nil, appErrors.Storage(err, "failed to rename index")
	}
	if err := s.rewriteStudents(ctx, func(held models.CourseRef) (models.CourseRef, bool) {
		return target, held == ref
	}); err != nil {
		return nil, err
	}
	if err := s.subs.RenameIndex(ctx, ref, target.Index); err != nil {
		return nil, appErrors.Storage(err, "failed to rename index subscriptions")
	}
	s.cache.InvalidateCourse(ctx, ref.CourseCode)
	s.logger.Info("index renamed", zap.String("course", ref.CourseCode), zap.String("from", ref.Index), zap.String("to", target.Index))
	return s.ledger.Get(ctx, target)
}

// UpdateSchool re-homes a course.
func (s *CatalogService) UpdateSchool(ctx context.Context, code string, req models.UpdateSchoolRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	code = models.NormalizeCourseCode(code)
	course, err := s.updateCourse(ctx, code, func(c *models.Course) error {
		c.School = strings.TrimSpace(req.School)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateCourse(ctx, code)
	return course, nil
}

// UpdateAU changes the course weight and recomputes the AU total of every
// enrolled student.
func (s *CatalogService) UpdateAU(ctx context.Context, code string, req models.UpdateAURequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid AU payload")
	}
	code = models.NormalizeCourseCode(code)
	release, err := s.lockCourse(ctx, code)
	if err != nil {
		return nil, err
	}
	defer release()

	course, err := s.updateCourse(ctx, code, func(c *models.Course) error {
		c.AU = req.AU
		return nil
	})
	if err != nil {
		return nil, err
	}

	weights, err := s.courseWeights(ctx)
	if err != nil {
		return nil, err
	}
	weights[code] = req.AU

	students, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list students")
	}
	for _, student := range students {
		if _, ok := student.EnrolledIn(code); !ok {
			continue
		}
		// The total is derived from the record read inside the update.
		if _, err := s.students.Update(ctx, student.Username, func(st *models.Student) error {
			st.TotalAU = sumAU(st.Enrolled, weights)
			return nil
		}); err != nil {
			return nil, appErrors.Storage(err, "failed to recompute student AU")
		}
	}
	s.cache.InvalidateCourse(ctx, code)
	s.logger.Info("course AU changed", zap.String("course", code), zap.Int("au", req.AU))
	return course, nil
}

// SetVacancy sets an index's absolute vacancy.
func (s *CatalogService) SetVacancy(ctx context.Context, ref models.CourseRef, req models.UpdateVacancyRequest) (*models.CourseSection, error) {
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	release := s.locks.Acquire(sectionLockKey(ref))
	defer release()
	return s.ledger.SetVacancy(ctx, ref, req.Vacancy)
}

// AttachLessons appends sessions to an index.
func (s *CatalogService) AttachLessons(ctx context.Context, ref models.CourseRef, req models.AttachLessonsRequest) (*models.CourseSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lessons payload")
	}
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	if err := s.checkLessons(ctx, req.LessonIDs); err != nil {
		return nil, err
	}
	release := s.locks.Acquire(sectionLockKey(ref))
	defer release()

	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	ids := append([]int64{}, section.LessonIDs...)
	for _, id := range req.LessonIDs {
		if !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	return s.ledger.SetLessons(ctx, ref, ids)
}

// CreateLesson schedules a session after checking its location is free.
func (s *CatalogService) CreateLesson(ctx context.Context, req models.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson := &models.Lesson{
		Location:  strings.TrimSpace(req.Location),
		Day:       models.NormalizeDay(req.Day),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ClassType: strings.ToUpper(strings.TrimSpace(req.ClassType)),
	}
	if err := s.checkVenue(ctx, *lesson); err != nil {
		return nil, err
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, appErrors.Storage(err, "failed to create lesson")
	}
	return lesson, nil
}

// RetimeLesson moves a session, re-checking the venue against every other
// session there.
func (s *CatalogService) RetimeLesson(ctx context.Context, id int64, req models.RetimeLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("lesson %d not found", id))
		}
		return nil, appErrors.Storage(err, "failed to load lesson")
	}
	lesson.Day = models.NormalizeDay(req.Day)
	lesson.StartTime = req.StartTime
	lesson.EndTime = req.EndTime
	if err := s.checkVenue(ctx, *lesson); err != nil {
		return nil, err
	}
	if err := s.lessons.UpdateTime(ctx, lesson); err != nil {
		return nil, appErrors.Storage(err, "failed to update lesson")
	}
	return lesson, nil
}

// Roster lists the students of an index with their display names.
func (s *CatalogService) Roster(ctx context.Context, ref models.CourseRef) (*models.Roster, error) {
	section, err := s.Section(ctx, ref)
	if err != nil {
		return nil, err
	}
	roster := &models.Roster{
		CourseCode: section.CourseCode,
		Index:      section.Index,
		School:     section.School,
		AU:         section.AU,
		Vacancy:    section.Vacancy,
		Enrolled:   make([]models.RosterEntry, 0, len(section.Enrolled)),
		Waitlist:   make([]models.RosterEntry, 0, len(section.Waitlist)),
	}
	for i, username := range section.Enrolled {
		roster.Enrolled = append(roster.Enrolled, models.RosterEntry{Position: i + 1, Username: username, Name: s.displayName(ctx, username)})
	}
	for i, username := range section.Waitlist {
		roster.Waitlist = append(roster.Waitlist, models.RosterEntry{Position: i + 1, Username: username, Name: s.displayName(ctx, username)})
	}
	return roster, nil
}

func (s *CatalogService) displayName(ctx context.Context, username string) string {
	student, err := s.students.FindByUsername(ctx, username)
	if err != nil {
		return ""
	}
	return student.Name
}

func (s *CatalogService) checkVenue(ctx context.Context, lesson models.Lesson) error {
	if err := WindowOf(lesson).Validate(); err != nil {
		return err
	}
	booked, err := s.lessons.ListByLocationDay(ctx, lesson.Location, lesson.Day)
	if err != nil {
		return appErrors.Storage(err, "failed to load venue bookings")
	}
	others := booked[:0:0]
	for _, b := range booked {
		if lesson.ID == 0 || b.ID != lesson.ID {
			others = append(others, b)
		}
	}
	clash, err := FindClash([]models.Lesson{lesson}, others)
	if err != nil {
		return err
	}
	if clash != nil {
		return appErrors.Clone(appErrors.ErrScheduleConflict, fmt.Sprintf("%s is booked %s %04d-%04d by lesson %d",
			lesson.Location, clash.Existing.Day, clash.Existing.StartTime, clash.Existing.EndTime, clash.Existing.ID))
	}
	return nil
}

func (s *CatalogService) checkLessons(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.lessons.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Storage(err, "failed to load lessons")
	}
	for _, id := range ids {
		known := false
		for _, lesson := range found {
			if lesson.ID == id {
				known = true
				break
			}
		}
		if !known {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lesson %d does not exist", id))
		}
	}
	return nil
}

func (s *CatalogService) requireCourse(ctx context.Context, code string) error {
	_, err := s.findCourse(ctx, code)
	return err
}

func (s *CatalogService) findCourse(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", code))
		}
		return nil, appErrors.Storage(err, "failed to load course")
	}
	return course, nil
}

func (s *CatalogService) requireAbsent(ctx context.Context, ref models.CourseRef) error {
	_, err := s.sections.FindByRef(ctx, ref)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course index %s already exists", ref))
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Storage(err, "failed to check course index")
	}
}

func (s *CatalogService) updateCourse(ctx context.Context, code string, mutate func(*models.Course) error) (*models.Course, error) {
	course, err := s.courses.Update(ctx, code, mutate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", code))
		}
		return nil, appErrors.Storage(err, "failed to update course")
	}
	return course, nil
}

// lockCourse takes every index key of a course, then the keys of every student
// on those rosters and waitlists.
func (s *CatalogService) lockCourse(ctx context.Context, code string) (func(), error) {
	sections, err := s.sections.ListByCourse(ctx, code)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list course indexes")
	}
	sectionKeys := make([]string, 0, len(sections))
	var studentKeys []string
	for _, section := range sections {
		sectionKeys = append(sectionKeys, sectionLockKey(section.Ref()))
		studentKeys = append(studentKeys, rosterLockKeys(section)...)
	}
	releaseSections := s.locks.Acquire(sectionKeys...)
	releaseStudents := s.locks.Acquire(studentKeys...)
	return func() {
		releaseStudents()
		releaseSections()
	}, nil
}

func rosterLockKeys(section models.CourseSection) []string {
	keys := make([]string, 0, len(section.Enrolled)+len(section.Waitlist))
	for _, username := range section.Enrolled {
		keys = append(keys, studentLockKey(username))
	}
	for _, username := range section.Waitlist {
		keys = append(keys, studentLockKey(username))
	}
	return keys
}

// rewriteStudents applies rename to every enrollment and waitlist pair.
func (s *CatalogService) rewriteStudents(ctx context.Context, rename func(models.CourseRef) (models.CourseRef, bool)) error {
	students, err := s.students.List(ctx)
	if err != nil {
		return appErrors.Storage(err, "failed to list students")
	}
	for _, student := range students {
		if !refsMatch(student.Enrolled, rename) && !refsMatch(student.Waitlist, rename) {
			continue
		}
		if _, err := s.students.Update(ctx, student.Username, func(st *models.Student) error {
			st.Enrolled = renameRefs(st.Enrolled, rename)
			st.Waitlist = renameRefs(st.Waitlist, rename)
			return nil
		}); err != nil {
			return appErrors.Storage(err, "failed to rewrite student registrations")
		}
	}
	return nil
}

func refsMatch(refs []models.CourseRef, rename func(models.CourseRef) (models.CourseRef, bool)) bool {
	for _, ref := range refs {
		if _, ok := rename(ref); ok {
			return true
		}
	}
	return false
}

func renameRefs(refs []models.CourseRef, rename func(models.CourseRef) (models.CourseRef, bool)) []models.CourseRef {
	out := make([]models.CourseRef, len(refs))
	for i, ref := range refs {
		if renamed, ok := rename(ref); ok {
			out[i] = renamed
			continue
		}
		out[i] = ref
	}
	return out
}

// courseWeights maps every course code to its AU weight.
func (s *CatalogService) courseWeights(ctx context.Context) (map[string]int, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list courses")
	}
	weights := make(map[string]int, len(courses))
	for _, course := range courses {
		weights[course.Code] = course.AU
	}
	return weights, nil
}

// sumAU adds the weights of refs. Unknown courses count as zero.
func sumAU(refs []models.CourseRef, weights map[string]int) int {
	total := 0
	for _, ref := range refs {
		total += weights[ref.CourseCode]
	}
	return total
}

func containsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
