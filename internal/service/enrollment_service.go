package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

// DefaultAULimit is the academic unit load cap.
const DefaultAULimit = 21

type studentStore interface {
	FindByUsername(ctx context.Context, username string) (*models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error)
}

type lessonReader interface {
	FindByIDs(ctx context.Context, ids []int64) ([]models.Lesson, error)
}

// notifier is the Notification Dispatch contract. Notify never fails the caller.
type notifier interface {
	Subscribe(ctx context.Context, username, reason string, ref models.CourseRef) error
	Unsubscribe(ctx context.Context, username, reason string, ref models.CourseRef) error
	Notify(ctx context.Context, username, reason, message string)
}

// EnrollmentOptions carries the optional collaborators of the engine.
type EnrollmentOptions struct {
	AULimit   int
	Locks     *LockManager
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Tracer    trace.Tracer
}

// EnrollmentService is the registration engine: enroll, drop, waitlist,
// index change and swap against the capacity ledger.
type EnrollmentService struct {
	students  studentStore
	ledger    *CapacityLedger
	sections  sectionStore
	lessons   lessonReader
	notifier  notifier
	promoter  *WaitlistPromoter
	locks     *LockManager
	cache     *CacheService
	metrics   *MetricsService
	auLimit   int
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewEnrollmentService constructs the engine and its waitlist promoter.
func NewEnrollmentService(students studentStore, sections sectionStore, lessons lessonReader, ledger *CapacityLedger, notifier notifier, opts EnrollmentOptions) *EnrollmentService {
	if opts.AULimit <= 0 {
		opts.AULimit = DefaultAULimit
	}
	if opts.Locks == nil {
		opts.Locks = NewLockManager()
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/noah-isme/stars-api/internal/service")
	}
	s := &EnrollmentService{
		students:  students,
		ledger:    ledger,
		sections:  sections,
		lessons:   lessons,
		notifier:  notifier,
		locks:     opts.Locks,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		auLimit:   opts.AULimit,
		validator: opts.Validator,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
	}
	s.promoter = NewWaitlistPromoter(ledger, s, students, notifier, opts.Locks, opts.Metrics, opts.Logger, opts.Tracer)
	return s
}

// Promoter exposes the waitlist promoter.
func (s *EnrollmentService) Promoter() *WaitlistPromoter { return s.promoter }

// AULimit returns the configured academic unit cap.
func (s *EnrollmentService) AULimit() int { return s.auLimit }

// Enroll registers username into the requested index.
func (s *EnrollmentService) Enroll(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.EnrollResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	username = models.NormalizeUsername(username)
	ref := req.Ref()
	ctx, span := s.startSpan(ctx, "enrollment.enroll", username, ref)
	defer span.End()

	release := s.locks.Acquire(sectionLockKey(ref), studentLockKey(username))
	defer release()

	result, err := s.enrollLocked(ctx, username, ref)
	s.finish(span, "enroll", username, ref, result.Outcome, err)
	return result, err
}

// Drop removes username from ref and promotes the next eligible waitlisted
// student when the drop frees the only seat.
func (s *EnrollmentService) Drop(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	return s.drop(ctx, username, ref, true)
}

// DropSilent removes username from ref without waitlist promotion.
func (s *EnrollmentService) DropSilent(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	return s.drop(ctx, username, ref, false)
}

func (s *EnrollmentService) drop(ctx context.Context, username string, ref models.CourseRef, promote bool) (models.EnrollResult, error) {
	username = models.NormalizeUsername(username)
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	if ref.IsZero() {
		return models.EnrollResult{}, appErrors.Clone(appErrors.ErrValidation, "course and index are required")
	}
	ctx, span := s.startSpan(ctx, "enrollment.drop", username, ref)
	defer span.End()

	releaseSection := s.locks.Acquire(sectionLockKey(ref))
	defer releaseSection()
	releaseStudent := s.locks.Acquire(studentLockKey(username))
	defer releaseStudent()

	freed, result, err := s.dropLocked(ctx, username, ref)
	if err == nil && result.OK() && freed && promote {
		releaseStudent()
		promoted, perr := s.promoter.Promote(ctx, ref)
		if perr != nil {
			s.logger.Warn("waitlist promotion failed after drop", zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(perr))
		}
		result.Promoted = promoted
	}
	s.finish(span, "drop", username, ref, result.Outcome, err)
	return result, err
}

// JoinWaitlist queues username for ref and subscribes them to waitlist notices.
func (s *EnrollmentService) JoinWaitlist(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.EnrollResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	username = models.NormalizeUsername(username)
	ref := req.Ref()
	ctx, span := s.startSpan(ctx, "enrollment.join_waitlist", username, ref)
	defer span.End()

	release := s.locks.Acquire(sectionLockKey(ref), studentLockKey(username))
	defer release()

	result, err := s.joinWaitlistLocked(ctx, username, ref)
	s.finish(span, "join_waitlist", username, ref, result.Outcome, err)
	return result, err
}

// LeaveWaitlist removes username from the waitlist of ref.
func (s *EnrollmentService) LeaveWaitlist(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	username = models.NormalizeUsername(username)
	ref = models.NewCourseRef(ref.CourseCode, ref.Index)
	if ref.IsZero() {
		return models.EnrollResult{}, appErrors.Clone(appErrors.ErrValidation, "course and index are required")
	}
	release := s.locks.Acquire(sectionLockKey(ref), studentLockKey(username))
	defer release()

	result := models.EnrollResult{Ref: ref}
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return result, err
	}
	result.CurrentAU = student.TotalAU
	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			result.Outcome = models.OutcomeInvalidTarget
			return result, nil
		}
		return result, err
	}
	onStudent := student.IsWaitlisted(ref)
	onSection := section.WaitlistPosition(username) >= 0
	if !onStudent && !onSection {
		result.Outcome = models.OutcomeNotWaitlisted
		s.metrics.RecordOutcome("leave_waitlist", string(result.Outcome))
		return result, nil
	}
	if onSection {
		if _, err := s.ledger.RemoveWaitlist(ctx, ref, username); err != nil {
			return result, err
		}
	}
	if onStudent {
		if _, err := s.updateStudent(ctx, username, func(st *models.Student) error {
			st.Waitlist, _ = models.RemoveRef(st.Waitlist, ref)
			return nil
		}); err != nil {
			return result, s.partial(err, "waitlist entry removed from index but not from student record")
		}
	}
	if err := s.notifier.Unsubscribe(ctx, username, models.ReasonWaitlist, ref); err != nil {
		s.logger.Warn("waitlist unsubscribe failed", zap.String("username", username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(err))
	}
	result.Outcome = models.OutcomeSuccess
	s.metrics.RecordOutcome("leave_waitlist", string(result.Outcome))
	return result, nil
}

// ChangeIndex moves username from one index of a course to another. The old
// seat is restored when the move fails.
func (s *EnrollmentService) ChangeIndex(ctx context.Context, username, courseCode, fromIndex string, req models.ChangeIndexRequest) (models.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.EnrollResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid index change payload")
	}
	username = models.NormalizeUsername(username)
	from := models.NewCourseRef(courseCode, fromIndex)
	to := models.NewCourseRef(courseCode, req.ToIndex)
	if from.IsZero() {
		return models.EnrollResult{}, appErrors.Clone(appErrors.ErrValidation, "course and index are required")
	}
	if from == to {
		return models.EnrollResult{}, appErrors.Clone(appErrors.ErrValidation, "target index must differ from the current one")
	}
	ctx, span := s.startSpan(ctx, "enrollment.change_index", username, to)
	defer span.End()

	releaseSections := s.locks.Acquire(sectionLockKey(from), sectionLockKey(to))
	defer releaseSections()
	releaseStudent := s.locks.Acquire(studentLockKey(username))
	defer releaseStudent()

	result, freed, err := s.changeIndexLocked(ctx, username, from, to)
	if err == nil && result.OK() && freed {
		releaseStudent()
		promoted, perr := s.promoter.Promote(ctx, from)
		if perr != nil {
			s.logger.Warn("waitlist promotion failed after index change", zap.String("course", from.CourseCode), zap.String("index", from.Index), zap.Error(perr))
		}
		result.Promoted = promoted
	}
	s.finish(span, "change_index", username, to, result.Outcome, err)
	return result, err
}

func (s *EnrollmentService) changeIndexLocked(ctx context.Context, username string, from, to models.CourseRef) (models.EnrollResult, bool, error) {
	result := models.EnrollResult{Ref: to}
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return result, false, err
	}
	result.CurrentAU = student.TotalAU
	if !student.Holds(from) {
		result.Outcome = models.OutcomeNotEnrolled
		return result, false, nil
	}
	if _, err := s.ledger.Get(ctx, to); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			result.Outcome = models.OutcomeInvalidTarget
			return result, false, nil
		}
		return result, false, err
	}

	freed, dropped, err := s.dropLocked(ctx, username, from)
	if err != nil {
		return result, false, err
	}
	if !dropped.OK() {
		dropped.Ref = to
		return dropped, false, nil
	}

	moved, err := s.enrollLocked(ctx, username, to)
	if err == nil && moved.OK() {
		return moved, freed, nil
	}
	if rerr := s.restoreLocked(ctx, username, from); rerr != nil {
		s.logger.Error("failed to restore index after unsuccessful change", zap.String("username", username), zap.String("course", from.CourseCode), zap.String("index", from.Index), zap.Error(rerr))
		return result, false, s.partial(rerr, "index change interrupted; student may have lost the original seat")
	}
	if err != nil {
		return result, false, err
	}
	restored, lerr := s.loadStudent(ctx, username)
	if lerr == nil {
		moved.CurrentAU = restored.TotalAU
	}
	return moved, false, nil
}

// enrollLocked applies the registration rules in precedence order. The caller
// holds the index and student locks.
func (s *EnrollmentService) enrollLocked(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	result := models.EnrollResult{Ref: ref}
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return result, err
	}
	result.CurrentAU = student.TotalAU

	if held, ok := student.EnrolledIn(ref.CourseCode); ok {
		result.Outcome = models.OutcomeAlreadyInCourse
		result.Ref = held
		return result, nil
	}

	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			result.Outcome = models.OutcomeInvalidTarget
			return result, nil
		}
		return result, err
	}

	held, err := s.enrolledSections(ctx, student)
	if err != nil {
		return result, err
	}
	currentAU := s.verifiedAU(student, held)
	result.CurrentAU = currentAU
	if currentAU+section.AU > s.auLimit {
		result.Outcome = models.OutcomeAULimitExceeded
		return result, nil
	}

	clash, err := s.clashWith(ctx, section, held)
	if err != nil {
		return result, err
	}
	if clash != nil {
		result.Outcome = models.OutcomeScheduleConflict
		s.logger.Info("enrollment clash",
			zap.String("username", username),
			zap.String("course", ref.CourseCode),
			zap.String("index", ref.Index),
			zap.Int64("lesson", clash.Candidate.ID),
			zap.Int64("clashes_with", clash.Existing.ID),
		)
		return result, nil
	}

	if section.Vacancy <= 0 {
		result.Outcome = models.OutcomeSectionFull
		return result, nil
	}

	if err := s.takeSeat(ctx, username, ref, section.AU+currentAU); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrSectionFull):
			result.Outcome = models.OutcomeSectionFull
			return result, nil
		case errors.Is(err, appErrors.ErrAlreadyEnrolled):
			result.Outcome = models.OutcomeAlreadyEnrolled
			return result, nil
		}
		return result, err
	}
	result.Outcome = models.OutcomeSuccess
	result.CurrentAU = currentAU + section.AU
	return result, nil
}

// restoreLocked puts username back into a seat they held moments before. AU
// and clash rules are not applied; the ledger still is.
func (s *EnrollmentService) restoreLocked(ctx context.Context, username string, ref models.CourseRef) error {
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return err
	}
	if student.Holds(ref) {
		return nil
	}
	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		return err
	}
	held, err := s.enrolledSections(ctx, student)
	if err != nil {
		return err
	}
	return s.takeSeat(ctx, username, ref, s.verifiedAU(student, held)+section.AU)
}

// takeSeat writes the ledger then the student record, undoing the ledger write
// if the student write fails.
func (s *EnrollmentService) takeSeat(ctx context.Context, username string, ref models.CourseRef, totalAU int) error {
	if _, err := s.ledger.AddEnrolled(ctx, ref, username); err != nil {
		return err
	}
	_, err := s.updateStudent(ctx, username, func(st *models.Student) error {
		st.Enrolled = append(st.Enrolled, ref)
		st.TotalAU = totalAU
		return nil
	})
	if err == nil {
		return nil
	}
	if _, _, uerr := s.ledger.RemoveEnrolled(ctx, ref, username); uerr != nil {
		s.logger.Error("failed to release seat after student update failure", zap.String("username", username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(uerr))
		return s.partial(err, "seat taken but student record not updated")
	}
	return err
}

// dropLocked releases the seat of username in ref. freed reports the zero to
// one vacancy transition.
func (s *EnrollmentService) dropLocked(ctx context.Context, username string, ref models.CourseRef) (bool, models.EnrollResult, error) {
	result := models.EnrollResult{Ref: ref}
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return false, result, err
	}
	result.CurrentAU = student.TotalAU

	freed, section, err := s.ledger.RemoveEnrolled(ctx, ref, username)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrNotEnrolled):
			result.Outcome = models.OutcomeNotEnrolled
			return false, result, nil
		case errors.Is(err, appErrors.ErrNotFound):
			result.Outcome = models.OutcomeInvalidTarget
			return false, result, nil
		}
		return false, result, err
	}

	remaining := student.Clone()
	remaining.Enrolled, _ = models.RemoveRef(remaining.Enrolled, ref)
	held, err := s.enrolledSections(ctx, &remaining)
	if err != nil {
		s.logger.Warn("falling back to stored AU total after drop", zap.String("username", username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(err))
		held = nil
	}
	totalAU := student.TotalAU - section.AU
	if held != nil {
		totalAU = s.verifiedAU(&models.Student{Username: username, TotalAU: totalAU}, held)
	}

	updated, err := s.updateStudent(ctx, username, func(st *models.Student) error {
		st.Enrolled, _ = models.RemoveRef(st.Enrolled, ref)
		st.TotalAU = totalAU
		return nil
	})
	if err != nil {
		if _, rerr := s.ledger.AddEnrolled(ctx, ref, username); rerr != nil {
			s.logger.Error("failed to return seat after student update failure", zap.String("username", username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(rerr))
			return false, result, s.partial(err, "seat released but student record not updated")
		}
		return false, result, err
	}
	result.Outcome = models.OutcomeSuccess
	result.CurrentAU = updated.TotalAU
	return freed, result, nil
}

func (s *EnrollmentService) joinWaitlistLocked(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	result := models.EnrollResult{Ref: ref}
	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return result, err
	}
	result.CurrentAU = student.TotalAU

	if held, ok := student.EnrolledIn(ref.CourseCode); ok {
		result.Outcome = models.OutcomeAlreadyInCourse
		result.Ref = held
		return result, nil
	}
	section, err := s.ledger.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			result.Outcome = models.OutcomeInvalidTarget
			return result, nil
		}
		return result, err
	}
	held, err := s.enrolledSections(ctx, student)
	if err != nil {
		return result, err
	}
	currentAU := s.verifiedAU(student, held)
	result.CurrentAU = currentAU
	if currentAU+section.AU > s.auLimit {
		result.Outcome = models.OutcomeAULimitExceeded
		return result, nil
	}
	if student.IsWaitlisted(ref) || section.WaitlistPosition(username) >= 0 {
		result.Outcome = models.OutcomeAlreadyWaitlisted
		return result, nil
	}

	if _, err := s.ledger.AddWaitlist(ctx, ref, username); err != nil {
		if errors.Is(err, appErrors.ErrAlreadyWaitlisted) {
			result.Outcome = models.OutcomeAlreadyWaitlisted
			return result, nil
		}
		return result, err
	}
	if _, err := s.updateStudent(ctx, username, func(st *models.Student) error {
		st.Waitlist = append(st.Waitlist, ref)
		return nil
	}); err != nil {
		if _, rerr := s.ledger.RemoveWaitlist(ctx, ref, username); rerr != nil {
			return result, s.partial(err, "waitlist entry added to index but not to student record")
		}
		return result, err
	}
	if err := s.notifier.Subscribe(ctx, username, models.ReasonWaitlist, ref); err != nil {
		s.logger.Warn("waitlist subscribe failed", zap.String("username", username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(err))
	}
	result.Outcome = models.OutcomeSuccess
	return result, nil
}

func (s *EnrollmentService) loadStudent(ctx context.Context, username string) (*models.Student, error) {
	student, err := s.students.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", username))
		}
		return nil, appErrors.Storage(err, "failed to load student")
	}
	return student, nil
}

func (s *EnrollmentService) updateStudent(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error) {
	student, err := s.students.Update(ctx, username, mutate)
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", username))
		default:
			s.logger.Error("student update failed", zap.String("username", username), zap.Error(err))
			return nil, appErrors.Storage(err, "failed to update student")
		}
	}
	return student, nil
}

// enrolledSections loads every index the student holds. Indexes that no longer
// exist are skipped.
func (s *EnrollmentService) enrolledSections(ctx context.Context, student *models.Student) ([]models.CourseSection, error) {
	out := make([]models.CourseSection, 0, len(student.Enrolled))
	for _, ref := range student.Enrolled {
		section, err := s.ledger.Get(ctx, ref)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				s.logger.Warn("student holds unknown index", zap.String("username", student.Username), zap.String("course", ref.CourseCode), zap.String("index", ref.Index))
				continue
			}
			return nil, err
		}
		out = append(out, *section)
	}
	return out, nil
}

// verifiedAU recomputes the AU load from the held indexes and logs drift from
// the stored total.
func (s *EnrollmentService) verifiedAU(student *models.Student, held []models.CourseSection) int {
	total := 0
	for _, section := range held {
		total += section.AU
	}
	if total != student.TotalAU {
		s.logger.Warn("stored AU total differs from enrolled indexes",
			zap.String("username", student.Username),
			zap.Int("stored", student.TotalAU),
			zap.Int("computed", total),
		)
	}
	return total
}

func (s *EnrollmentService) clashWith(ctx context.Context, candidate *models.CourseSection, held []models.CourseSection) (*Clash, error) {
	if len(candidate.LessonIDs) == 0 || len(held) == 0 {
		return nil, nil
	}
	var existingIDs []int64
	for _, section := range held {
		existingIDs = append(existingIDs, section.LessonIDs...)
	}
	if len(existingIDs) == 0 {
		return nil, nil
	}
	candidateLessons, err := s.lessons.FindByIDs(ctx, candidate.LessonIDs)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load lessons")
	}
	existing, err := s.lessons.FindByIDs(ctx, existingIDs)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load lessons")
	}
	clash, err := FindClash(candidateLessons, existing)
	if err != nil {
		s.logger.Warn("malformed lesson window", zap.String("course", candidate.CourseCode), zap.String("index", candidate.Index), zap.Error(err))
		return nil, err
	}
	return clash, nil
}

func (s *EnrollmentService) partial(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrPartialFailure.Code, appErrors.ErrPartialFailure.Status, message)
}

func (s *EnrollmentService) startSpan(ctx context.Context, name, username string, ref models.CourseRef) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("stars.username", username),
		attribute.String("stars.course", ref.CourseCode),
		attribute.String("stars.index", ref.Index),
	))
}

func (s *EnrollmentService) finish(span trace.Span, operation, username string, ref models.CourseRef, outcome models.EnrollOutcome, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordOutcome(operation, appErrors.FromError(err).Code)
		s.logger.Warn("registration failed",
			zap.String("operation", operation),
			zap.String("username", username),
			zap.String("course", ref.CourseCode),
			zap.String("index", ref.Index),
			zap.Error(err),
		)
		return
	}
	span.SetAttributes(attribute.String("stars.outcome", string(outcome)))
	s.metrics.RecordOutcome(operation, string(outcome))
	s.logger.Info("registration",
		zap.String("operation", operation),
		zap.String("username", username),
		zap.String("course", ref.CourseCode),
		zap.String("index", ref.Index),
		zap.String("outcome", string(outcome)),
	)
}
