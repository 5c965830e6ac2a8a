package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

func TestCatalogCreateStudent(t *testing.T) {
	f := newRegistrationFixture(t)

	student, err := f.catalog.CreateStudent(f.ctx, models.CreateStudentRequest{Username: " Alice ", Name: "Alice Tan"})
	require.NoError(t, err)
	assert.Equal(t, "alice", student.Username)
	assert.Equal(t, 0, student.TotalAU)

	_, err = f.catalog.CreateStudent(f.ctx, models.CreateStudentRequest{Username: "ALICE", Name: "Again"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.catalog.CreateStudent(f.ctx, models.CreateStudentRequest{Username: "b"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	students, err := f.catalog.ListStudents(f.ctx)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestCatalogCreateCourse(t *testing.T) {
	f := newRegistrationFixture(t)
	lec := f.lesson("LT1", "MON", 830, 1030)

	course, sections, err := f.catalog.CreateCourse(f.ctx, models.CreateCourseRequest{
		Code:   "cz2002",
		School: "SCSE",
		AU:     3,
		Indexes: []models.CreateSectionRequest{
			{Index: "10101", Vacancy: 10, LessonIDs: []int64{lec}},
			{Index: "10102", Vacancy: 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "CZ2002", course.Code)
	assert.Equal(t, 15, course.Vacancy)
	require.Len(t, sections, 2)
	assert.Equal(t, []int64{lec}, f.section("CZ2002", "10101").LessonIDs)

	_, _, err = f.catalog.CreateCourse(f.ctx, models.CreateCourseRequest{Code: "CZ2002", School: "SCSE", AU: 3})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, _, err = f.catalog.CreateCourse(f.ctx, models.CreateCourseRequest{
		Code: "CZ2003", School: "SCSE", AU: 3,
		Indexes: []models.CreateSectionRequest{{Index: "1"}, {Index: "1"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = f.catalog.CreateCourse(f.ctx, models.CreateCourseRequest{
		Code: "CZ2003", School: "SCSE", AU: 3,
		Indexes: []models.CreateSectionRequest{{Index: "1", LessonIDs: []int64{999}}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = f.catalog.CreateCourse(f.ctx, models.CreateCourseRequest{Code: "CZ2003", School: "SCSE", AU: 13})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogAddSection(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 2})

	section, err := f.catalog.AddSection(f.ctx, "cz2002", models.CreateSectionRequest{Index: "10102", Vacancy: 4})
	require.NoError(t, err)
	assert.Equal(t, "10102", section.Index)
	assert.Equal(t, 6, section.CourseVacancy)

	_, err = f.catalog.AddSection(f.ctx, "CZ2002", models.CreateSectionRequest{Index: "10102", Vacancy: 1})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.catalog.AddSection(f.ctx, "XX9999", models.CreateSectionRequest{Index: "1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogRenameCourseCascades(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 1})
	f.course("CZ2003", 3, indexSpec{index: "1", vacancy: 1})
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	waitlist(t, f, "CZ2002", "10101", "bob")
	require.NoError(t, f.store.Subscriptions().Subscribe(f.ctx, &models.Subscription{Username: "bob", Reason: models.ReasonWaitlist, CourseCode: "CZ2002", Index: "10101"}))

	course, err := f.catalog.RenameCourse(f.ctx, "CZ2002", models.RenameRequest{NewValue: "sc2002"})
	require.NoError(t, err)
	assert.Equal(t, "SC2002", course.Code)

	renamed := courseRef("SC2002", "10101")
	assert.Equal(t, []models.CourseRef{renamed}, f.record("alice").Enrolled)
	assert.Equal(t, []models.CourseRef{renamed}, f.record("bob").Waitlist)
	assert.Equal(t, []string{"alice"}, f.section("SC2002", "10101").Enrolled)
	_, err = f.catalog.Section(f.ctx, courseRef("CZ2002", "10101"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	subs, err := f.store.Subscriptions().ListByUsername(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "SC2002", subs[0].CourseCode)

	_, err = f.catalog.RenameCourse(f.ctx, "SC2002", models.RenameRequest{NewValue: "CZ2003"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = f.catalog.RenameCourse(f.ctx, "CZ2002", models.RenameRequest{NewValue: "CZ2009"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogRenameIndexCascades(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 1}, indexSpec{index: "10102", vacancy: 1})
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	waitlist(t, f, "CZ2002", "10101", "bob")

	section, err := f.catalog.RenameIndex(f.ctx, courseRef("CZ2002", "10101"), models.RenameRequest{NewValue: "10199"})
	require.NoError(t, err)
	assert.Equal(t, "10199", section.Index)
	assert.Equal(t, []string{"bob"}, section.Waitlist)

	renamed := courseRef("CZ2002", "10199")
	assert.Equal(t, []models.CourseRef{renamed}, f.record("alice").Enrolled)
	assert.Equal(t, []models.CourseRef{renamed}, f.record("bob").Waitlist)

	_, err = f.catalog.RenameIndex(f.ctx, renamed, models.RenameRequest{NewValue: "10102"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = f.catalog.RenameIndex(f.ctx, courseRef("CZ2002", "10101"), models.RenameRequest{NewValue: "10103"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogUpdateAURecomputesTotals(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 5})
	f.course("CZ2003", 4, indexSpec{index: "1", vacancy: 5})
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	f.enroll("alice", "CZ2003", "1")
	f.enroll("bob", "CZ2003", "1")

	course, err := f.catalog.UpdateAU(f.ctx, "CZ2002", models.UpdateAURequest{AU: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, course.AU)
	assert.Equal(t, 9, f.record("alice").TotalAU)
	assert.Equal(t, 4, f.record("bob").TotalAU)

	school, err := f.catalog.UpdateSchool(f.ctx, "cz2002", models.UpdateSchoolRequest{School: "CCDS"})
	require.NoError(t, err)
	assert.Equal(t, "CCDS", school.School)

	_, err = f.catalog.UpdateAU(f.ctx, "XX0000", models.UpdateAURequest{AU: 1})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

// snapshotStudents serves List from a copy taken before later writes.
type snapshotStudents struct {
	*flakyStudents
	snapshot []models.Student
}

func (s *snapshotStudents) List(context.Context) ([]models.Student, error) {
	return s.snapshot, nil
}

func TestCatalogUpdateAUUsesCurrentRecord(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 5})
	f.course("CZ2003", 4, indexSpec{index: "1", vacancy: 5})
	f.student("alice")
	f.enroll("alice", "CZ2002", "10101")

	stale, err := f.store.Students().List(f.ctx)
	require.NoError(t, err)
	f.enroll("alice", "CZ2003", "1")

	students := &snapshotStudents{flakyStudents: f.students, snapshot: stale}
	catalog := NewCatalogService(f.store.Courses(), f.sections, students, f.store.Lessons(), f.store.Subscriptions(), f.ledger, nil, NewLockManager(), nil, nil)

	_, err = catalog.UpdateAU(f.ctx, "CZ2002", models.UpdateAURequest{AU: 5})
	require.NoError(t, err)
	assert.Equal(t, 9, f.record("alice").TotalAU)
}

func TestCatalogSetVacancyDoesNotPromote(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 0})
	f.student("bob")
	waitlist(t, f, "CZ2002", "10101", "bob")

	section, err := f.catalog.SetVacancy(f.ctx, courseRef("CZ2002", "10101"), models.UpdateVacancyRequest{Vacancy: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, section.Vacancy)
	assert.Equal(t, []string{"bob"}, section.Waitlist)
	assert.Empty(t, section.Enrolled)

	_, err = f.catalog.SetVacancy(f.ctx, courseRef("CZ2002", "10101"), models.UpdateVacancyRequest{Vacancy: -2})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogLessonsCheckVenue(t *testing.T) {
	f := newRegistrationFixture(t)

	first, err := f.catalog.CreateLesson(f.ctx, models.CreateLessonRequest{Location: "LT1", Day: "monday", StartTime: 900, EndTime: 1000, ClassType: "lec"})
	require.NoError(t, err)
	assert.Equal(t, "MON", first.Day)
	assert.Equal(t, "LEC", first.ClassType)

	_, err = f.catalog.CreateLesson(f.ctx, models.CreateLessonRequest{Location: "LT1", Day: "MON", StartTime: 930, EndTime: 1030, ClassType: "TUT"})
	assert.ErrorIs(t, err, appErrors.ErrScheduleConflict)

	second, err := f.catalog.CreateLesson(f.ctx, models.CreateLessonRequest{Location: "LT1", Day: "MON", StartTime: 1000, EndTime: 1100, ClassType: "TUT"})
	require.NoError(t, err)

	_, err = f.catalog.CreateLesson(f.ctx, models.CreateLessonRequest{Location: "LT2", Day: "MON", StartTime: 1100, EndTime: 1000, ClassType: "TUT"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	moved, err := f.catalog.RetimeLesson(f.ctx, first.ID, models.RetimeLessonRequest{Day: "MON", StartTime: 800, EndTime: 930})
	require.NoError(t, err)
	assert.Equal(t, 800, moved.StartTime)

	_, err = f.catalog.RetimeLesson(f.ctx, first.ID, models.RetimeLessonRequest{Day: "MON", StartTime: 1030, EndTime: 1130})
	assert.ErrorIs(t, err, appErrors.ErrScheduleConflict)

	_, err = f.catalog.RetimeLesson(f.ctx, 999, models.RetimeLessonRequest{Day: "MON", StartTime: 800, EndTime: 900})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 2, lessons: []int64{first.ID}})
	section, err := f.catalog.AttachLessons(f.ctx, courseRef("CZ2002", "10101"), models.AttachLessonsRequest{LessonIDs: []int64{first.ID, second.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID, second.ID}, section.LessonIDs)

	_, err = f.catalog.AttachLessons(f.ctx, courseRef("CZ2002", "10101"), models.AttachLessonsRequest{LessonIDs: []int64{404}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogRoster(t *testing.T) {
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 1})
	_, err := f.catalog.CreateStudent(f.ctx, models.CreateStudentRequest{Username: "alice", Name: "Alice Tan"})
	require.NoError(t, err)
	_, err = f.catalog.CreateStudent(f.ctx, models.CreateStudentRequest{Username: "bob", Name: "Bob Lim"})
	require.NoError(t, err)
	f.enroll("alice", "CZ2002", "10101")
	waitlist(t, f, "CZ2002", "10101", "bob")

	roster, err := f.catalog.Roster(f.ctx, courseRef("CZ2002", "10101"))
	require.NoError(t, err)
	assert.Equal(t, []models.RosterEntry{{Position: 1, Username: "alice", Name: "Alice Tan"}}, roster.Enrolled)
	assert.Equal(t, []models.RosterEntry{{Position: 1, Username: "bob", Name: "Bob Lim"}}, roster.Waitlist)
	assert.Equal(t, "SCSE", roster.School)
}
