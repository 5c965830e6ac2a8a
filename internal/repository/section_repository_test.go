package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stars-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var sectionRowColumns = []string{"course_code", "section_index", "vacancy", "enrolled", "waitlist", "lesson_ids", "school", "academic_units", "course_vacancy", "created_at", "updated_at"}

func TestSectionRepositoryFindByRef(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.course_code = $1 AND s.section_index = $2")).
		WithArgs("CZ2002", "10101").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("CZ2002", "10101", 1, `["alice"]`, `["bob","carol"]`, `[3,4]`, "SCSE", 3, 5, now, now))

	section, err := repo.FindByRef(context.Background(), models.CourseRef{CourseCode: "CZ2002", Index: "10101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, section.Enrolled)
	assert.Equal(t, []string{"bob", "carol"}, section.Waitlist)
	assert.Equal(t, []int64{3, 4}, section.LessonIDs)
	assert.Equal(t, 5, section.CourseVacancy)
	assert.Equal(t, 2, section.Capacity())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryFindByRefMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery("FROM course_sections s JOIN courses c").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByRef(context.Background(), models.CourseRef{CourseCode: "CZ9999", Index: "1"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSectionRepositoryUpdateWritesSectionAndCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.course_code = $1 AND s.section_index = $2 FOR UPDATE")).
		WithArgs("CZ2002", "10101").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("CZ2002", "10101", 1, `[]`, `[]`, `[]`, "SCSE", 3, 4, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET vacancy = $1, enrolled = $2, waitlist = $3, lesson_ids = $4, updated_at = $5")).
		WithArgs(0, `["alice"]`, `[]`, `[]`, sqlmock.AnyArg(), "CZ2002", "10101").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET vacancy = $1, updated_at = $2 WHERE code = $3")).
		WithArgs(3, sqlmock.AnyArg(), "CZ2002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), models.CourseRef{CourseCode: "CZ2002", Index: "10101"}, func(s *models.CourseSection) error {
		s.Enrolled = append(s.Enrolled, "alice")
		s.Vacancy--
		s.CourseVacancy--
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Vacancy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryUpdateMutatorErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("CZ2002", "10101", 0, `["alice"]`, `[]`, `[]`, "SCSE", 3, 0, now, now))
	mock.ExpectRollback()

	full := errors.New("full")
	_, err := repo.Update(context.Background(), models.CourseRef{CourseCode: "CZ2002", Index: "10101"}, func(*models.CourseSection) error {
		return full
	})
	assert.Same(t, full, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreateBumpsCourseVacancy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_sections")).
		WithArgs("CZ2002", "10102", 30, `[]`, `[]`, `[1]`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET vacancy = vacancy + $1, updated_at = $2 WHERE code = $3")).
		WithArgs(30, sqlmock.AnyArg(), "CZ2002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), &models.CourseSection{CourseCode: "CZ2002", Index: "10102", Vacancy: 30, LessonIDs: []int64{1}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryRenameMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET section_index = $1")).
		WithArgs("20202", sqlmock.AnyArg(), "CZ2002", "10101").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Rename(context.Background(), models.CourseRef{CourseCode: "CZ2002", Index: "10101"}, "20202")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
