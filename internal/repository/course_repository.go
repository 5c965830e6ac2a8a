package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const courseColumns = `code, school, academic_units, vacancy, created_at, updated_at`

// CourseRepository persists course-level fields.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByCode returns a course. Absence is sql.ErrNoRows.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := r.db.Rebind(`SELECT ` + courseColumns + ` FROM courses WHERE code = ?`)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns every course ordered by code.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT `+courseColumns+` FROM courses ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create inserts a course and its initial indexes. The course vacancy is the
// sum of the index vacancies.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, sections []models.CourseSection) error {
	now := time.Now().UTC()
	return inTx(ctx, r.db, "create course", func(tx *sqlx.Tx) error {
		insert := tx.Rebind(`INSERT INTO courses (code, school, academic_units, vacancy, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert, course.Code, course.School, course.AU, now, now); err != nil {
			return fmt.Errorf("insert course: %w", err)
		}
		course.Vacancy = 0
		for i := range sections {
			section := &sections[i]
			section.CourseCode = course.Code
			enrolled, err := encodeList(section.Enrolled)
			if err != nil {
				return err
			}
			waitlist, err := encodeList(section.Waitlist)
			if err != nil {
				return err
			}
			lessons, err := encodeList(section.LessonIDs)
			if err != nil {
				return err
			}
			if err := insertSection(ctx, tx, section, enrolled, waitlist, lessons, now); err != nil {
				return err
			}
			course.Vacancy += section.Vacancy
		}
		course.CreatedAt, course.UpdatedAt = now, now
		return nil
	})
}

// Update applies mutate to a locked course row. School, AU and vacancy are written.
func (r *CourseRepository) Update(ctx context.Context, code string, mutate func(*models.Course) error) (*models.Course, error) {
	var updated models.Course
	err := inTx(ctx, r.db, "update course", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + courseColumns + ` FROM courses WHERE code = ?` + forUpdate(r.db))
		if err := tx.GetContext(ctx, &updated, query, code); err != nil {
			return err
		}
		if err := mutate(&updated); err != nil {
			return err
		}
		updated.UpdatedAt = time.Now().UTC()
		stmt := tx.Rebind(`UPDATE courses SET school = ?, academic_units = ?, vacancy = ?, updated_at = ? WHERE code = ?`)
		if _, err := tx.ExecContext(ctx, stmt, updated.School, updated.AU, updated.Vacancy, updated.UpdatedAt, code); err != nil {
			return fmt.Errorf("update course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Rename changes a course code; indexes follow through ON UPDATE CASCADE.
func (r *CourseRepository) Rename(ctx context.Context, oldCode, newCode string) error {
	query := r.db.Rebind(`UPDATE courses SET code = ?, updated_at = ? WHERE code = ?`)
	res, err := r.db.ExecContext(ctx, query, newCode, time.Now().UTC(), oldCode)
	if err != nil {
		return fmt.Errorf("rename course: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename course: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
