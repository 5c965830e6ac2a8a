package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const (
	sectionColumns = `s.course_code, s.section_index, s.vacancy, s.enrolled, s.waitlist, s.lesson_ids,
        c.school, c.academic_units, c.vacancy AS course_vacancy, s.created_at, s.updated_at`
	sectionFrom = `FROM course_sections s JOIN courses c ON c.code = s.course_code`
)

type sectionRow struct {
	CourseCode    string    `db:"course_code"`
	Index         string    `db:"section_index"`
	Vacancy       int       `db:"vacancy"`
	Enrolled      string    `db:"enrolled"`
	Waitlist      string    `db:"waitlist"`
	LessonIDs     string    `db:"lesson_ids"`
	School        string    `db:"school"`
	AU            int       `db:"academic_units"`
	CourseVacancy int       `db:"course_vacancy"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (row sectionRow) toModel() (*models.CourseSection, error) {
	enrolled, err := decodeStrings(row.Enrolled)
	if err != nil {
		return nil, fmt.Errorf("section %s/%s enrolled: %w", row.CourseCode, row.Index, err)
	}
	waitlist, err := decodeStrings(row.Waitlist)
	if err != nil {
		return nil, fmt.Errorf("section %s/%s waitlist: %w", row.CourseCode, row.Index, err)
	}
	lessons, err := decodeInt64s(row.LessonIDs)
	if err != nil {
		return nil, fmt.Errorf("section %s/%s lessons: %w", row.CourseCode, row.Index, err)
	}
	return &models.CourseSection{
		CourseCode:    row.CourseCode,
		Index:         row.Index,
		School:        row.School,
		AU:            row.AU,
		CourseVacancy: row.CourseVacancy,
		Vacancy:       row.Vacancy,
		Enrolled:      enrolled,
		Waitlist:      waitlist,
		LessonIDs:     lessons,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// SectionRepository persists course indexes and their rosters.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByRef returns one index. Absence is sql.ErrNoRows.
func (r *SectionRepository) FindByRef(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error) {
	query := r.db.Rebind(`SELECT ` + sectionColumns + ` ` + sectionFrom + ` WHERE s.course_code = ? AND s.section_index = ?`)
	var row sectionRow
	if err := r.db.GetContext(ctx, &row, query, ref.CourseCode, ref.Index); err != nil {
		return nil, err
	}
	return row.toModel()
}

// List returns every index ordered by course then creation.
func (r *SectionRepository) List(ctx context.Context) ([]models.CourseSection, error) {
	query := `SELECT ` + sectionColumns + ` ` + sectionFrom + ` ORDER BY s.course_code, s.created_at, s.section_index`
	return r.selectSections(ctx, query)
}

// ListByCourse returns the indexes of one course.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseCode string) ([]models.CourseSection, error) {
	query := r.db.Rebind(`SELECT ` + sectionColumns + ` ` + sectionFrom + ` WHERE s.course_code = ? ORDER BY s.created_at, s.section_index`)
	return r.selectSections(ctx, query, courseCode)
}

func (r *SectionRepository) selectSections(ctx context.Context, query string, args ...interface{}) ([]models.CourseSection, error) {
	var rows []sectionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sections := make([]models.CourseSection, 0, len(rows))
	for _, row := range rows {
		section, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sections = append(sections, *section)
	}
	return sections, nil
}

// Create adds an index to an existing course and adds its vacancy to the course total.
func (r *SectionRepository) Create(ctx context.Context, section *models.CourseSection) error {
	now := time.Now().UTC()
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
	return inTx(ctx, r.db, "create section", func(tx *sqlx.Tx) error {
		return insertSection(ctx, tx, section, enrolled, waitlist, lessons, now)
	})
}

func insertSection(ctx context.Context, tx *sqlx.Tx, section *models.CourseSection, enrolled, waitlist, lessons string, now time.Time) error {
	insert := tx.Rebind(`INSERT INTO course_sections (course_code, section_index, vacancy, enrolled, waitlist, lesson_ids, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, section.CourseCode, section.Index, section.Vacancy, enrolled, waitlist, lessons, now, now); err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	bump := tx.Rebind(`UPDATE courses SET vacancy = vacancy + ?, updated_at = ? WHERE code = ?`)
	res, err := tx.ExecContext(ctx, bump, section.Vacancy, now, section.CourseCode)
	if err != nil {
		return fmt.Errorf("update course vacancy: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	section.CreatedAt, section.UpdatedAt = now, now
	return nil
}

// Update loads the index under a row lock, applies mutate and writes both the
// index and its course-level vacancy. A mutate error is returned unchanged.
func (r *SectionRepository) Update(ctx context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error) {
	var updated *models.CourseSection
	err := inTx(ctx, r.db, "update section", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + sectionColumns + ` ` + sectionFrom + ` WHERE s.course_code = ? AND s.section_index = ?` + forUpdate(r.db))
		var row sectionRow
		if err := tx.GetContext(ctx, &row, query, ref.CourseCode, ref.Index); err != nil {
			return err
		}
		section, err := row.toModel()
		if err != nil {
			return err
		}
		if err := mutate(section); err != nil {
			return err
		}

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
		now := time.Now().UTC()
		const updateSection = `UPDATE course_sections SET vacancy = ?, enrolled = ?, waitlist = ?, lesson_ids = ?, updated_at = ?
WHERE course_code = ? AND section_index = ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(updateSection), section.Vacancy, enrolled, waitlist, lessons, now, ref.CourseCode, ref.Index); err != nil {
			return fmt.Errorf("update section: %w", err)
		}
		if section.CourseVacancy != row.CourseVacancy {
			const updateCourse = `UPDATE courses SET vacancy = ?, updated_at = ? WHERE code = ?`
			if _, err := tx.ExecContext(ctx, tx.Rebind(updateCourse), section.CourseVacancy, now, ref.CourseCode); err != nil {
				return fmt.Errorf("update course vacancy: %w", err)
			}
		}
		section.UpdatedAt = now
		updated = section
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Rename changes an index identifier. Absence of ref is sql.ErrNoRows.
func (r *SectionRepository) Rename(ctx context.Context, ref models.CourseRef, newIndex string) error {
	query := r.db.Rebind(`UPDATE course_sections SET section_index = ?, updated_at = ? WHERE course_code = ? AND section_index = ?`)
	res, err := r.db.ExecContext(ctx, query, newIndex, time.Now().UTC(), ref.CourseCode, ref.Index)
	if err != nil {
		return fmt.Errorf("rename section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename section: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
