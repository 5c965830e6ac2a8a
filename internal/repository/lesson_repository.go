package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const lessonColumns = `id, location, day_of_week, start_time, end_time, class_type`

// LessonRepository persists lesson sessions.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID returns a lesson. Absence is sql.ErrNoRows.
func (r *LessonRepository) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	query := r.db.Rebind(`SELECT ` + lessonColumns + ` FROM lessons WHERE id = ?`)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindByIDs returns the lessons with the given ids in id order. Unknown ids are skipped.
func (r *LessonRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Lesson, error) {
	if len(ids) == 0 {
		return []models.Lesson{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+lessonColumns+` FROM lessons WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build lesson query: %w", err)
	}
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find lessons: %w", err)
	}
	return lessons, nil
}

// ListByLocationDay returns the lessons booked at a location on one day.
func (r *LessonRepository) ListByLocationDay(ctx context.Context, location, day string) ([]models.Lesson, error) {
	query := r.db.Rebind(`SELECT ` + lessonColumns + ` FROM lessons WHERE location = ? AND day_of_week = ? ORDER BY start_time, id`)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, location, day); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// Create inserts a lesson and assigns its id.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	query := r.db.Rebind(`INSERT INTO lessons (location, day_of_week, start_time, end_time, class_type)
VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, lesson.Location, lesson.Day, lesson.StartTime, lesson.EndTime, lesson.ClassType).Scan(&lesson.ID); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// UpdateTime moves a lesson to a new day and window.
func (r *LessonRepository) UpdateTime(ctx context.Context, lesson *models.Lesson) error {
	query := r.db.Rebind(`UPDATE lessons SET day_of_week = ?, start_time = ?, end_time = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, lesson.Day, lesson.StartTime, lesson.EndTime, lesson.ID)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
