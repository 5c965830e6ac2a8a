package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const studentColumns = `username, name, total_au, enrolled, waitlist, created_at, updated_at`

type studentRow struct {
	Username  string    `db:"username"`
	Name      string    `db:"name"`
	TotalAU   int       `db:"total_au"`
	Enrolled  string    `db:"enrolled"`
	Waitlist  string    `db:"waitlist"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row studentRow) toModel() (*models.Student, error) {
	enrolled, err := decodeRefs(row.Enrolled)
	if err != nil {
		return nil, fmt.Errorf("student %s enrolled: %w", row.Username, err)
	}
	waitlist, err := decodeRefs(row.Waitlist)
	if err != nil {
		return nil, fmt.Errorf("student %s waitlist: %w", row.Username, err)
	}
	return &models.Student{
		Username:  row.Username,
		Name:      row.Name,
		TotalAU:   row.TotalAU,
		Enrolled:  enrolled,
		Waitlist:  waitlist,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// StudentRepository persists student registration records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUsername returns a student. Absence is sql.ErrNoRows.
func (r *StudentRepository) FindByUsername(ctx context.Context, username string) (*models.Student, error) {
	query := r.db.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE username = ?`)
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, username); err != nil {
		return nil, err
	}
	return row.toModel()
}

// List returns every student ordered by username.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+studentColumns+` FROM students ORDER BY username`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		student, err := row.toModel()
		if err != nil {
			return nil, err
		}
		students = append(students, *student)
	}
	return students, nil
}

// Create inserts a student with empty registrations.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO students (username, name, total_au, enrolled, waitlist, created_at, updated_at)
VALUES (?, ?, 0, '[]', '[]', ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, student.Username, student.Name, now, now); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	student.TotalAU = 0
	student.Enrolled = []models.CourseRef{}
	student.Waitlist = []models.CourseRef{}
	student.CreatedAt, student.UpdatedAt = now, now
	return nil
}

// Update applies mutate to a locked student row. A mutate error is returned unchanged.
func (r *StudentRepository) Update(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error) {
	var updated *models.Student
	err := inTx(ctx, r.db, "update student", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE username = ?` + forUpdate(r.db))
		var row studentRow
		if err := tx.GetContext(ctx, &row, query, username); err != nil {
			return err
		}
		student, err := row.toModel()
		if err != nil {
			return err
		}
		if err := mutate(student); err != nil {
			return err
		}
		enrolled, err := encodeList(student.Enrolled)
		if err != nil {
			return err
		}
		waitlist, err := encodeList(student.Waitlist)
		if err != nil {
			return err
		}
		student.UpdatedAt = time.Now().UTC()
		stmt := tx.Rebind(`UPDATE students SET name = ?, total_au = ?, enrolled = ?, waitlist = ?, updated_at = ? WHERE username = ?`)
		if _, err := tx.ExecContext(ctx, stmt, student.Name, student.TotalAU, enrolled, waitlist, student.UpdatedAt, username); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
