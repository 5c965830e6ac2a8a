package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const notificationColumns = `id, username, reason, subject, body, created_at`

// NotificationRepository stores inbox notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create appends an inbox entry.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.Username, n.Reason, n.Subject, n.Body, n.CreatedAt); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUsername pages a student's inbox, newest first.
func (r *NotificationRepository) ListByUsername(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM notifications WHERE username = ? ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		notificationColumns, size, (page-1)*size))
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.Username); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE username = ?`), filter.Username); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
