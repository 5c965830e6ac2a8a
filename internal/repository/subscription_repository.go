package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

const subscriptionColumns = `id, username, reason, course_code, section_index, created_at`

// SubscriptionRepository stores notification subscriptions.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository constructs the repository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Subscribe registers sub. Re-subscribing the same tuple is a no-op.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO notification_subscriptions (` + subscriptionColumns + `)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (username, reason, course_code, section_index) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, sub.ID, sub.Username, sub.Reason, sub.CourseCode, sub.Index, sub.CreatedAt); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes a subscription if present.
func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, username, reason string, ref models.CourseRef) error {
	query := r.db.Rebind(`DELETE FROM notification_subscriptions WHERE username = ? AND reason = ? AND course_code = ? AND section_index = ?`)
	if _, err := r.db.ExecContext(ctx, query, username, reason, ref.CourseCode, ref.Index); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// ListByUsername returns a student's subscriptions.
func (r *SubscriptionRepository) ListByUsername(ctx context.Context, username string) ([]models.Subscription, error) {
	query := r.db.Rebind(`SELECT ` + subscriptionColumns + ` FROM notification_subscriptions WHERE username = ? ORDER BY created_at`)
	var subs []models.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, username); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// RenameCourse rewrites the course code of every subscription.
func (r *SubscriptionRepository) RenameCourse(ctx context.Context, oldCode, newCode string) error {
	query := r.db.Rebind(`UPDATE notification_subscriptions SET course_code = ? WHERE course_code = ?`)
	if _, err := r.db.ExecContext(ctx, query, newCode, oldCode); err != nil {
		return fmt.Errorf("rename subscription course: %w", err)
	}
	return nil
}

// RenameIndex rewrites the index of every subscription to ref.
func (r *SubscriptionRepository) RenameIndex(ctx context.Context, ref models.CourseRef, newIndex string) error {
	query := r.db.Rebind(`UPDATE notification_subscriptions SET section_index = ? WHERE course_code = ? AND section_index = ?`)
	if _, err := r.db.ExecContext(ctx, query, newIndex, ref.CourseCode, ref.Index); err != nil {
		return fmt.Errorf("rename subscription index: %w", err)
	}
	return nil
}
