package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stars-api/internal/models"
)

// CourseStore persists course-level fields.
type CourseStore interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course, sections []models.CourseSection) error
	Update(ctx context.Context, code string, mutate func(*models.Course) error) (*models.Course, error)
	Rename(ctx context.Context, oldCode, newCode string) error
}

// SectionStore persists indexes with their rosters and waitlists.
type SectionStore interface {
	FindByRef(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error)
	List(ctx context.Context) ([]models.CourseSection, error)
	ListByCourse(ctx context.Context, courseCode string) ([]models.CourseSection, error)
	Create(ctx context.Context, section *models.CourseSection) error
	Update(ctx context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error)
	Rename(ctx context.Context, ref models.CourseRef, newIndex string) error
}

// StudentStore persists student records.
type StudentStore interface {
	FindByUsername(ctx context.Context, username string) (*models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error)
}

// LessonStore persists weekly sessions.
type LessonStore interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.Lesson, error)
	ListByLocationDay(ctx context.Context, location, day string) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	UpdateTime(ctx context.Context, lesson *models.Lesson) error
}

// SubscriptionStore persists notification subscriptions.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, sub *models.Subscription) error
	Unsubscribe(ctx context.Context, username, reason string, ref models.CourseRef) error
	ListByUsername(ctx context.Context, username string) ([]models.Subscription, error)
	RenameCourse(ctx context.Context, oldCode, newCode string) error
	RenameIndex(ctx context.Context, ref models.CourseRef, newIndex string) error
}

// NotificationStore persists inbox entries.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUsername(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

// Stores bundles one Record Store backend.
type Stores struct {
	Courses       CourseStore
	Sections      SectionStore
	Students      StudentStore
	Lessons       LessonStore
	Subscriptions SubscriptionStore
	Notifications NotificationStore
	// Ping reports backend health for readiness probes.
	Ping func(ctx context.Context) error
}

// NewMemoryStores wires a fresh process-local store.
func NewMemoryStores() Stores {
	m := NewMemoryStore()
	return Stores{
		Courses:       m.Courses(),
		Sections:      m.Sections(),
		Students:      m.Students(),
		Lessons:       m.Lessons(),
		Subscriptions: m.Subscriptions(),
		Notifications: m.Notifications(),
		Ping:          func(context.Context) error { return nil },
	}
}

// NewSQLStores wires the sqlx repositories over db.
func NewSQLStores(db *sqlx.DB) Stores {
	return Stores{
		Courses:       NewCourseRepository(db),
		Sections:      NewSectionRepository(db),
		Students:      NewStudentRepository(db),
		Lessons:       NewLessonRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Notifications: NewNotificationRepository(db),
		Ping:          db.PingContext,
	}
}

var (
	_ CourseStore       = (*CourseRepository)(nil)
	_ CourseStore       = (*MemoryCourses)(nil)
	_ SectionStore      = (*SectionRepository)(nil)
	_ SectionStore      = (*MemorySections)(nil)
	_ StudentStore      = (*StudentRepository)(nil)
	_ StudentStore      = (*MemoryStudents)(nil)
	_ LessonStore       = (*LessonRepository)(nil)
	_ LessonStore       = (*MemoryLessons)(nil)
	_ SubscriptionStore = (*SubscriptionRepository)(nil)
	_ SubscriptionStore = (*MemorySubscriptions)(nil)
	_ NotificationStore = (*NotificationRepository)(nil)
	_ NotificationStore = (*MemoryNotifications)(nil)
)
