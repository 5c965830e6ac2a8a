package models

import "time"

// Subscription reasons.
const (
	ReasonWaitlist = "waitlist"
)

// Subscription registers a student for notifications about one index.
type Subscription struct {
	ID         string    `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Reason     string    `db:"reason" json:"reason"`
	CourseCode string    `db:"course_code" json:"course_code"`
	Index      string    `db:"section_index" json:"index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Notification is an inbox entry delivered to a student.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Reason    string    `db:"reason" json:"reason"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter pages a student's inbox.
type NotificationFilter struct {
	Username string
	Page     int
	PageSize int
}
