package models

import "strings"

// Days accepted for lesson sessions.
var Weekdays = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// Lesson is one weekly session. Times are HHMM integers.
type Lesson struct {
	ID        int64  `db:"id" json:"id"`
	Location  string `db:"location" json:"location"`
	Day       string `db:"day_of_week" json:"day"`
	StartTime int    `db:"start_time" json:"start_time"`
	EndTime   int    `db:"end_time" json:"end_time"`
	ClassType string `db:"class_type" json:"class_type"`
}

// NormalizeDay upper-cases a day and shortens full names to three letters.
func NormalizeDay(day string) string {
	day = strings.ToUpper(strings.TrimSpace(day))
	if len(day) > 3 {
		day = day[:3]
	}
	return day
}

// ValidDay reports whether day is one of Weekdays.
func ValidDay(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// CreateLessonRequest schedules a session at a location.
type CreateLessonRequest struct {
	Location  string `json:"location" validate:"required,max=64"`
	Day       string `json:"day" validate:"required"`
	StartTime int    `json:"start_time" validate:"min=0,max=2359"`
	EndTime   int    `json:"end_time" validate:"min=0,max=2359"`
	ClassType string `json:"class_type" validate:"required,max=16"`
}

// RetimeLessonRequest moves an existing session.
type RetimeLessonRequest struct {
	Day       string `json:"day" validate:"required"`
	StartTime int    `json:"start_time" validate:"min=0,max=2359"`
	EndTime   int    `json:"end_time" validate:"min=0,max=2359"`
}

// TimetableEntry is one session row of a student's timetable.
type TimetableEntry struct {
	CourseCode string `json:"course_code"`
	AU         int    `json:"au"`
	Index      string `json:"index"`
	ClassType  string `json:"class_type"`
	Day        string `json:"day"`
	StartTime  int    `json:"start_time"`
	EndTime    int    `json:"end_time"`
	Location   string `json:"location"`
	Waitlisted bool   `json:"waitlisted"`
}
