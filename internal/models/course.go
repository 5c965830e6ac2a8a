package models

import (
	"strings"
	"time"
)

// CourseRef identifies one index of a course.
type CourseRef struct {
	CourseCode string `json:"course_code"`
	Index      string `json:"index"`
}

// NewCourseRef builds a normalised reference. Course codes are upper-cased.
func NewCourseRef(courseCode, index string) CourseRef {
	return CourseRef{CourseCode: NormalizeCourseCode(courseCode), Index: strings.TrimSpace(index)}
}

// NormalizeCourseCode trims and upper-cases a course code.
func NormalizeCourseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// String renders the reference as COURSE/INDEX.
func (r CourseRef) String() string {
	return r.CourseCode + "/" + r.Index
}

// IsZero reports whether either component is missing.
func (r CourseRef) IsZero() bool {
	return r.CourseCode == "" || r.Index == ""
}

// Course holds the course-level fields shared by all of its indexes.
type Course struct {
	Code      string    `db:"code" json:"code"`
	School    string    `db:"school" json:"school"`
	AU        int       `db:"academic_units" json:"au"`
	Vacancy   int       `db:"vacancy" json:"vacancy"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseSection is one index of a course together with its course-level fields.
// Capacity is implicit: Vacancy + len(Enrolled).
type CourseSection struct {
	CourseCode    string    `json:"course_code"`
	Index         string    `json:"index"`
	School        string    `json:"school"`
	AU            int       `json:"au"`
	CourseVacancy int       `json:"course_vacancy"`
	Vacancy       int       `json:"vacancy"`
	Enrolled      []string  `json:"enrolled"`
	Waitlist      []string  `json:"waitlist"`
	LessonIDs     []int64   `json:"lesson_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Ref returns the section key.
func (s *CourseSection) Ref() CourseRef {
	return CourseRef{CourseCode: s.CourseCode, Index: s.Index}
}

// Capacity returns the implicit seat count.
func (s *CourseSection) Capacity() int {
	return s.Vacancy + len(s.Enrolled)
}

// EnrolledPosition returns the roster position of username or -1.
func (s *CourseSection) EnrolledPosition(username string) int {
	return indexOf(s.Enrolled, username)
}

// WaitlistPosition returns the waitlist position of username or -1.
func (s *CourseSection) WaitlistPosition(username string) int {
	return indexOf(s.Waitlist, username)
}

// Clone returns a deep copy.
func (s CourseSection) Clone() CourseSection {
	s.Enrolled = append([]string(nil), s.Enrolled...)
	s.Waitlist = append([]string(nil), s.Waitlist...)
	s.LessonIDs = append([]int64(nil), s.LessonIDs...)
	return s
}

// CourseIndexes lists a course with its index identifiers in creation order.
type CourseIndexes struct {
	CourseCode string   `json:"course_code"`
	School     string   `json:"school"`
	AU         int      `json:"au"`
	Indexes    []string `json:"indexes"`
}

// Vacancy summarises seat availability for one index.
type Vacancy struct {
	CourseCode     string `json:"course_code"`
	Index          string `json:"index"`
	Vacancy        int    `json:"vacancy"`
	Capacity       int    `json:"capacity"`
	CourseVacancy  int    `json:"course_vacancy"`
	WaitlistLength int    `json:"waitlist_length"`
}

func indexOf(list []string, value string) int {
	for i, item := range list {
		if item == value {
			return i
		}
	}
	return -1
}
