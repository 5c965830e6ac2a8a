package models

import (
	"strings"
	"time"
)

// Student is a registered learner and their current registrations.
type Student struct {
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	TotalAU   int         `json:"total_au"`
	Enrolled  []CourseRef `json:"enrolled"`
	Waitlist  []CourseRef `json:"waitlist"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NormalizeUsername returns the case-insensitive student key.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// EnrolledIn returns the index the student holds for courseCode.
func (s *Student) EnrolledIn(courseCode string) (CourseRef, bool) {
	for _, ref := range s.Enrolled {
		if ref.CourseCode == courseCode {
			return ref, true
		}
	}
	return CourseRef{}, false
}

// Holds reports whether the student is enrolled in ref.
func (s *Student) Holds(ref CourseRef) bool {
	return containsRef(s.Enrolled, ref)
}

// IsWaitlisted reports whether ref is on the student's waitlist.
func (s *Student) IsWaitlisted(ref CourseRef) bool {
	return containsRef(s.Waitlist, ref)
}

// Clone returns a deep copy.
func (s Student) Clone() Student {
	s.Enrolled = append([]CourseRef(nil), s.Enrolled...)
	s.Waitlist = append([]CourseRef(nil), s.Waitlist...)
	return s
}

// RemoveRef drops the first occurrence of ref, keeping the order of the rest.
func RemoveRef(list []CourseRef, ref CourseRef) ([]CourseRef, bool) {
	for i, item := range list {
		if item == ref {
			out := make([]CourseRef, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}

// ReplaceRef rewrites every occurrence of from with to.
func ReplaceRef(list []CourseRef, from, to CourseRef) ([]CourseRef, bool) {
	changed := false
	for i := range list {
		if list[i] == from {
			list[i] = to
			changed = true
		}
	}
	return list, changed
}

func containsRef(list []CourseRef, ref CourseRef) bool {
	for _, item := range list {
		if item == ref {
			return true
		}
	}
	return false
}

// CreateStudentRequest registers a student record.
type CreateStudentRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
}
