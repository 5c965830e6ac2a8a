package models

// CreateCourseRequest creates a course with its initial indexes.
type CreateCourseRequest struct {
	Code    string                 `json:"code" validate:"required,max=16"`
	School  string                 `json:"school" validate:"required,max=32"`
	AU      int                    `json:"au" validate:"min=0,max=12"`
	Indexes []CreateSectionRequest `json:"indexes" validate:"dive"`
}

// CreateSectionRequest adds an index with an initial vacancy.
type CreateSectionRequest struct {
	Index     string  `json:"index" validate:"required,max=16"`
	Vacancy   int     `json:"vacancy" validate:"min=0"`
	LessonIDs []int64 `json:"lesson_ids"`
}

// RenameRequest carries a new identifier.
type RenameRequest struct {
	NewValue string `json:"new_value" validate:"required,max=16"`
}

// UpdateSchoolRequest re-homes a course.
type UpdateSchoolRequest struct {
	School string `json:"school" validate:"required,max=32"`
}

// UpdateAURequest changes a course's academic units.
type UpdateAURequest struct {
	AU int `json:"au" validate:"min=0,max=12"`
}

// UpdateVacancyRequest sets an index's absolute vacancy.
type UpdateVacancyRequest struct {
	Vacancy int `json:"vacancy"`
}

// AttachLessonsRequest appends sessions to an index.
type AttachLessonsRequest struct {
	LessonIDs []int64 `json:"lesson_ids" validate:"required,min=1"`
}

// RosterEntry is one roster line.
type RosterEntry struct {
	Position int    `json:"position"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Roster lists the enrolled and waitlisted students of an index.
type Roster struct {
	CourseCode string        `json:"course_code"`
	Index      string        `json:"index"`
	School     string        `json:"school"`
	AU         int           `json:"au"`
	Vacancy    int           `json:"vacancy"`
	Enrolled   []RosterEntry `json:"enrolled"`
	Waitlist   []RosterEntry `json:"waitlist"`
}

// ExportFormat selects a roster export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
