package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/models"
	"github.com/noah-isme/stars-api/internal/service"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/response"
)

type catalogService interface {
	CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	CreateCourse(ctx context.Context, req models.CreateCourseRequest) (*models.Course, []models.CourseSection, error)
	AddSection(ctx context.Context, courseCode string, req models.CreateSectionRequest) (*models.CourseSection, error)
	RenameCourse(ctx context.Context, oldCode string, req models.RenameRequest) (*models.Course, error)
	UpdateSchool(ctx context.Context, code string, req models.UpdateSchoolRequest) (*models.Course, error)
	UpdateAU(ctx context.Context, code string, req models.UpdateAURequest) (*models.Course, error)
	Section(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error)
	RenameIndex(ctx context.Context, ref models.CourseRef, req models.RenameRequest) (*models.CourseSection, error)
	SetVacancy(ctx context.Context, ref models.CourseRef, req models.UpdateVacancyRequest) (*models.CourseSection, error)
	AttachLessons(ctx context.Context, ref models.CourseRef, req models.AttachLessonsRequest) (*models.CourseSection, error)
	CreateLesson(ctx context.Context, req models.CreateLessonRequest) (*models.Lesson, error)
	RetimeLesson(ctx context.Context, id int64, req models.RetimeLessonRequest) (*models.Lesson, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, ref models.CourseRef, format models.ExportFormat) (*service.ExportResult, error)
}

// CatalogHandler exposes administrator endpoints for students, courses,
// indexes and lessons.
type CatalogHandler struct {
	catalog catalogService
	exports rosterExporter
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog catalogService, exports rosterExporter) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, exports: exports}
}

type createdCourse struct {
	Course  *models.Course         `json:"course"`
	Indexes []models.CourseSection `json:"indexes"`
}

// ListStudents godoc
// @Summary List students
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/students [get]
func (h *CatalogHandler) ListStudents(c *gin.Context) {
	students, err := h.catalog.ListStudents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// CreateStudent godoc
// @Summary Register a student record
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /admin/students [post]
func (h *CatalogHandler) CreateStudent(c *gin.Context) {
	var req models.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.catalog.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// CreateCourse godoc
// @Summary Create a course with its indexes
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /admin/courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req models.CreateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, sections, err := h.catalog.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, createdCourse{Course: course, Indexes: sections})
}

// AddSection godoc
// @Summary Add an index to a course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param payload body models.CreateSectionRequest true "Index payload"
// @Success 201 {object} response.Envelope
// @Router /admin/courses/{course}/sections [post]
func (h *CatalogHandler) AddSection(c *gin.Context) {
	var req models.CreateSectionRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.catalog.AddSection(c.Request.Context(), c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// RenameCourse godoc
// @Summary Rename a course code
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param payload body models.RenameRequest true "New code"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/{course}/code [put]
func (h *CatalogHandler) RenameCourse(c *gin.Context) {
	var req models.RenameRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.catalog.RenameCourse(c.Request.Context(), c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// UpdateSchool godoc
// @Summary Change a course's school
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param payload body models.UpdateSchoolRequest true "School"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/{course}/school [put]
func (h *CatalogHandler) UpdateSchool(c *gin.Context) {
	var req models.UpdateSchoolRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.catalog.UpdateSchool(c.Request.Context(), c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// UpdateAU godoc
// @Summary Change a course's academic units
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param payload body models.UpdateAURequest true "Academic units"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/{course}/au [put]
func (h *CatalogHandler) UpdateAU(c *gin.Context) {
	var req models.UpdateAURequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.catalog.UpdateAU(c.Request.Context(), c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Section godoc
// @Summary Index detail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Success 200 {object} response.Envelope
// @Router /admin/sections/{course}/{index} [get]
func (h *CatalogHandler) Section(c *gin.Context) {
	section, err := h.catalog.Section(c.Request.Context(), refFromPath(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// RenameIndex godoc
// @Summary Rename an index
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Param payload body models.RenameRequest true "New index"
// @Success 200 {object} response.Envelope
// @Router /admin/sections/{course}/{index}/index [put]
func (h *CatalogHandler) RenameIndex(c *gin.Context) {
	var req models.RenameRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.catalog.RenameIndex(c.Request.Context(), refFromPath(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// SetVacancy godoc
// @Summary Set an index's vacancy
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Param payload body models.UpdateVacancyRequest true "Vacancy"
// @Success 200 {object} response.Envelope
// @Router /admin/sections/{course}/{index}/vacancy [put]
func (h *CatalogHandler) SetVacancy(c *gin.Context) {
	var req models.UpdateVacancyRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.catalog.SetVacancy(c.Request.Context(), refFromPath(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// AttachLessons godoc
// @Summary Attach lessons to an index
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Param payload body models.AttachLessonsRequest true "Lesson ids"
// @Success 200 {object} response.Envelope
// @Router /admin/sections/{course}/{index}/lessons [post]
func (h *CatalogHandler) AttachLessons(c *gin.Context) {
	var req models.AttachLessonsRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.catalog.AttachLessons(c.Request.Context(), refFromPath(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Roster godoc
// @Summary Export an index roster
// @Tags Admin
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Param format query string false "json, csv or pdf"
// @Success 200 {file} file
// @Router /admin/sections/{course}/{index}/roster [get]
func (h *CatalogHandler) Roster(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.Roster(c.Request.Context(), refFromPath(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

// CreateLesson godoc
// @Summary Schedule a lesson session
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/lessons [post]
func (h *CatalogHandler) CreateLesson(c *gin.Context) {
	var req models.CreateLessonRequest
	if !bindJSON(c, &req) {
		return
	}
	lesson, err := h.catalog.CreateLesson(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// RetimeLesson godoc
// @Summary Move a lesson session
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson id"
// @Param payload body models.RetimeLessonRequest true "New time"
// @Success 200 {object} response.Envelope
// @Router /admin/lessons/{id}/time [put]
func (h *CatalogHandler) RetimeLesson(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lesson id"))
		return
	}
	var req models.RetimeLessonRequest
	if !bindJSON(c, &req) {
		return
	}
	lesson, err := h.catalog.RetimeLesson(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}
