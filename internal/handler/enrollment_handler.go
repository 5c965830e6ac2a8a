package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/models"
	"github.com/noah-isme/stars-api/pkg/response"
)

type enrollmentService interface {
	Me(ctx context.Context, username string) (*models.Student, error)
	Timetable(ctx context.Context, username string) ([]models.TimetableEntry, error)
	Enroll(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error)
	Drop(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error)
	ChangeIndex(ctx context.Context, username, courseCode, fromIndex string, req models.ChangeIndexRequest) (models.EnrollResult, error)
	Swap(ctx context.Context, username string, req models.SwapRequest) (models.SwapResult, error)
	JoinWaitlist(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error)
	LeaveWaitlist(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error)
	Vacancy(ctx context.Context, ref models.CourseRef) (*models.Vacancy, error)
	Courses(ctx context.Context) ([]models.CourseIndexes, error)
}

type inboxReader interface {
	Inbox(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error)
}

// EnrollmentHandler exposes the student registration endpoints. The acting
// student is always the token subject.
type EnrollmentHandler struct {
	enrollments enrollmentService
	inbox       inboxReader
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService, inbox inboxReader) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, inbox: inbox}
}

// Me godoc
// @Summary Current student record
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *EnrollmentHandler) Me(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	student, err := h.enrollments.Me(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Timetable godoc
// @Summary Weekly timetable of enrolled indexes
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/timetable [get]
func (h *EnrollmentHandler) Timetable(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	entries, err := h.enrollments.Timetable(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Enroll godoc
// @Summary Enroll in an index
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.EnrollRequest true "Target index"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), username, req)
	writeEnrollResult(c, http.StatusCreated, result, err)
}

// Drop godoc
// @Summary Drop an enrolled index
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Success 200 {object} response.Envelope
// @Router /me/enrollments/{course}/{index} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	result, err := h.enrollments.Drop(c.Request.Context(), username, refFromPath(c))
	writeEnrollResult(c, http.StatusOK, result, err)
}

// ChangeIndex godoc
// @Summary Move to another index of the same course
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Current index"
// @Param payload body models.ChangeIndexRequest true "Target index"
// @Success 200 {object} response.Envelope
// @Router /me/enrollments/{course}/{index}/index [put]
func (h *EnrollmentHandler) ChangeIndex(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	var req models.ChangeIndexRequest
	if !bindJSON(c, &req) {
		return
	}
	ref := refFromPath(c)
	result, err := h.enrollments.ChangeIndex(c.Request.Context(), username, ref.CourseCode, ref.Index, req)
	writeEnrollResult(c, http.StatusOK, result, err)
}

// Swap godoc
// @Summary Swap indexes with another student
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SwapRequest true "Swap payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/swaps [post]
func (h *EnrollmentHandler) Swap(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	var req models.SwapRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.enrollments.Swap(c.Request.Context(), username, req)
	writeSwapResult(c, result, err)
}

// JoinWaitlist godoc
// @Summary Join an index waitlist
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.EnrollRequest true "Target index"
// @Success 201 {object} response.Envelope
// @Router /me/waitlist [post]
func (h *EnrollmentHandler) JoinWaitlist(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.enrollments.JoinWaitlist(c.Request.Context(), username, req)
	writeEnrollResult(c, http.StatusCreated, result, err)
}

// LeaveWaitlist godoc
// @Summary Leave an index waitlist
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Success 200 {object} response.Envelope
// @Router /me/waitlist/{course}/{index} [delete]
func (h *EnrollmentHandler) LeaveWaitlist(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	result, err := h.enrollments.LeaveWaitlist(c.Request.Context(), username, refFromPath(c))
	writeEnrollResult(c, http.StatusOK, result, err)
}

// Notifications godoc
// @Summary Notification inbox
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/notifications [get]
func (h *EnrollmentHandler) Notifications(c *gin.Context) {
	username, ok := actingUsername(c)
	if !ok {
		return
	}
	filter := models.NotificationFilter{
		Username: username,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	items, pagination, err := h.inbox.Inbox(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Courses godoc
// @Summary List courses and their indexes
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *EnrollmentHandler) Courses(c *gin.Context) {
	courses, err := h.enrollments.Courses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Vacancy godoc
// @Summary Seat availability of an index
// @Tags Catalog
// @Produce json
// @Param course path string true "Course code"
// @Param index path string true "Index"
// @Success 200 {object} response.Envelope
// @Router /sections/{course}/{index}/vacancy [get]
func (h *EnrollmentHandler) Vacancy(c *gin.Context) {
	vacancy, err := h.enrollments.Vacancy(c.Request.Context(), refFromPath(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacancy, nil)
}
