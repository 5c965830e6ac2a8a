package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stars-api/internal/middleware"
	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

type enrollmentServiceMock struct {
	result       models.EnrollResult
	swapResult   models.SwapResult
	err          error
	lastUsername string
	lastRef      models.CourseRef
	lastFrom     string
	lastChange   models.ChangeIndexRequest
	lastFilter   models.NotificationFilter
}

func (m *enrollmentServiceMock) Me(ctx context.Context, username string) (*models.Student, error) {
	m.lastUsername = username
	return &models.Student{Username: username}, m.err
}

func (m *enrollmentServiceMock) Timetable(ctx context.Context, username string) ([]models.TimetableEntry, error) {
	m.lastUsername = username
	return nil, m.err
}

func (m *enrollmentServiceMock) Enroll(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error) {
	m.lastUsername = username
	m.lastRef = req.Ref()
	return m.result, m.err
}

func (m *enrollmentServiceMock) Drop(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	m.lastUsername = username
	m.lastRef = ref
	return m.result, m.err
}

func (m *enrollmentServiceMock) ChangeIndex(ctx context.Context, username, courseCode, fromIndex string, req models.ChangeIndexRequest) (models.EnrollResult, error) {
	m.lastUsername = username
	m.lastRef = models.NewCourseRef(courseCode, fromIndex)
	m.lastFrom = fromIndex
	m.lastChange = req
	return m.result, m.err
}

func (m *enrollmentServiceMock) Swap(ctx context.Context, username string, req models.SwapRequest) (models.SwapResult, error) {
	m.lastUsername = username
	return m.swapResult, m.err
}

func (m *enrollmentServiceMock) JoinWaitlist(ctx context.Context, username string, req models.EnrollRequest) (models.EnrollResult, error) {
	m.lastUsername = username
	m.lastRef = req.Ref()
	return m.result, m.err
}

func (m *enrollmentServiceMock) LeaveWaitlist(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error) {
	m.lastUsername = username
	m.lastRef = ref
	return m.result, m.err
}

func (m *enrollmentServiceMock) Vacancy(ctx context.Context, ref models.CourseRef) (*models.Vacancy, error) {
	m.lastRef = ref
	return &models.Vacancy{CourseCode: ref.CourseCode, Index: ref.Index, Vacancy: 3}, m.err
}

func (m *enrollmentServiceMock) Courses(ctx context.Context) ([]models.CourseIndexes, error) {
	return []models.CourseIndexes{{CourseCode: "CZ2001", Indexes: []string{"10101"}}}, m.err
}

func (m *enrollmentServiceMock) Inbox(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	m.lastFilter = filter
	return nil, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, m.err
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func studentContext(method, target string, body interface{}, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, _ := json.Marshal(v)
		reader = bytes.NewReader(payload)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	claims := &models.AccessClaims{Name: "Alice"}
	claims.Subject = "alice"
	c.Set(middleware.ContextClaimsKey, claims)
	return c, w
}

func TestEnrollmentHandlerEnrollSuccess(t *testing.T) {
	svc := &enrollmentServiceMock{result: models.EnrollResult{Outcome: models.OutcomeSuccess, CurrentAU: 3}}
	h := NewEnrollmentHandler(svc, svc)

	c, w := studentContext(http.MethodPost, "/me/enrollments", models.EnrollRequest{CourseCode: "cz2001", Index: "10101"}, nil)
	h.Enroll(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", svc.lastUsername)
	assert.Equal(t, models.NewCourseRef("CZ2001", "10101"), svc.lastRef)
}

func TestEnrollmentHandlerOutcomeMapping(t *testing.T) {
	cases := []struct {
		outcome models.EnrollOutcome
		status  int
		code    string
	}{
		{models.OutcomeSectionFull, http.StatusConflict, "SECTION_FULL"},
		{models.OutcomeAULimitExceeded, http.StatusConflict, "AU_LIMIT_EXCEEDED"},
		{models.OutcomeScheduleConflict, http.StatusConflict, "SCHEDULE_CONFLICT"},
		{models.OutcomeAlreadyInCourse, http.StatusConflict, "ALREADY_IN_COURSE"},
		{models.OutcomeInvalidTarget, http.StatusNotFound, "INVALID_TARGET"},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			svc := &enrollmentServiceMock{result: models.EnrollResult{Outcome: tc.outcome, CurrentAU: 20}}
			h := NewEnrollmentHandler(svc, svc)

			c, w := studentContext(http.MethodPost, "/me/enrollments", models.EnrollRequest{CourseCode: "CZ2001", Index: "10101"}, nil)
			h.Enroll(c)

			require.Equal(t, tc.status, w.Code)
			env := decodeEnvelope(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Contains(t, env.Meta, "result")
			if tc.outcome == models.OutcomeSectionFull {
				assert.Equal(t, true, env.Meta["waitlist_available"])
			} else {
				assert.NotContains(t, env.Meta, "waitlist_available")
			}
			if tc.outcome == models.OutcomeAULimitExceeded {
				assert.Contains(t, env.Error.Message, "20 AU")
			}
		})
	}
}

func TestEnrollmentHandlerInvalidBody(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc, svc)

	c, w := studentContext(http.MethodPost, "/me/enrollments", `{"course_code":`, nil)
	h.Enroll(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastUsername)
}

func TestEnrollmentHandlerRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc, svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/me", nil)
	h.Me(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerServiceError(t *testing.T) {
	svc := &enrollmentServiceMock{err: appErrors.Clone(appErrors.ErrStorageFailure, "store down")}
	h := NewEnrollmentHandler(svc, svc)

	c, w := studentContext(http.MethodDelete, "/me/enrollments/CZ2001/10101", nil, gin.Params{{Key: "course", Value: "CZ2001"}, {Key: "index", Value: "10101"}})
	h.Drop(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "STORAGE_FAILURE", decodeEnvelope(t, w).Error.Code)
}

func TestEnrollmentHandlerChangeIndexUsesPath(t *testing.T) {
	svc := &enrollmentServiceMock{result: models.EnrollResult{Outcome: models.OutcomeSuccess}}
	h := NewEnrollmentHandler(svc, svc)

	params := gin.Params{{Key: "course", Value: "cz2001"}, {Key: "index", Value: "10101"}}
	c, w := studentContext(http.MethodPut, "/me/enrollments/cz2001/10101/index", models.ChangeIndexRequest{ToIndex: "10102"}, params)
	h.ChangeIndex(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CZ2001", svc.lastRef.CourseCode)
	assert.Equal(t, "10101", svc.lastFrom)
	assert.Equal(t, "10102", svc.lastChange.ToIndex)
}

func TestEnrollmentHandlerSwapOutcomes(t *testing.T) {
	cases := map[models.SwapOutcome]int{
		models.SwapSuccess:          http.StatusOK,
		models.SwapOwnNotEnrolled:   http.StatusNotFound,
		models.SwapPeerNotEnrolled:  http.StatusNotFound,
		models.SwapDifferentCourses: http.StatusBadRequest,
		models.SwapFailed:           http.StatusConflict,
		models.SwapPartialFailure:   http.StatusInternalServerError,
	}
	for outcome, status := range cases {
		svc := &enrollmentServiceMock{swapResult: models.SwapResult{Outcome: outcome}}
		h := NewEnrollmentHandler(svc, svc)

		req := models.SwapRequest{CourseCode: "CZ2001", OwnIndex: "10101", PeerUsername: "bob", PeerIndex: "10102"}
		c, w := studentContext(http.MethodPost, "/me/swaps", req, nil)
		h.Swap(c)

		assert.Equal(t, status, w.Code, string(outcome))
	}
}

func TestEnrollmentHandlerNotificationsPaging(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc, svc)

	c, w := studentContext(http.MethodGet, "/me/notifications?page=2&limit=5", nil, nil)
	h.Notifications(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.NotificationFilter{Username: "alice", Page: 2, PageSize: 5}, svc.lastFilter)
}
