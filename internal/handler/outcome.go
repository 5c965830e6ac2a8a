package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/response"
)

var outcomeErrors = map[models.EnrollOutcome]*appErrors.Error{
	models.OutcomeAlreadyInCourse:   appErrors.ErrAlreadyInCourse,
	models.OutcomeInvalidTarget:     appErrors.ErrInvalidTarget,
	models.OutcomeAULimitExceeded:   appErrors.ErrAULimitExceeded,
	models.OutcomeScheduleConflict:  appErrors.ErrScheduleConflict,
	models.OutcomeSectionFull:       appErrors.ErrSectionFull,
	models.OutcomeAlreadyEnrolled:   appErrors.ErrAlreadyEnrolled,
	models.OutcomeNotEnrolled:       appErrors.ErrNotEnrolled,
	models.OutcomeAlreadyWaitlisted: appErrors.ErrAlreadyWaitlisted,
	models.OutcomeNotWaitlisted:     appErrors.ErrNotWaitlisted,
}

// writeEnrollResult renders a registration outcome. Rule failures become error
// envelopes with the raw result in meta.
func writeEnrollResult(c *gin.Context, status int, result models.EnrollResult, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.OK() {
		response.JSON(c, status, result, nil)
		return
	}
	base, ok := outcomeErrors[result.Outcome]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("unknown outcome %s", result.Outcome)))
		return
	}
	meta := response.WithMeta(nil, "result", result)
	appErr := base
	switch result.Outcome {
	case models.OutcomeSectionFull:
		meta = response.WithMeta(meta, "waitlist_available", true)
	case models.OutcomeAULimitExceeded:
		appErr = appErrors.Clone(base, fmt.Sprintf("academic unit limit exceeded (currently %d AU)", result.CurrentAU))
	}
	response.Error(c, appErr, meta)
}

func writeSwapResult(c *gin.Context, result models.SwapResult, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	var appErr *appErrors.Error
	switch result.Outcome {
	case models.SwapSuccess:
		response.JSON(c, http.StatusOK, result, nil)
		return
	case models.SwapOwnNotEnrolled:
		appErr = appErrors.Clone(appErrors.ErrNotEnrolled, "you are not enrolled in the offered index")
	case models.SwapPeerNotEnrolled:
		appErr = appErrors.Clone(appErrors.ErrNotEnrolled, "peer is not enrolled in the requested index")
	case models.SwapDifferentCourses:
		appErr = appErrors.Clone(appErrors.ErrValidation, "indexes belong to different courses")
	case models.SwapFailed:
		appErr = appErrors.ErrSwapFailed
	case models.SwapPartialFailure:
		appErr = appErrors.ErrPartialFailure
	default:
		appErr = appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("unknown swap outcome %s", result.Outcome))
	}
	response.Error(c, appErr, response.WithMeta(nil, "result", result))
}
