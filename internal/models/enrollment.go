package models

// EnrollOutcome is the typed result of a registration attempt.
type EnrollOutcome string

// Registration outcomes. Business-rule failures are values, not errors.
const (
	OutcomeSuccess           EnrollOutcome = "SUCCESS"
	OutcomeAlreadyInCourse   EnrollOutcome = "ALREADY_IN_COURSE"
	OutcomeInvalidTarget     EnrollOutcome = "INVALID_TARGET"
	OutcomeAULimitExceeded   EnrollOutcome = "AU_LIMIT_EXCEEDED"
	OutcomeScheduleConflict  EnrollOutcome = "SCHEDULE_CONFLICT"
	OutcomeSectionFull       EnrollOutcome = "SECTION_FULL"
	OutcomeAlreadyEnrolled   EnrollOutcome = "ALREADY_ENROLLED"
	OutcomeNotEnrolled       EnrollOutcome = "NOT_ENROLLED"
	OutcomeAlreadyWaitlisted EnrollOutcome = "ALREADY_WAITLISTED"
	OutcomeNotWaitlisted     EnrollOutcome = "NOT_WAITLISTED"
)

// EnrollResult carries an outcome and, for AU failures, the pre-transaction AU total.
type EnrollResult struct {
	Outcome   EnrollOutcome `json:"outcome"`
	Ref       CourseRef     `json:"ref"`
	CurrentAU int           `json:"current_au"`
	// Promoted is the waitlisted student that took the freed seat, if any.
	Promoted string `json:"promoted,omitempty"`
}

// OK reports a successful outcome.
func (r EnrollResult) OK() bool { return r.Outcome == OutcomeSuccess }

// SwapOutcome is the typed result of a two-party index swap.
type SwapOutcome string

// Swap outcomes.
const (
	SwapSuccess          SwapOutcome = "SUCCESS"
	SwapOwnNotEnrolled   SwapOutcome = "OWN_NOT_ENROLLED"
	SwapPeerNotEnrolled  SwapOutcome = "PEER_NOT_ENROLLED"
	SwapDifferentCourses SwapOutcome = "DIFFERENT_COURSES"
	SwapFailed           SwapOutcome = "SWAP_FAILED"
	SwapPartialFailure   SwapOutcome = "PARTIAL_FAILURE"
)

// SwapResult reports a swap outcome. OwnResult and PeerResult hold the cross
// enrollment attempts when the swap got that far.
type SwapResult struct {
	Outcome    SwapOutcome    `json:"outcome"`
	OwnResult  *EnrollOutcome `json:"own_result,omitempty"`
	PeerResult *EnrollOutcome `json:"peer_result,omitempty"`
}

// EnrollRequest targets one index.
type EnrollRequest struct {
	CourseCode string `json:"course_code" validate:"required,max=16"`
	Index      string `json:"index" validate:"required,max=16"`
}

// Ref returns the normalised target.
func (r EnrollRequest) Ref() CourseRef { return NewCourseRef(r.CourseCode, r.Index) }

// ChangeIndexRequest moves a student to another index of the same course.
type ChangeIndexRequest struct {
	ToIndex string `json:"to_index" validate:"required,max=16"`
}

// SwapRequest exchanges indexes with a peer. PeerCourseCode defaults to CourseCode.
type SwapRequest struct {
	CourseCode     string `json:"course_code" validate:"required,max=16"`
	OwnIndex       string `json:"own_index" validate:"required,max=16"`
	PeerUsername   string `json:"peer_username" validate:"required,max=64"`
	PeerCourseCode string `json:"peer_course_code" validate:"omitempty,max=16"`
	PeerIndex      string `json:"peer_index" validate:"required,max=16"`
}
