package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

// Swap exchanges the initiator's index with a peer's index of the same course.
// Preconditions are checked before anything is written. Failed exchanges put
// both students back into their original indexes.
func (s *EnrollmentService) Swap(ctx context.Context, username string, req models.SwapRequest) (models.SwapResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SwapResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	username = models.NormalizeUsername(username)
	peer := models.NormalizeUsername(req.PeerUsername)
	if peer == username {
		return models.SwapResult{}, appErrors.Clone(appErrors.ErrValidation, "cannot swap with yourself")
	}
	peerCourse := req.PeerCourseCode
	if peerCourse == "" {
		peerCourse = req.CourseCode
	}
	own := models.NewCourseRef(req.CourseCode, req.OwnIndex)
	theirs := models.NewCourseRef(peerCourse, req.PeerIndex)
	if own == theirs {
		return models.SwapResult{}, appErrors.Clone(appErrors.ErrValidation, "both students already hold this index")
	}

	ctx, span := s.startSpan(ctx, "enrollment.swap", username, own)
	defer span.End()
	span.SetAttributes(attribute.String("stars.peer", peer), attribute.String("stars.peer_index", theirs.Index))

	releaseSections := s.locks.Acquire(sectionLockKey(own), sectionLockKey(theirs))
	defer releaseSections()
	releaseStudents := s.locks.Acquire(studentLockKey(username), studentLockKey(peer))
	defer releaseStudents()

	result, err := s.swapLocked(ctx, username, own, peer, theirs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordOutcome("swap", appErrors.FromError(err).Code)
		return result, err
	}
	span.SetAttributes(attribute.String("stars.outcome", string(result.Outcome)))
	s.metrics.RecordOutcome("swap", string(result.Outcome))
	s.logger.Info("registration",
		zap.String("operation", "swap"),
		zap.String("username", username),
		zap.String("peer", peer),
		zap.String("course", own.CourseCode),
		zap.String("index", own.Index),
		zap.String("peer_index", theirs.Index),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

func (s *EnrollmentService) swapLocked(ctx context.Context, username string, own models.CourseRef, peer string, theirs models.CourseRef) (models.SwapResult, error) {
	initiator, err := s.loadStudent(ctx, username)
	if err != nil {
		return models.SwapResult{}, err
	}
	if !initiator.Holds(own) {
		return models.SwapResult{Outcome: models.SwapOwnNotEnrolled}, nil
	}
	other, err := s.loadStudent(ctx, peer)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return models.SwapResult{Outcome: models.SwapPeerNotEnrolled}, nil
		}
		return models.SwapResult{}, err
	}
	if !other.Holds(theirs) {
		return models.SwapResult{Outcome: models.SwapPeerNotEnrolled}, nil
	}
	if own.CourseCode != theirs.CourseCode {
		return models.SwapResult{Outcome: models.SwapDifferentCourses}, nil
	}

	// Nothing has been written yet, so a failure here is a clean storage error.
	if _, dropped, err := s.dropLocked(ctx, username, own); err != nil {
		return models.SwapResult{}, err
	} else if !dropped.OK() {
		return models.SwapResult{Outcome: models.SwapOwnNotEnrolled}, nil
	}

	if _, dropped, err := s.dropLocked(ctx, peer, theirs); err != nil || !dropped.OK() {
		if err == nil {
			err = appErrors.Clone(appErrors.ErrNotEnrolled, "peer no longer holds the index")
		}
		return s.abortSwap(ctx, err, username, own, peer, theirs)
	}

	ownResult, err := s.enrollLocked(ctx, username, theirs)
	if err != nil {
		return s.abortSwap(ctx, err, username, own, peer, theirs)
	}
	peerResult, err := s.enrollLocked(ctx, peer, own)
	if err != nil {
		return s.abortSwap(ctx, err, username, own, peer, theirs)
	}
	result := models.SwapResult{OwnResult: &ownResult.Outcome, PeerResult: &peerResult.Outcome}

	if ownResult.OK() && peerResult.OK() {
		result.Outcome = models.SwapSuccess
		return result, nil
	}

	// Undo whichever half succeeded, then restore both original seats.
	if ownResult.OK() {
		if _, _, err := s.dropLocked(ctx, username, theirs); err != nil {
			return s.abortSwap(ctx, err, username, own, peer, theirs)
		}
	}
	if peerResult.OK() {
		if _, _, err := s.dropLocked(ctx, peer, own); err != nil {
			return s.abortSwap(ctx, err, username, own, peer, theirs)
		}
	}
	restoreErr := s.restoreLocked(ctx, username, own)
	if err := s.restoreLocked(ctx, peer, theirs); err != nil && restoreErr == nil {
		restoreErr = err
	}
	if restoreErr != nil {
		s.logger.Error("swap restoration failed",
			zap.String("username", username),
			zap.String("peer", peer),
			zap.String("course", own.CourseCode),
			zap.Error(restoreErr),
		)
		result.Outcome = models.SwapPartialFailure
		return result, nil
	}
	result.Outcome = models.SwapFailed
	return result, nil
}

// abortSwap compensates after a storage failure mid-swap: each student ends up
// back in their original index if the store allows it. The outcome is always
// PARTIAL_FAILURE because the sequence did not run to completion.
func (s *EnrollmentService) abortSwap(ctx context.Context, cause error, username string, own models.CourseRef, peer string, theirs models.CourseRef) (models.SwapResult, error) {
	s.logger.Error("swap interrupted", zap.String("username", username), zap.String("peer", peer), zap.String("course", own.CourseCode), zap.Error(cause))
	reconciled := true
	for _, leg := range []struct {
		username string
		original models.CourseRef
		other    models.CourseRef
	}{
		{username, own, theirs},
		{peer, theirs, own},
	} {
		student, err := s.loadStudent(ctx, leg.username)
		if err != nil {
			reconciled = false
			continue
		}
		if student.Holds(leg.other) {
			if _, _, err := s.dropLocked(ctx, leg.username, leg.other); err != nil {
				reconciled = false
				continue
			}
		}
		if err := s.restoreLocked(ctx, leg.username, leg.original); err != nil {
			reconciled = false
		}
	}
	s.logger.Warn("swap compensation finished", zap.String("username", username), zap.String("peer", peer), zap.Bool("reconciled", reconciled))
	return models.SwapResult{Outcome: models.SwapPartialFailure}, nil
}
