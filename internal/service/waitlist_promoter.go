package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

type promotionEnroller interface {
	enrollLocked(ctx context.Context, username string, ref models.CourseRef) (models.EnrollResult, error)
}

type waitlistStudents interface {
	Update(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error)
}

// Promotion results recorded in waitlist_promotions_total.
const (
	promotionPromoted  = "promoted"
	promotionExhausted = "exhausted"
	promotionError     = "error"
)

// AcceptedMessage is the notice sent to a promoted student.
func AcceptedMessage(ref models.CourseRef) string {
	return fmt.Sprintf("You have been accepted on the waitlist for %s/%s!", ref.CourseCode, ref.Index)
}

// WaitlistPromoter fills a freed seat from the front of the waitlist.
type WaitlistPromoter struct {
	ledger   *CapacityLedger
	enroller promotionEnroller
	students waitlistStudents
	notifier notifier
	locks    *LockManager
	metrics  *MetricsService
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewWaitlistPromoter constructs a promoter.
func NewWaitlistPromoter(ledger *CapacityLedger, enroller promotionEnroller, students waitlistStudents, notifier notifier, locks *LockManager, metrics *MetricsService, logger *zap.Logger, tracer trace.Tracer) *WaitlistPromoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/noah-isme/stars-api/internal/service")
	}
	return &WaitlistPromoter{ledger: ledger, enroller: enroller, students: students, notifier: notifier, locks: locks, metrics: metrics, logger: logger, tracer: tracer}
}

// Promote scans the waitlist of ref in FIFO order and enrolls the first
// candidate that passes every registration rule. Candidates that fail are
// skipped and keep their place. At most one student is promoted. The caller
// must hold the index lock of ref and no student locks.
func (p *WaitlistPromoter) Promote(ctx context.Context, ref models.CourseRef) (string, error) {
	ctx, span := p.tracer.Start(ctx, "waitlist.promote", trace.WithAttributes(
		attribute.String("stars.course", ref.CourseCode),
		attribute.String("stars.index", ref.Index),
	))
	defer span.End()

	promoted, err := p.promote(ctx, ref)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordPromotion(promotionError)
	case promoted == "":
		p.metrics.RecordPromotion(promotionExhausted)
	default:
		span.SetAttributes(attribute.String("stars.promoted", promoted))
		p.metrics.RecordPromotion(promotionPromoted)
	}
	return promoted, err
}

func (p *WaitlistPromoter) promote(ctx context.Context, ref models.CourseRef) (string, error) {
	section, err := p.ledger.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	waitlist := append([]string(nil), section.Waitlist...)

	pruned := 0
	for i, candidate := range waitlist {
		position := i - pruned
		release := p.locks.Acquire(studentLockKey(candidate))
		result, err := p.enroller.enrollLocked(ctx, candidate, ref)
		if err != nil {
			release()
			if errors.Is(err, appErrors.ErrNotFound) {
				p.logger.Warn("waitlisted student missing", zap.String("username", candidate), zap.String("course", ref.CourseCode), zap.String("index", ref.Index))
				continue
			}
			return "", err
		}
		if result.Outcome == models.OutcomeAlreadyInCourse || result.Outcome == models.OutcomeAlreadyEnrolled {
			// The candidate already holds this course, so the entry can never be served.
			if p.prune(ctx, candidate, ref, position) {
				pruned++
			}
			release()
			continue
		}
		if !result.OK() {
			release()
			p.logger.Info("waitlist candidate skipped",
				zap.String("username", candidate),
				zap.String("course", ref.CourseCode),
				zap.String("index", ref.Index),
				zap.String("outcome", string(result.Outcome)),
			)
			if result.Outcome == models.OutcomeSectionFull {
				return "", nil
			}
			continue
		}

		if _, err := p.ledger.RemoveWaitlistAt(ctx, ref, position); err != nil {
			release()
			p.logger.Error("promoted student left on index waitlist", zap.String("username", candidate), zap.Int("position", position), zap.Error(err))
			return candidate, err
		}
		_, err = p.students.Update(ctx, candidate, func(st *models.Student) error {
			st.Waitlist, _ = models.RemoveRef(st.Waitlist, ref)
			return nil
		})
		release()
		if err != nil {
			p.logger.Error("promoted student record keeps waitlist entry", zap.String("username", candidate), zap.Error(err))
		}

		if err := p.notifier.Unsubscribe(ctx, candidate, models.ReasonWaitlist, ref); err != nil {
			p.logger.Warn("waitlist unsubscribe failed", zap.String("username", candidate), zap.Error(err))
		}
		p.notifier.Notify(ctx, candidate, models.ReasonWaitlist, AcceptedMessage(ref))
		p.logger.Info("waitlist promotion",
			zap.String("username", candidate),
			zap.String("course", ref.CourseCode),
			zap.String("index", ref.Index),
			zap.Int("position", position),
		)
		return candidate, nil
	}
	return "", nil
}

// prune drops a waitlist entry whose student already holds the course. The
// caller holds the candidate's student lock.
func (p *WaitlistPromoter) prune(ctx context.Context, candidate string, ref models.CourseRef, position int) bool {
	if _, err := p.ledger.RemoveWaitlistAt(ctx, ref, position); err != nil {
		p.logger.Warn("stale waitlist entry kept", zap.String("username", candidate), zap.String("course", ref.CourseCode), zap.String("index", ref.Index), zap.Error(err))
		return false
	}
	if _, err := p.students.Update(ctx, candidate, func(st *models.Student) error {
		st.Waitlist, _ = models.RemoveRef(st.Waitlist, ref)
		return nil
	}); err != nil {
		p.logger.Error("pruned student record keeps waitlist entry", zap.String("username", candidate), zap.Error(err))
	}
	if err := p.notifier.Unsubscribe(ctx, candidate, models.ReasonWaitlist, ref); err != nil {
		p.logger.Warn("waitlist unsubscribe failed", zap.String("username", candidate), zap.Error(err))
	}
	p.logger.Info("stale waitlist entry pruned", zap.String("username", candidate), zap.String("course", ref.CourseCode), zap.String("index", ref.Index))
	return true
}
