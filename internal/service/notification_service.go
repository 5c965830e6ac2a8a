package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/jobs"
	"github.com/noah-isme/stars-api/pkg/notify"
)

// JobTypeNotify prefixes delivery jobs; the suffix is the channel name.
const JobTypeNotify = "notify."

type subscriptionStore interface {
	Subscribe(ctx context.Context, sub *models.Subscription) error
	Unsubscribe(ctx context.Context, username, reason string, ref models.CourseRef) error
	ListByUsername(ctx context.Context, username string) ([]models.Subscription, error)
	RenameCourse(ctx context.Context, oldCode, newCode string) error
	RenameIndex(ctx context.Context, ref models.CourseRef, newIndex string) error
}

type inboxStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUsername(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

type deliveryQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService keeps the subscription registry and fans notices out to
// the configured channels. Delivery failures are logged and counted only.
type NotificationService struct {
	subs    subscriptionStore
	inbox   inboxStore
	senders map[string]notify.Sender
	order   []string
	queue   deliveryQueue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs the dispatcher. Senders are used in the
// order given.
func NewNotificationService(subs subscriptionStore, inbox inboxStore, senders []notify.Sender, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		subs:    subs,
		inbox:   inbox,
		senders: map[string]notify.Sender{},
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	for _, sender := range senders {
		if _, dup := s.senders[sender.Name()]; dup {
			continue
		}
		s.senders[sender.Name()] = sender
		s.order = append(s.order, sender.Name())
	}
	return s
}

// NewInboxSender persists notifications so students can read them later.
func NewInboxSender(inbox inboxStore) notify.Sender {
	return notify.SenderFunc{Channel: notify.ChannelInbox, Fn: func(ctx context.Context, msg notify.Message) error {
		return inbox.Create(ctx, &models.Notification{
			ID:        msg.ID,
			Username:  msg.Username,
			Reason:    msg.Reason,
			Subject:   msg.Subject,
			Body:      msg.Body,
			CreatedAt: msg.SentAt,
		})
	}}
}

// UseQueue routes deliveries through q. Without a queue they run inline.
func (s *NotificationService) UseQueue(q deliveryQueue) {
	s.queue = q
}

// Channels lists the active channel names in fan-out order.
func (s *NotificationService) Channels() []string {
	return append([]string(nil), s.order...)
}

// Subscribe registers username for notices about ref.
func (s *NotificationService) Subscribe(ctx context.Context, username, reason string, ref models.CourseRef) error {
	sub := &models.Subscription{Username: username, Reason: reason, CourseCode: ref.CourseCode, Index: ref.Index}
	if err := s.subs.Subscribe(ctx, sub); err != nil {
		return appErrors.Storage(err, "failed to subscribe")
	}
	return nil
}

// Unsubscribe removes a subscription if present.
func (s *NotificationService) Unsubscribe(ctx context.Context, username, reason string, ref models.CourseRef) error {
	if err := s.subs.Unsubscribe(ctx, username, reason, ref); err != nil {
		return appErrors.Storage(err, "failed to unsubscribe")
	}
	return nil
}

// Subscriptions lists the subscriptions of username.
func (s *NotificationService) Subscriptions(ctx context.Context, username string) ([]models.Subscription, error) {
	subs, err := s.subs.ListByUsername(ctx, models.NormalizeUsername(username))
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list subscriptions")
	}
	return subs, nil
}

// Notify sends message to username on every channel.
func (s *NotificationService) Notify(ctx context.Context, username, reason, message string) {
	msg := notify.Message{
		ID:       uuid.NewString(),
		Username: username,
		Reason:   reason,
		Subject:  "STARS: " + reason,
		Body:     message,
		SentAt:   s.now().UTC(),
	}
	for _, channel := range s.order {
		if s.queue != nil {
			err := s.queue.Enqueue(jobs.Job{ID: fmt.Sprintf("%s-%s", msg.ID, channel), Type: JobTypeNotify + channel, Payload: msg})
			if err == nil {
				continue
			}
			s.logger.Warn("notification enqueue failed, delivering inline", zap.String("channel", channel), zap.Error(err))
		}
		if err := s.deliver(ctx, channel, msg); err != nil {
			s.recordFailure(channel, msg, err)
		}
	}
}

// HandleDelivery is the queue handler for delivery jobs.
func (s *NotificationService) HandleDelivery(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(notify.Message)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	channel, ok := strings.CutPrefix(job.Type, JobTypeNotify)
	if !ok {
		return fmt.Errorf("unexpected job type %s", job.Type)
	}
	return s.deliver(ctx, channel, msg)
}

// OnGiveUp records a delivery job that exhausted its retries.
func (s *NotificationService) OnGiveUp(job jobs.Job, err error) {
	msg, _ := job.Payload.(notify.Message)
	s.recordFailure(strings.TrimPrefix(job.Type, JobTypeNotify), msg, err)
}

func (s *NotificationService) deliver(ctx context.Context, channel string, msg notify.Message) error {
	sender, ok := s.senders[channel]
	if !ok {
		return fmt.Errorf("unknown notification channel %s", channel)
	}
	if err := sender.Send(ctx, msg); err != nil {
		return err
	}
	s.metrics.RecordDelivery(channel, "delivered")
	return nil
}

func (s *NotificationService) recordFailure(channel string, msg notify.Message, err error) {
	s.metrics.RecordDelivery(channel, "failed")
	s.logger.Error("notification delivery failed",
		zap.String("channel", channel),
		zap.String("username", msg.Username),
		zap.String("reason", msg.Reason),
		zap.Error(err),
	)
}

// Inbox pages the stored notifications of username.
func (s *NotificationService) Inbox(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	filter.Username = models.NormalizeUsername(filter.Username)
	items, total, err := s.inbox.ListByUsername(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
