package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/stars-api/internal/models"
	"github.com/noah-isme/stars-api/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// flakyStudents fails Update for usernames accepted by failUpdate.
type flakyStudents struct {
	*repository.MemoryStudents
	mu         sync.Mutex
	failUpdate func(username string) bool
}

func (f *flakyStudents) failWhen(fn func(username string) bool) {
	f.mu.Lock()
	f.failUpdate = fn
	f.mu.Unlock()
}

func (f *flakyStudents) Update(ctx context.Context, username string, mutate func(*models.Student) error) (*models.Student, error) {
	f.mu.Lock()
	fail := f.failUpdate
	f.mu.Unlock()
	if fail != nil && fail(username) {
		return nil, errStoreDown
	}
	return f.MemoryStudents.Update(ctx, username, mutate)
}

// flakySections fails Update for refs accepted by failUpdate and FindByRef
// for refs accepted by failLookup.
type flakySections struct {
	*repository.MemorySections
	mu         sync.Mutex
	failUpdate func(ref models.CourseRef) bool
	failLookup func(ref models.CourseRef) bool
}

func (f *flakySections) failLookupWhen(fn func(ref models.CourseRef) bool) {
	f.mu.Lock()
	f.failLookup = fn
	f.mu.Unlock()
}

func (f *flakySections) FindByRef(ctx context.Context, ref models.CourseRef) (*models.CourseSection, error) {
	f.mu.Lock()
	fail := f.failLookup
	f.mu.Unlock()
	if fail != nil && fail(ref) {
		return nil, errStoreDown
	}
	return f.MemorySections.FindByRef(ctx, ref)
}

func (f *flakySections) failWhen(fn func(ref models.CourseRef) bool) {
	f.mu.Lock()
	f.failUpdate = fn
	f.mu.Unlock()
}

func (f *flakySections) Update(ctx context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error) {
	f.mu.Lock()
	fail := f.failUpdate
	f.mu.Unlock()
	if fail != nil && fail(ref) {
		return nil, errStoreDown
	}
	return f.MemorySections.Update(ctx, ref, mutate)
}

type notice struct {
	username string
	reason   string
	message  string
}

type subscriptionEvent struct {
	username string
	ref      models.CourseRef
}

type recordingNotifier struct {
	mu           sync.Mutex
	subscribed   []subscriptionEvent
	unsubscribed []subscriptionEvent
	notices      []notice
}

func (n *recordingNotifier) Subscribe(_ context.Context, username, _ string, ref models.CourseRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribed = append(n.subscribed, subscriptionEvent{username, ref})
	return nil
}

func (n *recordingNotifier) Unsubscribe(_ context.Context, username, _ string, ref models.CourseRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unsubscribed = append(n.unsubscribed, subscriptionEvent{username, ref})
	return nil
}

func (n *recordingNotifier) Notify(_ context.Context, username, reason, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{username, reason, message})
}

func (n *recordingNotifier) sent() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type registrationFixture struct {
	t        *testing.T
	ctx      context.Context
	store    *repository.MemoryStore
	students *flakyStudents
	sections *flakySections
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
	ledger   *CapacityLedger
	engine   *EnrollmentService
	catalog  *CatalogService
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	students := &flakyStudents{MemoryStudents: store.Students()}
	sections := &flakySections{MemorySections: store.Sections()}
	notifier := &recordingNotifier{}
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	locks := NewLockManager()
	ledger := NewCapacityLedger(sections, nil, logger)
	engine := NewEnrollmentService(students, sections, store.Lessons(), ledger, notifier, EnrollmentOptions{
		AULimit: DefaultAULimit,
		Locks:   locks,
		Logger:  logger,
	})
	catalog := NewCatalogService(store.Courses(), sections, students, store.Lessons(), store.Subscriptions(), ledger, nil, locks, nil, logger)
	return &registrationFixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		students: students,
		sections: sections,
		notifier: notifier,
		logs:     logs,
		ledger:   ledger,
		engine:   engine,
		catalog:  catalog,
	}
}

type indexSpec struct {
	index   string
	vacancy int
	lessons []int64
}

func (f *registrationFixture) course(code string, au int, indexes ...indexSpec) {
	f.t.Helper()
	sections := make([]models.CourseSection, 0, len(indexes))
	for _, idx := range indexes {
		sections = append(sections, models.CourseSection{
			Index:     idx.index,
			Vacancy:   idx.vacancy,
			Enrolled:  []string{},
			Waitlist:  []string{},
			LessonIDs: idx.lessons,
		})
	}
	require.NoError(f.t, f.store.Courses().Create(f.ctx, &models.Course{Code: code, School: "SCSE", AU: au}, sections))
}

func (f *registrationFixture) lesson(location, day string, start, end int) int64 {
	f.t.Helper()
	lesson := &models.Lesson{Location: location, Day: day, StartTime: start, EndTime: end, ClassType: "LEC"}
	require.NoError(f.t, f.store.Lessons().Create(f.ctx, lesson))
	return lesson.ID
}

func (f *registrationFixture) student(usernames ...string) {
	f.t.Helper()
	for _, username := range usernames {
		require.NoError(f.t, f.store.Students().Create(f.ctx, &models.Student{Username: username, Name: username}))
	}
}

func (f *registrationFixture) enroll(username, code, index string) models.EnrollResult {
	f.t.Helper()
	result, err := f.engine.Enroll(f.ctx, username, models.EnrollRequest{CourseCode: code, Index: index})
	require.NoError(f.t, err)
	return result
}

func (f *registrationFixture) section(code, index string) *models.CourseSection {
	f.t.Helper()
	section, err := f.store.Sections().FindByRef(f.ctx, models.NewCourseRef(code, index))
	require.NoError(f.t, err)
	return section
}

func (f *registrationFixture) record(username string) *models.Student {
	f.t.Helper()
	student, err := f.store.Students().FindByUsername(f.ctx, username)
	require.NoError(f.t, err)
	return student
}

func courseRef(code, index string) models.CourseRef {
	return models.NewCourseRef(code, index)
}
