package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/stars-api/internal/models"
)

// ErrDuplicate is returned by the memory store when a key already exists.
var ErrDuplicate = errors.New("record already exists")

type memorySection struct {
	seq       int
	vacancy   int
	enrolled  []string
	waitlist  []string
	lessonIDs []int64
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore is a process-local Record Store. One mutex serialises every
// read and write so each Update is atomic.
type MemoryStore struct {
	mu            sync.Mutex
	seq           int
	nextLessonID  int64
	courses       map[string]models.Course
	sections      map[models.CourseRef]*memorySection
	students      map[string]models.Student
	lessons       map[int64]models.Lesson
	subscriptions map[string]models.Subscription
	notifications []models.Notification
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextLessonID:  1,
		courses:       map[string]models.Course{},
		sections:      map[models.CourseRef]*memorySection{},
		students:      map[string]models.Student{},
		lessons:       map[int64]models.Lesson{},
		subscriptions: map[string]models.Subscription{},
	}
}

// Courses returns the course view.
func (m *MemoryStore) Courses() *MemoryCourses { return &MemoryCourses{m: m} }

// Sections returns the index view.
func (m *MemoryStore) Sections() *MemorySections { return &MemorySections{m: m} }

// Students returns the student view.
func (m *MemoryStore) Students() *MemoryStudents { return &MemoryStudents{m: m} }

// Lessons returns the lesson view.
func (m *MemoryStore) Lessons() *MemoryLessons { return &MemoryLessons{m: m} }

// Subscriptions returns the subscription view.
func (m *MemoryStore) Subscriptions() *MemorySubscriptions { return &MemorySubscriptions{m: m} }

// Notifications returns the inbox view.
func (m *MemoryStore) Notifications() *MemoryNotifications { return &MemoryNotifications{m: m} }

func (m *MemoryStore) composeSection(ref models.CourseRef, rec *memorySection) models.CourseSection {
	course := m.courses[ref.CourseCode]
	section := models.CourseSection{
		CourseCode:    ref.CourseCode,
		Index:         ref.Index,
		School:        course.School,
		AU:            course.AU,
		CourseVacancy: course.Vacancy,
		Vacancy:       rec.vacancy,
		Enrolled:      rec.enrolled,
		Waitlist:      rec.waitlist,
		LessonIDs:     rec.lessonIDs,
		CreatedAt:     rec.createdAt,
		UpdatedAt:     rec.updatedAt,
	}
	return section.Clone()
}

func (m *MemoryStore) sortedSections(filter func(models.CourseRef) bool) []models.CourseSection {
	refs := make([]models.CourseRef, 0, len(m.sections))
	for ref := range m.sections {
		if filter == nil || filter(ref) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].CourseCode != refs[j].CourseCode {
			return refs[i].CourseCode < refs[j].CourseCode
		}
		return m.sections[refs[i]].seq < m.sections[refs[j]].seq
	})
	out := make([]models.CourseSection, 0, len(refs))
	for _, ref := range refs {
		out = append(out, m.composeSection(ref, m.sections[ref]))
	}
	return out
}

func (m *MemoryStore) insertSection(section *models.CourseSection, now time.Time) error {
	ref := section.Ref()
	course, ok := m.courses[ref.CourseCode]
	if !ok {
		return sql.ErrNoRows
	}
	if _, exists := m.sections[ref]; exists {
		return ErrDuplicate
	}
	m.seq++
	m.sections[ref] = &memorySection{
		seq:       m.seq,
		vacancy:   section.Vacancy,
		enrolled:  append([]string{}, section.Enrolled...),
		waitlist:  append([]string{}, section.Waitlist...),
		lessonIDs: append([]int64{}, section.LessonIDs...),
		createdAt: now,
		updatedAt: now,
	}
	course.Vacancy += section.Vacancy
	course.UpdatedAt = now
	m.courses[ref.CourseCode] = course
	section.CreatedAt, section.UpdatedAt = now, now
	return nil
}

// MemoryCourses implements the course repository contract in memory.
type MemoryCourses struct{ m *MemoryStore }

// FindByCode returns a course. Absence is sql.ErrNoRows.
func (r *MemoryCourses) FindByCode(_ context.Context, code string) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	course, ok := r.m.courses[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

// List returns every course ordered by code.
func (r *MemoryCourses) List(_ context.Context) ([]models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.Course, 0, len(r.m.courses))
	for _, course := range r.m.courses {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Create inserts a course and its initial indexes.
func (r *MemoryCourses) Create(_ context.Context, course *models.Course, sections []models.CourseSection) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.courses[course.Code]; exists {
		return ErrDuplicate
	}
	seen := map[string]bool{}
	for _, section := range sections {
		if seen[section.Index] {
			return ErrDuplicate
		}
		seen[section.Index] = true
	}
	now := time.Now().UTC()
	course.Vacancy = 0
	course.CreatedAt, course.UpdatedAt = now, now
	r.m.courses[course.Code] = *course
	for i := range sections {
		sections[i].CourseCode = course.Code
		if err := r.m.insertSection(&sections[i], now); err != nil {
			return err
		}
		course.Vacancy += sections[i].Vacancy
	}
	return nil
}

// Update applies mutate to a course.
func (r *MemoryCourses) Update(_ context.Context, code string, mutate func(*models.Course) error) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	course, ok := r.m.courses[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := mutate(&course); err != nil {
		return nil, err
	}
	course.Code = code
	course.UpdatedAt = time.Now().UTC()
	r.m.courses[code] = course
	return &course, nil
}

// Rename changes a course code and moves its indexes.
func (r *MemoryCourses) Rename(_ context.Context, oldCode, newCode string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	course, ok := r.m.courses[oldCode]
	if !ok {
		return sql.ErrNoRows
	}
	if _, exists := r.m.courses[newCode]; exists {
		return ErrDuplicate
	}
	delete(r.m.courses, oldCode)
	course.Code = newCode
	course.UpdatedAt = time.Now().UTC()
	r.m.courses[newCode] = course
	for ref, rec := range r.m.sections {
		if ref.CourseCode == oldCode {
			delete(r.m.sections, ref)
			r.m.sections[models.CourseRef{CourseCode: newCode, Index: ref.Index}] = rec
		}
	}
	return nil
}

// MemorySections implements the section repository contract in memory.
type MemorySections struct{ m *MemoryStore }

// FindByRef returns one index. Absence is sql.ErrNoRows.
func (r *MemorySections) FindByRef(_ context.Context, ref models.CourseRef) (*models.CourseSection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rec, ok := r.m.sections[ref]
	if !ok {
		return nil, sql.ErrNoRows
	}
	section := r.m.composeSection(ref, rec)
	return &section, nil
}

// List returns every index ordered by course then creation.
func (r *MemorySections) List(_ context.Context) ([]models.CourseSection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.sortedSections(nil), nil
}

// ListByCourse returns the indexes of one course.
func (r *MemorySections) ListByCourse(_ context.Context, courseCode string) ([]models.CourseSection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.sortedSections(func(ref models.CourseRef) bool { return ref.CourseCode == courseCode }), nil
}

// Create adds an index to an existing course.
func (r *MemorySections) Create(_ context.Context, section *models.CourseSection) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.insertSection(section, time.Now().UTC())
}

// Update applies mutate to a copy and commits it only when mutate succeeds.
func (r *MemorySections) Update(_ context.Context, ref models.CourseRef, mutate func(*models.CourseSection) error) (*models.CourseSection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rec, ok := r.m.sections[ref]
	if !ok {
		return nil, sql.ErrNoRows
	}
	section := r.m.composeSection(ref, rec)
	if err := mutate(&section); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec.vacancy = section.Vacancy
	rec.enrolled = append([]string{}, section.Enrolled...)
	rec.waitlist = append([]string{}, section.Waitlist...)
	rec.lessonIDs = append([]int64{}, section.LessonIDs...)
	rec.updatedAt = now
	course := r.m.courses[ref.CourseCode]
	if course.Vacancy != section.CourseVacancy {
		course.Vacancy = section.CourseVacancy
		course.UpdatedAt = now
		r.m.courses[ref.CourseCode] = course
	}
	section.UpdatedAt = now
	return &section, nil
}

// Rename changes an index identifier.
func (r *MemorySections) Rename(_ context.Context, ref models.CourseRef, newIndex string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rec, ok := r.m.sections[ref]
	if !ok {
		return sql.ErrNoRows
	}
	target := models.CourseRef{CourseCode: ref.CourseCode, Index: newIndex}
	if _, exists := r.m.sections[target]; exists {
		return ErrDuplicate
	}
	delete(r.m.sections, ref)
	rec.updatedAt = time.Now().UTC()
	r.m.sections[target] = rec
	return nil
}

// MemoryStudents implements the student repository contract in memory.
type MemoryStudents struct{ m *MemoryStore }

// FindByUsername returns a student. Absence is sql.ErrNoRows.
func (r *MemoryStudents) FindByUsername(_ context.Context, username string) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	student, ok := r.m.students[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := student.Clone()
	return &clone, nil
}

// List returns every student ordered by username.
func (r *MemoryStudents) List(_ context.Context) ([]models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.Student, 0, len(r.m.students))
	for _, student := range r.m.students {
		out = append(out, student.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Create inserts a student with empty registrations.
func (r *MemoryStudents) Create(_ context.Context, student *models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.students[student.Username]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	student.TotalAU = 0
	student.Enrolled = []models.CourseRef{}
	student.Waitlist = []models.CourseRef{}
	student.CreatedAt, student.UpdatedAt = now, now
	r.m.students[student.Username] = student.Clone()
	return nil
}

// Update applies mutate to a copy and commits it only when mutate succeeds.
func (r *MemoryStudents) Update(_ context.Context, username string, mutate func(*models.Student) error) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.students[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	student := current.Clone()
	if err := mutate(&student); err != nil {
		return nil, err
	}
	student.Username = username
	student.UpdatedAt = time.Now().UTC()
	r.m.students[username] = student.Clone()
	return &student, nil
}

// MemoryLessons implements the lesson repository contract in memory.
type MemoryLessons struct{ m *MemoryStore }

// FindByID returns a lesson. Absence is sql.ErrNoRows.
func (r *MemoryLessons) FindByID(_ context.Context, id int64) (*models.Lesson, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lesson, ok := r.m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &lesson, nil
}

// FindByIDs returns the known lessons among ids in id order.
func (r *MemoryLessons) FindByIDs(_ context.Context, ids []int64) ([]models.Lesson, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	seen := map[int64]bool{}
	out := []models.Lesson{}
	for _, id := range ids {
		if lesson, ok := r.m.lessons[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, lesson)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListByLocationDay returns the lessons booked at a location on one day.
func (r *MemoryLessons) ListByLocationDay(_ context.Context, location, day string) ([]models.Lesson, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Lesson{}
	for _, lesson := range r.m.lessons {
		if lesson.Location == location && lesson.Day == day {
			out = append(out, lesson)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Create inserts a lesson with the next sequential id.
func (r *MemoryLessons) Create(_ context.Context, lesson *models.Lesson) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lesson.ID = r.m.nextLessonID
	r.m.nextLessonID++
	r.m.lessons[lesson.ID] = *lesson
	return nil
}

// UpdateTime moves a lesson to a new day and window.
func (r *MemoryLessons) UpdateTime(_ context.Context, lesson *models.Lesson) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.lessons[lesson.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.Day, current.StartTime, current.EndTime = lesson.Day, lesson.StartTime, lesson.EndTime
	r.m.lessons[lesson.ID] = current
	return nil
}

// MemorySubscriptions implements the subscription repository contract in memory.
type MemorySubscriptions struct{ m *MemoryStore }

func subscriptionKey(username, reason string, ref models.CourseRef) string {
	return username + "|" + reason + "|" + ref.CourseCode + "|" + ref.Index
}

// Subscribe registers sub. Re-subscribing the same tuple is a no-op.
func (r *MemorySubscriptions) Subscribe(_ context.Context, sub *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := subscriptionKey(sub.Username, sub.Reason, models.CourseRef{CourseCode: sub.CourseCode, Index: sub.Index})
	if _, exists := r.m.subscriptions[key]; exists {
		return nil
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	r.m.subscriptions[key] = *sub
	return nil
}

// Unsubscribe removes a subscription if present.
func (r *MemorySubscriptions) Unsubscribe(_ context.Context, username, reason string, ref models.CourseRef) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.subscriptions, subscriptionKey(username, reason, ref))
	return nil
}

// ListByUsername returns a student's subscriptions.
func (r *MemorySubscriptions) ListByUsername(_ context.Context, username string) ([]models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Subscription{}
	for _, sub := range r.m.subscriptions {
		if sub.Username == username {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// RenameCourse rewrites the course code of every subscription.
func (r *MemorySubscriptions) RenameCourse(_ context.Context, oldCode, newCode string) error {
	return r.rewrite(func(sub *models.Subscription) bool {
		if sub.CourseCode != oldCode {
			return false
		}
		sub.CourseCode = newCode
		return true
	})
}

// RenameIndex rewrites the index of every subscription to ref.
func (r *MemorySubscriptions) RenameIndex(_ context.Context, ref models.CourseRef, newIndex string) error {
	return r.rewrite(func(sub *models.Subscription) bool {
		if sub.CourseCode != ref.CourseCode || sub.Index != ref.Index {
			return false
		}
		sub.Index = newIndex
		return true
	})
}

func (r *MemorySubscriptions) rewrite(fn func(*models.Subscription) bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for key, sub := range r.m.subscriptions {
		if fn(&sub) {
			delete(r.m.subscriptions, key)
			r.m.subscriptions[subscriptionKey(sub.Username, sub.Reason, models.CourseRef{CourseCode: sub.CourseCode, Index: sub.Index})] = sub
		}
	}
	return nil
}

// MemoryNotifications implements the inbox repository contract in memory.
type MemoryNotifications struct{ m *MemoryStore }

// Create appends an inbox entry.
func (r *MemoryNotifications) Create(_ context.Context, n *models.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.m.notifications = append(r.m.notifications, *n)
	return nil
}

// ListByUsername pages a student's inbox, newest first.
func (r *MemoryNotifications) ListByUsername(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var mine []models.Notification
	for i := len(r.m.notifications) - 1; i >= 0; i-- {
		if r.m.notifications[i].Username == filter.Username {
			mine = append(mine, r.m.notifications[i])
		}
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= len(mine) {
		return []models.Notification{}, len(mine), nil
	}
	end := start + size
	if end > len(mine) {
		end = len(mine)
	}
	return mine[start:end], len(mine), nil
}
