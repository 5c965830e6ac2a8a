package service

import (
	"sort"
	"sync"

	"github.com/noah-isme/stars-api/internal/models"
)

// LockManager hands out per-key mutexes. Keys passed to one Acquire call are
// locked in sorted order. Section keys sort before student keys, and callers
// never take a section key while holding a student key.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLockManager returns an empty manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: map[string]*keyLock{}}
}

func sectionLockKey(ref models.CourseRef) string {
	return "section:" + ref.CourseCode + "/" + ref.Index
}

func studentLockKey(username string) string {
	return "student:" + username
}

// Acquire locks every key and returns a release func that is safe to call more
// than once.
func (m *LockManager) Acquire(keys ...string) func() {
	if m == nil {
		return func() {}
	}
	sorted := dedupeSorted(keys)
	held := make([]*keyLock, 0, len(sorted))
	for _, key := range sorted {
		lock := m.ref(key)
		lock.mu.Lock()
		held = append(held, lock)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				m.unref(sorted[i])
			}
		})
	}
}

func (m *LockManager) ref(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &keyLock{}
		m.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (m *LockManager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, key)
	}
}

func dedupeSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}
