package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/stars-api/internal/models"
)

func TestLockManagerSerialisesSameKey(t *testing.T) {
	locks := NewLockManager()
	ref := models.CourseRef{CourseCode: "CZ2002", Index: "10101"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(sectionLockKey(ref))
			defer release()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locks.locks)
}

func TestLockManagerOppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := NewLockManager()
	a := sectionLockKey(models.CourseRef{CourseCode: "CZ2002", Index: "1"})
	b := sectionLockKey(models.CourseRef{CourseCode: "CZ2002", Index: "2"})

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); locks.Acquire(a, b)() }()
			go func() { defer wg.Done(); locks.Acquire(b, a)() }()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
}

func TestLockManagerReleaseIsIdempotent(t *testing.T) {
	locks := NewLockManager()
	release := locks.Acquire(studentLockKey("alice"), studentLockKey("alice"))
	release()
	release()

	again := locks.Acquire(studentLockKey("alice"))
	again()
	assert.Empty(t, locks.locks)
}

func TestSectionKeysSortBeforeStudentKeys(t *testing.T) {
	keys := dedupeSorted([]string{studentLockKey("aaron"), sectionLockKey(models.CourseRef{CourseCode: "ZZ9999", Index: "9"})})
	assert.Equal(t, "section:ZZ9999/9", keys[0])
}
