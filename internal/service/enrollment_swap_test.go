package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

func swapFixture(t *testing.T) *registrationFixture {
	t.Helper()
	f := newRegistrationFixture(t)
	f.course("CZ2002", 3, indexSpec{index: "10101", vacancy: 1}, indexSpec{index: "10102", vacancy: 1})
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	f.enroll("bob", "CZ2002", "10102")
	return f
}

func swapRequest(peer, own, theirs string) models.SwapRequest {
	return models.SwapRequest{CourseCode: "CZ2002", OwnIndex: own, PeerUsername: peer, PeerIndex: theirs}
}

func TestSwapExchangesIndexes(t *testing.T) {
	f := swapFixture(t)

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapSuccess, result.Outcome)
	require.NotNil(t, result.OwnResult)
	assert.Equal(t, models.OutcomeSuccess, *result.OwnResult)

	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10102")}, f.record("alice").Enrolled)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10101")}, f.record("bob").Enrolled)
	assert.Equal(t, []string{"bob"}, f.section("CZ2002", "10101").Enrolled)
	assert.Equal(t, []string{"alice"}, f.section("CZ2002", "10102").Enrolled)
	assert.Equal(t, 0, f.section("CZ2002", "10101").Vacancy)
	assert.Equal(t, 3, f.record("alice").TotalAU)
}

func TestSwapPreconditions(t *testing.T) {
	f := swapFixture(t)
	f.course("CZ2003", 3, indexSpec{index: "20201", vacancy: 1})
	f.student("carol")
	f.enroll("carol", "CZ2003", "20201")

	cases := []struct {
		name     string
		username string
		req      models.SwapRequest
		want     models.SwapOutcome
	}{
		{"own index not held", "alice", swapRequest("bob", "10102", "10101"), models.SwapOwnNotEnrolled},
		{"peer index not held", "alice", swapRequest("carol", "10101", "10102"), models.SwapPeerNotEnrolled},
		{"peer unknown", "alice", swapRequest("ghost", "10101", "10102"), models.SwapPeerNotEnrolled},
		{"different courses", "alice", models.SwapRequest{CourseCode: "CZ2002", OwnIndex: "10101", PeerUsername: "carol", PeerCourseCode: "CZ2003", PeerIndex: "20201"}, models.SwapDifferentCourses},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := f.engine.Swap(f.ctx, tc.username, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Outcome)
		})
	}

	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10101")}, f.record("alice").Enrolled)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10102")}, f.record("bob").Enrolled)

	_, err := f.engine.Swap(f.ctx, "alice", swapRequest("alice", "10101", "10102"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSwapFailedRestoresBothStudents(t *testing.T) {
	f := newRegistrationFixture(t)
	monday := f.lesson("LT1", "MON", 900, 1000)
	tuesday := f.lesson("LT1", "TUE", 900, 1000)
	busy := f.lesson("LT9", "TUE", 930, 1030)
	f.course("CZ2002", 3,
		indexSpec{index: "10101", vacancy: 1, lessons: []int64{monday}},
		indexSpec{index: "10102", vacancy: 1, lessons: []int64{tuesday}},
	)
	f.course("CZ2005", 3, indexSpec{index: "1", vacancy: 5, lessons: []int64{busy}})
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	f.enroll("alice", "CZ2005", "1")
	f.enroll("bob", "CZ2002", "10102")

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapFailed, result.Outcome)
	require.NotNil(t, result.OwnResult)
	assert.Equal(t, models.OutcomeScheduleConflict, *result.OwnResult)
	require.NotNil(t, result.PeerResult)
	assert.Equal(t, models.OutcomeSuccess, *result.PeerResult)

	alice := f.record("alice")
	assert.ElementsMatch(t, []models.CourseRef{courseRef("CZ2002", "10101"), courseRef("CZ2005", "1")}, alice.Enrolled)
	assert.Equal(t, 6, alice.TotalAU)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10102")}, f.record("bob").Enrolled)
	assert.Equal(t, []string{"alice"}, f.section("CZ2002", "10101").Enrolled)
	assert.Equal(t, []string{"bob"}, f.section("CZ2002", "10102").Enrolled)
}

// clashFixture puts alice in CZ2002/10101 (MON) and bob in CZ2002/10102 (TUE).
// Each student can be given a course that clashes with the other index.
func clashFixture(t *testing.T, aliceBusyTuesday, bobBusyMonday bool) *registrationFixture {
	t.Helper()
	f := newRegistrationFixture(t)
	monday := f.lesson("LT1", "MON", 900, 1000)
	tuesday := f.lesson("LT1", "TUE", 900, 1000)
	f.course("CZ2002", 3,
		indexSpec{index: "10101", vacancy: 1, lessons: []int64{monday}},
		indexSpec{index: "10102", vacancy: 1, lessons: []int64{tuesday}},
	)
	f.student("alice", "bob")
	f.enroll("alice", "CZ2002", "10101")
	f.enroll("bob", "CZ2002", "10102")
	if aliceBusyTuesday {
		busy := f.lesson("LT9", "TUE", 930, 1030)
		f.course("CZ2005", 3, indexSpec{index: "1", vacancy: 5, lessons: []int64{busy}})
		f.enroll("alice", "CZ2005", "1")
	}
	if bobBusyMonday {
		busy := f.lesson("LT8", "MON", 930, 1030)
		f.course("CZ2006", 3, indexSpec{index: "1", vacancy: 5, lessons: []int64{busy}})
		f.enroll("bob", "CZ2006", "1")
	}
	return f
}

func assertSwapRestored(t *testing.T, f *registrationFixture) {
	t.Helper()
	own, theirs := f.section("CZ2002", "10101"), f.section("CZ2002", "10102")
	assert.Equal(t, []string{"alice"}, own.Enrolled)
	assert.Equal(t, []string{"bob"}, theirs.Enrolled)
	assert.Equal(t, 0, own.Vacancy)
	assert.Equal(t, 0, theirs.Vacancy)
	assert.Equal(t, 0, own.CourseVacancy)
}

func TestSwapFailedWhenBothEnrollmentsFail(t *testing.T) {
	f := clashFixture(t, true, true)

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapFailed, result.Outcome)
	require.NotNil(t, result.OwnResult)
	assert.Equal(t, models.OutcomeScheduleConflict, *result.OwnResult)
	require.NotNil(t, result.PeerResult)
	assert.Equal(t, models.OutcomeScheduleConflict, *result.PeerResult)

	alice, bob := f.record("alice"), f.record("bob")
	assert.ElementsMatch(t, []models.CourseRef{courseRef("CZ2002", "10101"), courseRef("CZ2005", "1")}, alice.Enrolled)
	assert.ElementsMatch(t, []models.CourseRef{courseRef("CZ2002", "10102"), courseRef("CZ2006", "1")}, bob.Enrolled)
	assert.Equal(t, 6, alice.TotalAU)
	assert.Equal(t, 6, bob.TotalAU)
	assertSwapRestored(t, f)
}

func TestSwapFailedWhenOnlyInitiatorSucceeds(t *testing.T) {
	f := clashFixture(t, false, true)

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapFailed, result.Outcome)
	require.NotNil(t, result.OwnResult)
	assert.Equal(t, models.OutcomeSuccess, *result.OwnResult)
	require.NotNil(t, result.PeerResult)
	assert.Equal(t, models.OutcomeScheduleConflict, *result.PeerResult)

	alice, bob := f.record("alice"), f.record("bob")
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10101")}, alice.Enrolled)
	assert.ElementsMatch(t, []models.CourseRef{courseRef("CZ2002", "10102"), courseRef("CZ2006", "1")}, bob.Enrolled)
	assert.Equal(t, 3, alice.TotalAU)
	assert.Equal(t, 6, bob.TotalAU)
	assertSwapRestored(t, f)
}

func TestSwapRestoreBlockedByCourseCounterIsPartial(t *testing.T) {
	f := clashFixture(t, false, true)
	// Course counter below the sum of its index counters.
	_, err := f.store.Courses().Update(f.ctx, "CZ2002", func(c *models.Course) error {
		c.Vacancy = -1
		return nil
	})
	require.NoError(t, err)

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapPartialFailure, result.Outcome)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10101")}, f.record("alice").Enrolled)
	assert.Empty(t, f.section("CZ2002", "10102").Enrolled)
	assert.Equal(t, 1, f.logs.FilterMessage("swap restoration failed").Len())
}

func TestSwapStorageFailureMidwayIsPartial(t *testing.T) {
	f := swapFixture(t)
	f.students.failWhen(func(username string) bool { return username == "bob" })

	result, err := f.engine.Swap(f.ctx, "alice", swapRequest("bob", "10101", "10102"))
	require.NoError(t, err)
	assert.Equal(t, models.SwapPartialFailure, result.Outcome)

	f.students.failWhen(nil)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10101")}, f.record("alice").Enrolled)
	assert.Equal(t, []models.CourseRef{courseRef("CZ2002", "10102")}, f.record("bob").Enrolled)
	assert.Equal(t, []string{"alice"}, f.section("CZ2002", "10101").Enrolled)
	assert.Equal(t, []string{"bob"}, f.section("CZ2002", "10102").Enrolled)
}
