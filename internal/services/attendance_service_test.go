package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

func Test_CheckInThenCheckOut(t *testing.T) {
	// arrange
	h := newHarness(t)
	person := h.person(t, "ana")

	// act
	in, err := h.attendance.CheckIn(h.ctx, person.ID)
	require.NoError(t, err)
	h.clock.Advance(90 * time.Minute)
	out, err := h.attendance.CheckOut(h.ctx, person.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	require.NotNil(t, out.CheckOutTime)
	assert.Equal(t, 90*time.Minute, out.CheckOutTime.Sub(out.CheckInTime))

	records, err := h.attendance.List(h.ctx, repositories.AttendanceFilter{PersonID: &person.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = h.attendance.CheckOut(h.ctx, person.ID)
	assert.ErrorIs(t, err, services.ErrAttendanceNotFound)
}

func Test_CheckIn_Rejections(t *testing.T) {
	h := newHarness(t)
	person := h.person(t, "ana")
	_, err := h.attendance.CheckIn(h.ctx, person.ID)
	require.NoError(t, err)

	_, err = h.attendance.CheckIn(h.ctx, person.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyCheckedIn)

	_, err = h.attendance.CheckIn(h.ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrPersonNotFound)
}

func Test_CheckIn_ConcurrentAttemptsOpenOneRecord(t *testing.T) {
	h := newHarness(t)
	person := h.person(t, "ana")

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		opened   int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.attendance.CheckIn(h.ctx, person.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened++
			case assert.ErrorIs(t, err, services.ErrAlreadyCheckedIn):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Equal(t, attempts-1, rejected)
	open, err := h.attendance.List(h.ctx, repositories.AttendanceFilter{PersonID: &person.ID, OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func Test_CheckOutRecord(t *testing.T) {
	h := newHarness(t)
	record, err := h.attendance.CheckIn(h.ctx, h.person(t, "ana").ID)
	require.NoError(t, err)

	out, err := h.attendance.CheckOutRecord(h.ctx, record.ID)
	require.NoError(t, err)
	assert.NotNil(t, out.CheckOutTime)

	_, err = h.attendance.CheckOutRecord(h.ctx, record.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = h.attendance.CheckOutRecord(h.ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func Test_ListAttendance_OpenAndDateFilters(t *testing.T) {
	h := newHarness(t)
	ana := h.person(t, "ana")
	bo := h.person(t, "bo")
	_, err := h.attendance.CheckIn(h.ctx, ana.ID)
	require.NoError(t, err)
	_, err = h.attendance.CheckOut(h.ctx, ana.ID)
	require.NoError(t, err)
	h.clock.Advance(48 * time.Hour)
	_, err = h.attendance.CheckIn(h.ctx, bo.ID)
	require.NoError(t, err)

	open, err := h.attendance.List(h.ctx, repositories.AttendanceFilter{OpenOnly: true})
	require.NoError(t, err)
	dayStart := h.clock.Now().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	today, err := h.attendance.List(h.ctx, repositories.AttendanceFilter{From: &dayStart, To: &dayEnd})
	require.NoError(t, err)

	require.Len(t, open, 1)
	assert.Equal(t, bo.ID, open[0].PersonID)
	require.Len(t, today, 1)
	assert.Equal(t, "bo", today[0].Person.Name)
}
