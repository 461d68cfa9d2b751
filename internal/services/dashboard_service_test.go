package services_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

func Test_DashboardStats_Counters(t *testing.T) {
	// arrange
	h := newHarness(t)
	dune := h.book(t, "Dune", "1", "Fiction")
	emma := h.book(t, "Emma", "2", "Fiction")
	h.book(t, "Cosmos", "3", "Science")
	h.book(t, "SPQR", "4", "History")
	ana := h.person(t, "ana")
	bo := h.person(t, "bo")

	_, err := h.library.Borrow(h.ctx, dune.ID, ana.ID)
	require.NoError(t, err)
	h.clock.Advance(20 * 24 * time.Hour)
	_, err = h.library.Borrow(h.ctx, emma.ID, bo.ID)
	require.NoError(t, err)
	_, err = h.library.Reserve(h.ctx, dune.ID, bo.ID)
	require.NoError(t, err)
	_, err = h.attendance.CheckIn(h.ctx, ana.ID)
	require.NoError(t, err)

	// act
	stats, err := h.dashboard.Stats(h.ctx, "")

	// assert
	require.NoError(t, err)
	assert.Equal(t, services.TimeRange30Days, stats.TimeRange)
	assert.Equal(t, int64(4), stats.TotalBooks)
	assert.Equal(t, int64(2), stats.ActiveLoans)
	assert.Equal(t, stats.TotalBooks-stats.ActiveLoans, stats.AvailableBooks)
	assert.Equal(t, int64(1), stats.OverdueLoans)
	assert.Equal(t, int64(1), stats.TodayAttendance)
	assert.Equal(t, int64(1), stats.PendingReservations)
	assert.Equal(t, int64(2), stats.TotalPersons)
	assert.Equal(t, int64(2), stats.ActivePersons)
	assert.Equal(t, int64(2), stats.Period.Borrowings)

	require.Len(t, stats.PopularCategories, 3)
	assert.Equal(t, services.CategoryStat{Category: "Fiction", Count: 2, Percentage: 50}, stats.PopularCategories[0])
	assert.Equal(t, "Science", stats.PopularCategories[1].Category, "ties keep catalog order")
	assert.Equal(t, "History", stats.PopularCategories[2].Category)

	require.Len(t, stats.RecentActivity, 4)
	for i := 1; i < len(stats.RecentActivity); i++ {
		assert.False(t, stats.RecentActivity[i].OccurredAt.After(stats.RecentActivity[i-1].OccurredAt))
	}
	assert.Equal(t, services.ActivityBorrow, stats.RecentActivity[3].Type)
	assert.Equal(t, "Dune", stats.RecentActivity[3].BookTitle)
}

func Test_DashboardStats_WindowExcludesOldActivity(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	h.clock.Advance(10 * 24 * time.Hour)
	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)

	week, err := h.dashboard.Stats(h.ctx, services.TimeRange7Days)
	require.NoError(t, err)
	month, err := h.dashboard.Stats(h.ctx, services.TimeRange30Days)
	require.NoError(t, err)

	assert.Equal(t, int64(0), week.Period.Borrowings)
	assert.Equal(t, int64(1), week.Period.Returns)
	require.Len(t, week.RecentActivity, 1)
	assert.Equal(t, services.ActivityReturn, week.RecentActivity[0].Type)
	assert.Equal(t, int64(1), month.Period.Borrowings)
	assert.Len(t, month.RecentActivity, 2)
	assert.Equal(t, month.TotalBooks, month.AvailableBooks)
}

func Test_DashboardStats_TopFiveCategories(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		for j := 0; j <= i; j++ {
			h.book(t, fmt.Sprintf("Book %d-%d", i, j), fmt.Sprintf("isbn-%d-%d", i, j), fmt.Sprintf("Cat%d", i))
		}
	}

	stats, err := h.dashboard.Stats(h.ctx, services.TimeRange90Days)

	require.NoError(t, err)
	require.Len(t, stats.PopularCategories, 5)
	assert.Equal(t, "Cat6", stats.PopularCategories[0].Category)
	assert.Equal(t, int64(7), stats.PopularCategories[0].Count)
	assert.Equal(t, 25.0, stats.PopularCategories[0].Percentage)
	assert.Equal(t, "Cat2", stats.PopularCategories[4].Category)
}

func Test_DashboardStats_RejectsUnknownRange(t *testing.T) {
	h := newHarness(t)

	_, err := h.dashboard.Stats(h.ctx, "365days")

	assert.ErrorIs(t, err, services.ErrValidation)
}

func Test_CategoryPercentages_SumToHundred(t *testing.T) {
	counts := []repositories.CategoryCount{{Category: "a", Count: 1}, {Category: "b", Count: 1}, {Category: "c", Count: 1}}

	stats := services.CategoryPercentages(counts, 3)

	var sum float64
	for _, s := range stats {
		assert.Equal(t, 33.3, s.Percentage)
		sum += s.Percentage
	}
	assert.InDelta(t, 100, sum, 0.1*float64(len(stats)))
	assert.Empty(t, services.CategoryPercentages(nil, 0))
}
