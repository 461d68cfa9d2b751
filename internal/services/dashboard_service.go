package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

const (
	TimeRange7Days  = "7days"
	TimeRange30Days = "30days"
	TimeRange90Days = "90days"

	topCategories  = 5
	recentActivity = 10
)

var timeRangeDays = map[string]int{
	TimeRange7Days:  7,
	TimeRange30Days: 30,
	TimeRange90Days: 90,
}

type ActivityType string

const (
	ActivityBorrow      ActivityType = "borrow"
	ActivityReturn      ActivityType = "return"
	ActivityCheckIn     ActivityType = "check_in"
	ActivityReservation ActivityType = "reservation"
)

type DashboardStats struct {
	TimeRange           string         `json:"timeRange"`
	TotalBooks          int64          `json:"totalBooks"`
	AvailableBooks      int64          `json:"availableBooks"`
	ActiveLoans         int64          `json:"activeLoans"`
	OverdueLoans        int64          `json:"overdueLoans"`
	TodayAttendance     int64          `json:"todayAttendance"`
	PendingReservations int64          `json:"pendingReservations"`
	TotalPersons        int64          `json:"totalPersons"`
	ActivePersons       int64          `json:"activePersons"`
	Period              PeriodStats    `json:"period"`
	PopularCategories   []CategoryStat `json:"popularCategories"`
	RecentActivity      []Activity     `json:"recentActivity"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}

// PeriodStats counts events inside the selected time range.
type PeriodStats struct {
	Borrowings int64 `json:"borrowings"`
	Returns    int64 `json:"returns"`
	NewPersons int64 `json:"newPersons"`
}

type CategoryStat struct {
	Category   string  `json:"category"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Activity struct {
	Type       ActivityType `json:"type"`
	OccurredAt time.Time    `json:"occurredAt"`
	PersonName string       `json:"personName"`
	BookTitle  string       `json:"bookTitle,omitempty"`
}

type DashboardService interface {
	Stats(ctx context.Context, timeRange string) (*DashboardStats, error)
}

type dashboardService struct {
	options
	repo *repositories.DashboardRepository
}

func NewDashboardService(repos *repositories.Registry, opts ...Option) DashboardService {
	return &dashboardService{options: buildOptions(opts), repo: repos.Dashboard}
}

// ParseTimeRange returns the window length in days. An empty range means 30 days.
func ParseTimeRange(timeRange string) (string, int, error) {
	if timeRange == "" {
		timeRange = TimeRange30Days
	}
	days, ok := timeRangeDays[timeRange]
	if !ok {
		return "", 0, invalid("timeRange", "must be one of 7days, 30days, 90days")
	}
	return timeRange, days, nil
}

// Stats aggregates the dashboard. availableBooks is derived as
// totalBooks - activeLoans so the two can never disagree.
func (s *dashboardService) Stats(ctx context.Context, timeRange string) (*DashboardStats, error) {
	timeRange, days, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := now.AddDate(0, 0, -days)
	dayStart := now.Truncate(24 * time.Hour)

	db := s.repo.WithContext(ctx)

	counters, err := s.repo.Counters(db, now, since, dayStart)
	if err != nil {
		return nil, fmt.Errorf("dashboard counters: %w", err)
	}

	categories, err := s.repo.CategoryCounts(db)
	if err != nil {
		return nil, fmt.Errorf("dashboard categories: %w", err)
	}

	activity, err := s.recentActivity(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard activity: %w", err)
	}

	popular := CategoryPercentages(categories, counters.TotalBooks)
	if len(popular) > topCategories {
		popular = popular[:topCategories]
	}

	return &DashboardStats{
		TimeRange:           timeRange,
		TotalBooks:          counters.TotalBooks,
		AvailableBooks:      counters.TotalBooks - counters.ActiveLoans,
		ActiveLoans:         counters.ActiveLoans,
		OverdueLoans:        counters.OverdueLoans,
		TodayAttendance:     counters.TodayAttendance,
		PendingReservations: counters.PendingReservations,
		TotalPersons:        counters.TotalPersons,
		ActivePersons:       counters.ActivePersons,
		Period: PeriodStats{
			Borrowings: counters.PeriodBorrowings,
			Returns:    counters.PeriodReturns,
			NewPersons: counters.PeriodNewPersons,
		},
		PopularCategories: popular,
		RecentActivity:    activity,
		GeneratedAt:       now,
	}, nil
}

// CategoryPercentages converts counts to shares of total, rounded to one
// decimal place. Order is preserved.
func CategoryPercentages(counts []repositories.CategoryCount, total int64) []CategoryStat {
	stats := make([]CategoryStat, 0, len(counts))
	for _, c := range counts {
		pct := decimal.Zero
		if total > 0 {
			pct = decimal.NewFromInt(c.Count * 100).Div(decimal.NewFromInt(total)).Round(1)
		}
		stats = append(stats, CategoryStat{
			Category:   c.Category,
			Count:      c.Count,
			Percentage: pct.InexactFloat64(),
		})
	}
	return stats
}

func (s *dashboardService) recentActivity(ctx context.Context, since time.Time) ([]Activity, error) {
	db := s.repo.WithContext(ctx)
	var events []Activity

	borrowed, err := s.repo.RecentBorrowings(db, since, recentActivity)
	if err != nil {
		return nil, err
	}
	for _, b := range borrowed {
		events = append(events, Activity{Type: ActivityBorrow, OccurredAt: b.BorrowDate, PersonName: personName(b.Person), BookTitle: bookTitle(b.Book)})
	}

	returned, err := s.repo.RecentReturns(db, since, recentActivity)
	if err != nil {
		return nil, err
	}
	for _, b := range returned {
		events = append(events, Activity{Type: ActivityReturn, OccurredAt: *b.ReturnDate, PersonName: personName(b.Person), BookTitle: bookTitle(b.Book)})
	}

	visits, err := s.repo.RecentCheckIns(db, since, recentActivity)
	if err != nil {
		return nil, err
	}
	for _, a := range visits {
		events = append(events, Activity{Type: ActivityCheckIn, OccurredAt: a.CheckInTime, PersonName: personName(a.Person)})
	}

	holds, err := s.repo.RecentReservations(db, since, recentActivity)
	if err != nil {
		return nil, err
	}
	for _, r := range holds {
		events = append(events, Activity{Type: ActivityReservation, OccurredAt: r.ReservationDate, PersonName: personName(r.Person), BookTitle: bookTitle(r.Book)})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
	if len(events) > recentActivity {
		events = events[:recentActivity]
	}
	if events == nil {
		events = []Activity{}
	}
	return events, nil
}

func personName(p *models.Person) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func bookTitle(b *models.Book) string {
	if b == nil {
		return ""
	}
	return b.Title
}
