package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
)

// DashboardRepository serves the read-only dashboard projections. Aggregate
// SQL is built with goqu's default dialect ("?" placeholders, double-quoted
// identifiers), which both Postgres and SQLite accept once gorm rebinds the
// placeholders.
type DashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// WithContext returns the repository's handle bound to ctx.
func (r *DashboardRepository) WithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Counters holds every scalar on the dashboard.
type Counters struct {
	TotalBooks          int64
	ActiveLoans         int64
	OverdueLoans        int64
	TodayAttendance     int64
	PendingReservations int64
	TotalPersons        int64
	ActivePersons       int64
	PeriodBorrowings    int64
	PeriodReturns       int64
	PeriodNewPersons    int64
}

type CategoryCount struct {
	Category string
	Count    int64
}

type countQuery struct {
	name string
	ds   *goqu.SelectDataset
	dest *int64
}

// Counters runs the scalar aggregates. since bounds the period counters and
// dayStart bounds today's attendance.
func (r *DashboardRepository) Counters(db *gorm.DB, now, since, dayStart time.Time) (*Counters, error) {
	if db == nil {
		db = r.db
	}
	borrowed := string(models.BorrowingStatusBorrowed)
	c := &Counters{}

	queries := []countQuery{
		{"total books", goqu.From("books"), &c.TotalBooks},
		{"active loans", goqu.From("borrowings").
			Where(goqu.C("status").Eq(borrowed)), &c.ActiveLoans},
		{"overdue loans", goqu.From("borrowings").
			Where(goqu.C("status").Eq(borrowed), goqu.C("due_date").Lt(now)), &c.OverdueLoans},
		{"today attendance", goqu.From("attendance").
			Where(goqu.C("check_in_time").Gte(dayStart)), &c.TodayAttendance},
		{"pending reservations", goqu.From("reservations").
			Where(goqu.C("status").Eq(string(models.ReservationStatusWaiting))), &c.PendingReservations},
		{"total persons", goqu.From("persons"), &c.TotalPersons},
		{"active persons", goqu.From("persons").
			Where(goqu.C("status").Eq(string(models.PersonStatusActive))), &c.ActivePersons},
		{"period borrowings", goqu.From("borrowings").
			Where(goqu.C("borrow_date").Gte(since)), &c.PeriodBorrowings},
		{"period returns", goqu.From("borrowings").
			Where(goqu.C("return_date").IsNotNull(), goqu.C("return_date").Gte(since)), &c.PeriodReturns},
		{"period new persons", goqu.From("persons").
			Where(goqu.C("created_at").Gte(since)), &c.PeriodNewPersons},
	}

	for _, q := range queries {
		n, err := r.count(db, q.ds)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", q.name, err)
		}
		*q.dest = n
	}
	return c, nil
}

// CategoryCounts returns every category with its book count, largest first.
// Ties keep the order in which the categories first appeared in the catalog.
func (r *DashboardRepository) CategoryCounts(db *gorm.DB) ([]CategoryCount, error) {
	if db == nil {
		db = r.db
	}
	query, args, err := goqu.From("books").
		Prepared(true).
		Select(goqu.C("category"), goqu.COUNT(goqu.Star()).As("count")).
		GroupBy(goqu.C("category")).
		Order(goqu.COUNT(goqu.Star()).Desc(), goqu.MIN("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build category query: %w", err)
	}
	var rows []CategoryCount
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DashboardRepository) count(db *gorm.DB, ds *goqu.SelectDataset) (int64, error) {
	query, args, err := ds.Prepared(true).Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// ─── Recent Activity ──────────────────────────────────────────────────────────

func (r *DashboardRepository) RecentBorrowings(db *gorm.DB, since time.Time, limit int) ([]models.Borrowing, error) {
	return r.recentBorrowings(db, "borrow_date", since, limit)
}

func (r *DashboardRepository) RecentReturns(db *gorm.DB, since time.Time, limit int) ([]models.Borrowing, error) {
	return r.recentBorrowings(db, "return_date", since, limit)
}

func (r *DashboardRepository) recentBorrowings(db *gorm.DB, column string, since time.Time, limit int) ([]models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	var rows []models.Borrowing
	err := db.Preload("Book").Preload("Person").
		Where(column+" IS NOT NULL AND "+column+" >= ?", since).
		Order(column + " DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *DashboardRepository) RecentCheckIns(db *gorm.DB, since time.Time, limit int) ([]models.Attendance, error) {
	if db == nil {
		db = r.db
	}
	var rows []models.Attendance
	err := db.Preload("Person").
		Where("check_in_time >= ?", since).
		Order("check_in_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *DashboardRepository) RecentReservations(db *gorm.DB, since time.Time, limit int) ([]models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var rows []models.Reservation
	err := db.Preload("Book").Preload("Person").
		Where("reservation_date >= ?", since).
		Order("reservation_date DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
