package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// calculateFine computes the overdue fine for a returned book.
//
// Rules:
//   - No fine    : if returnedAt is on or before dueDate.
//   - Fine rate  : perDay for every calendar day overdue.
//   - Minimum    : one day if any overdue time exists.
//
// Calendar days are counted between UTC midnights, so returning a book late on
// the due date itself costs one day, not zero.
func calculateFine(dueDate, returnedAt time.Time, perDay decimal.Decimal) decimal.Decimal {
	if !returnedAt.After(dueDate) {
		return decimal.Zero
	}

	dueMidnight := dueDate.UTC().Truncate(24 * time.Hour)
	returnedMidnight := returnedAt.UTC().Truncate(24 * time.Hour)

	daysLate := int64(returnedMidnight.Sub(dueMidnight).Hours() / 24)
	if daysLate < 1 {
		daysLate = 1
	}

	return perDay.Mul(decimal.NewFromInt(daysLate)).Round(2)
}
