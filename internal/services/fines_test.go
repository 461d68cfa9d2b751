package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_calculateFine(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	rate := decimal.RequireFromString("0.50")

	tests := []struct {
		name     string
		returned time.Time
		want     string
	}{
		{"early", due.Add(-48 * time.Hour), "0"},
		{"exactly on due time", due, "0"},
		{"late same calendar day", due.Add(2 * time.Hour), "0.5"},
		{"just past midnight", time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC), "0.5"},
		{"three days late", due.AddDate(0, 0, 3), "1.5"},
		{"thirty days late", due.AddDate(0, 0, 30), "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateFine(due, tt.returned, rate)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func Test_calculateFine_ZeroRate(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	got := calculateFine(due, due.AddDate(0, 0, 5), decimal.Zero)

	assert.True(t, got.IsZero())
}
