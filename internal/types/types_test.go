package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradingDayIsHoliday(t *testing.T) {
	tests := []struct {
		division string
		want     bool
	}{
		{"0", true},  // non-business day
		{"1", false}, // business day
		{"2", false}, // half trading day
		{"3", false}, // holiday trading day
		{"", false},
	}

	for _, tt := range tests {
		day := TradingDay{Date: "2025-01-01", HolidayDivision: tt.division}
		assert.Equal(t, tt.want, day.IsHoliday(), "division %q", tt.division)
	}
}
