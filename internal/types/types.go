package types

// Announcement is a scheduled earnings announcement for a listed company.
type Announcement struct {
	Code          string `json:"Code"`
	CompanyName   string `json:"CompanyName"`
	Date          string `json:"Date"` // YYYY-MM-DD
	FiscalYear    string `json:"FiscalYear"`
	FiscalQuarter string `json:"FiscalQuarter"`
}

// HolidayDivisionClosed marks a non-business day in the trading calendar.
const HolidayDivisionClosed = "0"

// TradingDay is a single entry of the exchange trading calendar.
type TradingDay struct {
	Date            string `json:"Date"` // YYYY-MM-DD
	HolidayDivision string `json:"HolidayDivision"`
}

// IsHoliday reports whether the exchange is closed on this day.
func (d TradingDay) IsHoliday() bool {
	return d.HolidayDivision == HolidayDivisionClosed
}
