package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	halfHour = decimal.NewFromInt(int64(30 * time.Minute))
	half     = decimal.NewFromFloat(0.5)
	two      = decimal.NewFromInt(2)
)

// EstimateCost approximates the accrued charge between entry and now: every
// half hour beyond the free hours costs half the hourly rate, with partial
// half hours rounded to the nearest block. The server total stays authoritative.
func EstimateCost(entry, now time.Time, freeHours int, hourlyRate decimal.Decimal) decimal.Decimal {
	extra := now.Sub(entry) - time.Duration(freeHours)*time.Hour
	if extra <= 0 {
		return decimal.Zero
	}

	blocks := decimal.NewFromInt(int64(extra)).Div(halfHour).Add(half).Floor()
	return blocks.Mul(hourlyRate.Div(two)).Round(2)
}
