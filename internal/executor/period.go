package executor

import (
	"strconv"
	"strings"
)

// DefaultPeriodDays is used for any period token that does not parse.
const DefaultPeriodDays = 30

// MaxPeriodDays caps parsed windows at ten years.
const MaxPeriodDays = 3650

// ParsePeriodToDays converts "<N>h", "<N>d", "<N>w" or "<N>m" into whole days.
// Hours round up to at least one day, a month counts as 30 days, and results
// never exceed MaxPeriodDays.
func ParsePeriodToDays(token string) int {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) < 2 {
		return DefaultPeriodDays
	}
	n, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || n <= 0 {
		return DefaultPeriodDays
	}
	// Bounding n first keeps the multiplications below from overflowing.
	n = min(n, MaxPeriodDays*24)
	switch token[len(token)-1] {
	case 'h':
		return (n + 23) / 24
	case 'd':
		return min(n, MaxPeriodDays)
	case 'w':
		return min(n*7, MaxPeriodDays)
	case 'm':
		return min(n*30, MaxPeriodDays)
	default:
		return DefaultPeriodDays
	}
}
