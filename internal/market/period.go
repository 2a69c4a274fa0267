// Package market discovers the live 15-minute Up/Down markets and builds
// point-in-time price snapshots across all tracked assets.
package market

import "time"

// PeriodLength is the length of one trading period in seconds.
const PeriodLength int64 = 900

// CurrentPeriod returns the start of the period containing nowSeconds.
func CurrentPeriod(nowSeconds int64) int64 {
	p := nowSeconds / PeriodLength
	if nowSeconds < 0 && nowSeconds%PeriodLength != 0 {
		p--
	}
	return p * PeriodLength
}

// PeriodEnd returns the end of the period starting at period.
func PeriodEnd(period int64) int64 {
	return period + PeriodLength
}

// TimeRemaining returns the seconds left in the period containing nowSeconds.
func TimeRemaining(nowSeconds int64) int64 {
	remaining := PeriodEnd(CurrentPeriod(nowSeconds)) - nowSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PeriodOf returns the period start for t.
func PeriodOf(t time.Time) int64 {
	return CurrentPeriod(t.Unix())
}
