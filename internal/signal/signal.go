package signal

import (
	"time"

	"vol-spread-monitor/internal/types"
)

const (
	// EUCrisisThreshold is the spread above which entry is skipped. The
	// comparison is strict: a spread of exactly 10 is not a crisis.
	EUCrisisThreshold = 10.0

	// WeekOneMaxDay is the last day of the month in the entry window.
	WeekOneMaxDay = 7

	// VStoxxPerVIX is the number of vStoxx contracts held long per short VIX
	// contract to keep the position roughly dollar-neutral.
	VStoxxPerVIX = 8
)

// Evaluate applies the entry rule to two closes and the calendar date. Only
// today's day of month is read; the time zone is the caller's choice.
func Evaluate(vix, vstoxx float64, today time.Time) types.Verdict {
	spread := vstoxx - vix
	crisis := spread > EUCrisisThreshold
	weekOne := today.Day() <= WeekOneMaxDay

	return types.Verdict{
		Spread:   spread,
		EUCrisis: crisis,
		WeekOne:  weekOne,
		Enter:    weekOne && !crisis,
	}
}

// Classify maps a verdict to exactly one outcome. Outside week one the crisis
// flag does not matter.
func Classify(v types.Verdict) types.Outcome {
	switch {
	case v.Enter:
		return types.OutcomeEnter
	case !v.WeekOne:
		return types.OutcomeNoSignal
	default:
		return types.OutcomeSkipCrisis
	}
}
