package economy

import "time"

// Transition names the outcome of a streak evaluation.
type Transition string

const (
	TransitionFresh     Transition = "fresh"
	TransitionSameDay   Transition = "same_day"
	TransitionContinued Transition = "continued"
	TransitionBroken    Transition = "broken"
)

// DefaultStreakMinClicks is yesterday's click count needed to keep a streak.
const DefaultStreakMinClicks = 100

// StreakInput is everything the streak rules look at.
type StreakInput struct {
	LastLoginDate   *time.Time
	StreakDays      int
	YesterdayClicks int64
	Today           time.Time
	MinClicks       int64
}

// StreakOutcome is the state to persist after an evaluation.
// On SameDay nothing changes and callers must not write.
type StreakOutcome struct {
	Transition       Transition
	StreakDays       int
	LastLoginDate    time.Time
	ResetDailyClicks bool
}

// Changed reports whether the outcome needs to be persisted.
func (o StreakOutcome) Changed() bool {
	return o.Transition != TransitionSameDay
}

// EvaluateStreak applies the once-per-UTC-day streak rules.
func EvaluateStreak(in StreakInput) StreakOutcome {
	today := truncateDay(in.Today)

	if in.LastLoginDate == nil {
		return StreakOutcome{
			Transition:       TransitionFresh,
			StreakDays:       1,
			LastLoginDate:    today,
			ResetDailyClicks: true,
		}
	}

	last := truncateDay(*in.LastLoginDate)
	// A login date at or after today is a re-entry; clock skew must not
	// reset anyone.
	if !last.Before(today) {
		return StreakOutcome{
			Transition:    TransitionSameDay,
			StreakDays:    in.StreakDays,
			LastLoginDate: last,
		}
	}

	yesterday := today.AddDate(0, 0, -1)
	if last.Equal(yesterday) && in.YesterdayClicks >= in.MinClicks {
		days := in.StreakDays
		if days < 1 {
			days = 1
		}
		return StreakOutcome{
			Transition:       TransitionContinued,
			StreakDays:       days + 1,
			LastLoginDate:    today,
			ResetDailyClicks: true,
		}
	}

	return StreakOutcome{
		Transition:       TransitionBroken,
		StreakDays:       1,
		LastLoginDate:    today,
		ResetDailyClicks: true,
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
