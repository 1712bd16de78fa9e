package shared

import "time"

// RecurringPeriod defines the cycle length of a goal-bearing stack
type RecurringPeriod string

const (
	RecurringPeriodNone         RecurringPeriod = "none"
	RecurringPeriodWeekly       RecurringPeriod = "weekly"
	RecurringPeriodBiWeekly     RecurringPeriod = "bi_weekly"
	RecurringPeriodBiMonthly    RecurringPeriod = "bi_monthly"
	RecurringPeriodMonthly      RecurringPeriod = "monthly"
	RecurringPeriodQuarterly    RecurringPeriod = "quarterly"
	RecurringPeriodSemiAnnually RecurringPeriod = "semi_annually"
	RecurringPeriodAnnually     RecurringPeriod = "annually"
)

// IsValid reports whether the period is one of the known values
func (p RecurringPeriod) IsValid() bool {
	switch p {
	case RecurringPeriodNone, RecurringPeriodWeekly, RecurringPeriodBiWeekly,
		RecurringPeriodBiMonthly, RecurringPeriodMonthly, RecurringPeriodQuarterly,
		RecurringPeriodSemiAnnually, RecurringPeriodAnnually:
		return true
	}
	return false
}

// Frequency defines a contribution cadence for auto-allocation and payment plans
type Frequency string

const (
	FrequencyDaily         Frequency = "daily"
	FrequencyEveryOtherDay Frequency = "every_other_day"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyBiWeekly      Frequency = "bi_weekly"
	FrequencyBiMonthly     Frequency = "bi_monthly"
	FrequencyMonthly       Frequency = "monthly"
	FrequencySemiAnnually  Frequency = "semi_annually"
	FrequencyAnnually      Frequency = "annually"
)

// IsValid reports whether the frequency is one of the known values
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyEveryOtherDay, FrequencyWeekly, FrequencyBiWeekly,
		FrequencyBiMonthly, FrequencyMonthly, FrequencySemiAnnually, FrequencyAnnually:
		return true
	}
	return false
}

// PeriodLengthDays returns the nominal period length in days used by the
// payment calculator. Semi-annual periods average to a fractional day count.
func (f Frequency) PeriodLengthDays() float64 {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyEveryOtherDay:
		return 2
	case FrequencyWeekly:
		return 7
	case FrequencyBiWeekly:
		return 14
	case FrequencyBiMonthly:
		return 15
	case FrequencyMonthly:
		return 30
	case FrequencySemiAnnually:
		return 182.5
	case FrequencyAnnually:
		return 365
	default:
		return 30
	}
}

// Next advances a date by one frequency period. Month-based cadences advance
// by calendar months so the day of month is preserved where possible.
func (f Frequency) Next(d time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return d.AddDate(0, 0, 1)
	case FrequencyEveryOtherDay:
		return d.AddDate(0, 0, 2)
	case FrequencyWeekly:
		return d.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return d.AddDate(0, 0, 14)
	case FrequencyBiMonthly:
		return d.AddDate(0, 0, 15)
	case FrequencyMonthly:
		return d.AddDate(0, 1, 0)
	case FrequencySemiAnnually:
		return d.AddDate(0, 6, 0)
	case FrequencyAnnually:
		return d.AddDate(1, 0, 0)
	default:
		return d.AddDate(0, 1, 0)
	}
}

// Next advances a date by one recurring period
func (p RecurringPeriod) Next(d time.Time) time.Time {
	switch p {
	case RecurringPeriodWeekly:
		return d.AddDate(0, 0, 7)
	case RecurringPeriodBiWeekly:
		return d.AddDate(0, 0, 14)
	case RecurringPeriodBiMonthly:
		return d.AddDate(0, 0, 15)
	case RecurringPeriodMonthly:
		return d.AddDate(0, 1, 0)
	case RecurringPeriodQuarterly:
		return d.AddDate(0, 3, 0)
	case RecurringPeriodSemiAnnually:
		return d.AddDate(0, 6, 0)
	case RecurringPeriodAnnually:
		return d.AddDate(1, 0, 0)
	default:
		return d
	}
}

// RollForward advances d period by period until it is strictly after now.
// Stacks neglected for several cycles land on the next upcoming due date
// instead of one in the past. A "none" period returns d unchanged.
func (p RecurringPeriod) RollForward(d, now time.Time) time.Time {
	if p == RecurringPeriodNone {
		return d
	}
	next := d
	for !next.After(now) {
		next = p.Next(next)
	}
	return next
}

// DaysBetween returns the number of whole calendar days from a to b,
// negative when b precedes a. Time-of-day components are ignored.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
