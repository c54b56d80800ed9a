package valueobjects

import "time"

// Term is the length of one paid period, expressed in calendar units so that
// month-long terms follow the calendar.
type Term struct {
	Months int
	Days   int
}

func Days(n int) Term {
	return Term{Days: n}
}

func Months(n int) Term {
	return Term{Months: n}
}

// From returns t advanced by the term.
func (t Term) From(start time.Time) time.Time {
	return start.AddDate(0, t.Months, t.Days)
}

func (t Term) IsZero() bool {
	return t.Months == 0 && t.Days == 0
}
