package timerecord

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindEntry    Kind = "entry"
	KindExit     Kind = "exit"
	KindLunchOut Kind = "lunch_out"
	KindLunchIn  Kind = "lunch_in"
)

// TimeRecord is a single clock event. Records are read-only inputs to aggregation.
type TimeRecord struct {
	EmployeeID string
	Timestamp  time.Time
	Kind       Kind
}

// Summary is the reduction of one employee's records over a period.
type Summary struct {
	WorkedMinutes   int
	OvertimeMinutes int
	AbsenceMinutes  int
	CompleteDays    int
	IncompleteDays  []time.Time
}

var sixty = decimal.NewFromInt(60)

func (s Summary) WorkedHours() decimal.Decimal {
	return decimal.NewFromInt(int64(s.WorkedMinutes)).Div(sixty)
}

func (s Summary) OvertimeHours() decimal.Decimal {
	return decimal.NewFromInt(int64(s.OvertimeMinutes)).Div(sixty)
}

func (s Summary) AbsenceHours() decimal.Decimal {
	return decimal.NewFromInt(int64(s.AbsenceMinutes)).Div(sixty)
}

// IsIncomplete reports whether date (compared as a civil date) was flagged incomplete.
func (s Summary) IsIncomplete(date time.Time) bool {
	y, m, d := date.Date()
	for _, day := range s.IncompleteDays {
		dy, dm, dd := day.Date()
		if dy == y && dm == m && dd == d {
			return true
		}
	}
	return false
}
