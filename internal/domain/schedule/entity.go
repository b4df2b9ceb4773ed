package schedule

import "time"

// WorkSchedule is the expected working time of an employee, flattened from the
// schedule and its per-weekday times.
type WorkSchedule struct {
	ID            string
	CompanyID     string
	Name          string
	Days          map[time.Weekday]int // scheduled minutes per weekday
	WeeklyMinutes int                  // 0 means no weekly limit
	LunchRequired bool
	Location      *time.Location
}

// WorkScheduleTime is one weekday row of a schedule.
type WorkScheduleTime struct {
	DayOfWeek         int // 1=Monday, ..., 7=Sunday
	ClockInTime       time.Time
	BreakStartTime    *time.Time
	BreakEndTime      *time.Time
	ClockOutTime      time.Time
	IsNextDayCheckout bool
}

// ScheduledMinutes returns the working minutes of the row, excluding the break.
func (t WorkScheduleTime) ScheduledMinutes() int {
	in := clockMinutes(t.ClockInTime)
	out := clockMinutes(t.ClockOutTime)
	if t.IsNextDayCheckout || out < in {
		out += 24 * 60
	}
	total := out - in
	if t.BreakStartTime != nil && t.BreakEndTime != nil {
		brk := clockMinutes(*t.BreakEndTime) - clockMinutes(*t.BreakStartTime)
		if brk < 0 {
			brk += 24 * 60
		}
		total -= brk
	}
	if total < 0 {
		return 0
	}
	return total
}

// Weekday converts the ISO day number to time.Weekday.
func (t WorkScheduleTime) Weekday() time.Weekday {
	return time.Weekday(t.DayOfWeek % 7)
}

func clockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Build assembles a WorkSchedule from its weekday rows. A break on any row makes lunch mandatory.
func Build(id, companyID, name string, times []WorkScheduleTime, loc *time.Location) WorkSchedule {
	ws := WorkSchedule{
		ID:        id,
		CompanyID: companyID,
		Name:      name,
		Days:      make(map[time.Weekday]int, len(times)),
		Location:  loc,
	}
	for _, t := range times {
		ws.Days[t.Weekday()] = t.ScheduledMinutes()
		if t.BreakStartTime != nil && t.BreakEndTime != nil {
			ws.LunchRequired = true
		}
	}
	return ws
}

// MinutesOn returns the scheduled minutes for the weekday of date.
func (ws WorkSchedule) MinutesOn(date time.Time) int {
	return ws.Days[date.Weekday()]
}

// Loc returns the schedule location, UTC when unset.
func (ws WorkSchedule) Loc() *time.Location {
	if ws.Location == nil {
		return time.UTC
	}
	return ws.Location
}

// Standard returns a Monday to Friday schedule of hoursPerDay hours.
func Standard(hoursPerDay int, lunchRequired bool) WorkSchedule {
	days := make(map[time.Weekday]int, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		days[d] = hoursPerDay * 60
	}
	return WorkSchedule{
		Name:          "standard",
		Days:          days,
		LunchRequired: lunchRequired,
	}
}
