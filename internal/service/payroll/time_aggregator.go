package payroll

import (
	"slices"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/schedule"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
)

type dayState struct {
	worked      int
	incomplete  bool
	lunchPaired bool
}

type openShift struct {
	day      *dayState
	entry    time.Time
	lunchOut *time.Time
	lunch    int
	hadLunch bool
}

// AggregateTime reduces the records of one employee over the period.
//
// A shift opens on entry, closes on exit and belongs to the civil date of its entry, so an
// exit after midnight still closes the previous day. A day counts only when every shift
// closed (and, with a lunch policy, a lunch pair was recorded); otherwise it contributes
// zero minutes and is listed in IncompleteDays.
//
// Records from the day before the period are read so a shift opened in the previous period
// closes against its own entry. Exit or lunch records of such a shift whose entry is missing
// are dropped up to the end of the first day, as long as no in-period entry came before them.
func AggregateTime(employeeID string, period payroll.Period, records []timerecord.TimeRecord, sched schedule.WorkSchedule, toleranceMinutes int) timerecord.Summary {
	loc := sched.Loc()
	start := period.Start(loc)
	end := period.End(loc)

	// One extra day on each side so overnight shifts crossing a period edge can close.
	from := start.AddDate(0, 0, -1)
	firstDayEnd := start.AddDate(0, 0, 1)
	sorted := make([]timerecord.TimeRecord, 0, len(records))
	for _, r := range records {
		if employeeID != "" && r.EmployeeID != "" && r.EmployeeID != employeeID {
			continue
		}
		if r.Timestamp.Before(from) || !r.Timestamp.Before(end.AddDate(0, 0, 1)) {
			continue
		}
		sorted = append(sorted, r)
	}
	slices.SortStableFunc(sorted, func(a, b timerecord.TimeRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	days := make(map[civilDate]*dayState)
	dayOf := func(ts time.Time) *dayState {
		local := ts.In(loc)
		key := civil(local)
		d, ok := days[key]
		if !ok {
			d = &dayState{}
			days[key] = d
		}
		return d
	}

	var (
		open        *openShift
		periodEntry bool
	)
	for _, r := range sorted {
		// Tail of a shift that started before the loaded records.
		if open == nil && r.Kind != timerecord.KindEntry && !periodEntry && r.Timestamp.Before(firstDayEnd) {
			continue
		}
		switch r.Kind {
		case timerecord.KindEntry:
			if open != nil {
				open.day.incomplete = true
			}
			if !r.Timestamp.Before(start) {
				periodEntry = true
			}
			open = &openShift{day: dayOf(r.Timestamp), entry: r.Timestamp}
		case timerecord.KindLunchOut:
			if open == nil || open.lunchOut != nil {
				markIncomplete(open, dayOf, r.Timestamp)
				continue
			}
			ts := r.Timestamp
			open.lunchOut = &ts
		case timerecord.KindLunchIn:
			if open == nil || open.lunchOut == nil {
				markIncomplete(open, dayOf, r.Timestamp)
				continue
			}
			open.lunch += minutesBetween(*open.lunchOut, r.Timestamp)
			open.lunchOut = nil
			open.hadLunch = true
		case timerecord.KindExit:
			if open == nil {
				dayOf(r.Timestamp).incomplete = true
				continue
			}
			if open.lunchOut != nil {
				open.day.incomplete = true
			}
			worked := minutesBetween(open.entry, r.Timestamp) - open.lunch
			if worked < 0 {
				worked = 0
			}
			open.day.worked += worked
			if open.hadLunch {
				open.day.lunchPaired = true
			}
			open = nil
		}
	}
	if open != nil {
		open.day.incomplete = true
	}

	var (
		summary       timerecord.Summary
		weekRegular   = make(map[[2]int]int)
		lastInPeriod  = end.AddDate(0, 0, -1)
		weeklyLimited = sched.WeeklyMinutes > 0
	)
	for d := start; !d.After(lastInPeriod); d = d.AddDate(0, 0, 1) {
		scheduled := sched.MinutesOn(d)
		worked := 0
		if st, ok := days[civil(d)]; ok {
			complete := !st.incomplete && (!sched.LunchRequired || st.lunchPaired)
			if complete {
				worked = st.worked
				summary.CompleteDays++
			} else {
				summary.IncompleteDays = append(summary.IncompleteDays, d)
			}
		}

		overtime := 0
		if worked > scheduled {
			overtime = worked - scheduled
		}
		regular := worked - overtime
		if weeklyLimited {
			y, w := d.ISOWeek()
			key := [2]int{y, w}
			if over := weekRegular[key] + regular - sched.WeeklyMinutes; over > 0 {
				if over > regular {
					over = regular
				}
				overtime += over
				regular -= over
			}
			weekRegular[key] += regular
		}

		if scheduled > 0 {
			if short := scheduled - worked; short > toleranceMinutes {
				summary.AbsenceMinutes += short
			}
		}
		summary.WorkedMinutes += worked
		summary.OvertimeMinutes += overtime
	}

	return summary
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func civil(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func markIncomplete(open *openShift, dayOf func(time.Time) *dayState, ts time.Time) {
	if open != nil {
		open.day.incomplete = true
		return
	}
	dayOf(ts).incomplete = true
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
