// Package relativetime formats creation dates as Portuguese relative phrases
// such as "3 dias atrás".
package relativetime

import (
	"fmt"
	"time"
)

// Layout is used when a date is not in the past.
const Layout = "02/01/2006 15:04:05"

type unit struct {
	singular string
	plural   string
}

var (
	years   = unit{"ano", "anos"}
	months  = unit{"mês", "meses"}
	days    = unit{"dia", "dias"}
	hours   = unit{"hora", "horas"}
	minutes = unit{"minuto", "minutos"}
	seconds = unit{"segundo", "segundos"}
)

func (u unit) phrase(n int) string {
	word := u.plural
	if n == 1 {
		word = u.singular
	}
	return fmt.Sprintf("%d %s atrás", n, word)
}

// FromEpoch describes epoch seconds relative to the current time.
func FromEpoch(epoch int64) string {
	return Since(time.Unix(epoch, 0), time.Now())
}

// Since describes t relative to now using the largest non-zero calendar
// unit. Dates that are not at least one second in the past are printed
// with Layout in t's location.
func Since(t, now time.Time) string {
	t = t.UTC()
	now = now.UTC()
	if !now.After(t) {
		return t.Local().Format(Layout)
	}

	y, m, d := calendarDiff(t, now)
	switch {
	case y > 0:
		return years.phrase(y)
	case m > 0:
		return months.phrase(m)
	case d > 0:
		return days.phrase(d)
	}

	rest := now.Sub(t.AddDate(y, m, d))
	switch {
	case rest >= time.Hour:
		return hours.phrase(int(rest / time.Hour))
	case rest >= time.Minute:
		return minutes.phrase(int(rest / time.Minute))
	case rest >= time.Second:
		return seconds.phrase(int(rest / time.Second))
	}
	return t.Local().Format(Layout)
}

// calendarDiff returns whole years, months and days between from and to
// (from before to), borrowing like a calendar does.
func calendarDiff(from, to time.Time) (y, m, d int) {
	for !from.AddDate(y+1, 0, 0).After(to) {
		y++
	}
	for !from.AddDate(y, m+1, 0).After(to) {
		m++
	}
	for !from.AddDate(y, m, d+1).After(to) {
		d++
	}
	return y, m, d
}
