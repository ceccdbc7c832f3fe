// Package markethours decides whether the exchange is open, either from an
// offline calendar or by caching a remote clock.
package markethours

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // exchange zones must resolve on minimal images
)

// Calendar is an offline exchange session calendar.
type Calendar struct {
	Name        string
	Location    *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int

	holidays    map[string]bool
	earlyCloses map[string]int // date → close hour
	now         func() time.Time
}

// NYSE returns the New York Stock Exchange calendar:
// 9:30 AM – 4:00 PM America/New_York, Mon–Fri, excluding holidays.
func NYSE() *Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata is embedded; keep a fixed EST fallback anyway
		loc = time.FixedZone("EST", -5*3600)
	}
	c := &Calendar{
		Name:        "NYSE",
		Location:    loc,
		OpenHour:    9,
		OpenMinute:  30,
		CloseHour:   16,
		CloseMinute: 0,
		holidays:    make(map[string]bool, len(nyseHolidays2026)),
		earlyCloses: make(map[string]int, len(nyseEarlyCloses2026)),
		now:         time.Now,
	}
	for _, h := range nyseHolidays2026 {
		c.holidays[dateKey(2026, h.month, h.day)] = true
	}
	for _, h := range nyseEarlyCloses2026 {
		c.earlyCloses[dateKey(2026, h.month, h.day)] = 13
	}
	return c
}

// IsOpen implements model.MarketClock against the wall clock.
func (c *Calendar) IsOpen(ctx context.Context) (bool, error) {
	return c.IsOpenAt(c.now()), nil
}

// IsOpenAt returns true if t falls within trading hours on a trading day.
func (c *Calendar) IsOpenAt(t time.Time) bool {
	local := t.In(c.Location)
	if !c.IsTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	closeHour, closeMinute := c.closeOn(local)
	return hm >= c.OpenHour*60+c.OpenMinute && hm < closeHour*60+closeMinute
}

// IsHoliday returns true if t's exchange date is a full holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	local := t.In(c.Location)
	return c.holidays[dateKey(local.Year(), local.Month(), local.Day())]
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.Location)
	wd := local.Weekday()
	return wd >= time.Monday && wd <= time.Friday && !c.IsHoliday(local)
}

func (c *Calendar) closeOn(local time.Time) (hour, minute int) {
	if h, ok := c.earlyCloses[dateKey(local.Year(), local.Month(), local.Day())]; ok {
		return h, 0
	}
	return c.CloseHour, c.CloseMinute
}

// NextOpen returns the next session open. If t is before today's open on a
// trading day, returns today's open.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.Location)

	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), c.OpenHour, c.OpenMinute, 0, 0, c.Location)
	if local.Before(todayOpen) && c.IsTradingDay(local) {
		return todayOpen
	}

	d := local.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if c.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), c.OpenHour, c.OpenMinute, 0, 0, c.Location)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, c.OpenHour, c.OpenMinute, 0, 0, c.Location)
}

// TodayClose returns the close of t's exchange date, early closes included.
func (c *Calendar) TodayClose(t time.Time) time.Time {
	local := t.In(c.Location)
	h, m := c.closeOn(local)
	return time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, c.Location)
}

// TimeUntilClose returns the duration until today's close, 0 once closed.
func (c *Calendar) TimeUntilClose(t time.Time) time.Duration {
	d := c.TodayClose(t).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsOpenAt(t) {
		return fmt.Sprintf("%s open, closes in %s", c.Name, fmtDur(c.TimeUntilClose(t)))
	}
	next := c.NextOpen(t)
	local := next.In(c.Location)
	return fmt.Sprintf("%s closed, opens %s %s (%s)",
		c.Name, local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// AlwaysOpen is a clock for replays and backtests.
type AlwaysOpen struct{}

func (AlwaysOpen) IsOpen(context.Context) (bool, error) { return true, nil }
