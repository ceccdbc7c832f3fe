package strategy

import (
	"time"
	_ "time/tzdata" // session zones must resolve on minimal images
)

// DefaultZone is the zone the default 22:00 close is expressed in. It
// matches the 16:00 New York close outside the weeks where US and EU
// daylight saving dates differ.
const DefaultZone = "Europe/Paris"

// Session describes the end of the trading day as seen by the rules.
type Session struct {
	// Location is the zone CloseHour is read in. Quote timestamps are
	// converted to it before the close is computed.
	Location *time.Location

	// CloseHour is the hour of the daily close in Location.
	CloseHour int

	// CutoffMinutes before the close no buy is allowed.
	CutoffMinutes float64
}

// DefaultSession closes at 22:00 Europe/Paris with a 15 minute cutoff.
var DefaultSession = Session{Location: defaultLocation(), CloseHour: 22, CutoffMinutes: 15}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// MinutesToClose returns the minutes from latest to the close on latest's
// date, both taken in the session's location.
func (s Session) MinutesToClose(latest time.Time) float64 {
	loc := s.Location
	if loc == nil {
		loc = latest.Location()
	}
	local := latest.In(loc)
	closing := time.Date(local.Year(), local.Month(), local.Day(), s.CloseHour, 0, 0, 0, loc)
	return float64(closing.Sub(latest).Milliseconds()) / 60000
}

// BuyAllowed reports whether latest is strictly before the cutoff.
func (s Session) BuyAllowed(latest time.Time) bool {
	return s.MinutesToClose(latest) > s.CutoffMinutes
}

// MustFlatten reports whether latest is inside the cutoff window.
func (s Session) MustFlatten(latest time.Time) bool {
	return s.MinutesToClose(latest) < s.CutoffMinutes
}
