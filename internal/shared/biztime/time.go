// Package biztime provides the business timezone used for cron schedules and
// the UTC clock used for every stored timestamp.
//
// All storage uses UTC. The business timezone only decides when the daily
// reconciliation jobs fire.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTimezone is the default business timezone.
	DefaultTimezone = "Europe/Paris"
)

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init initializes the business timezone. Should be called once at startup.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// Location returns the business timezone, initializing the default on first use.
func Location() *time.Location {
	if bizLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to auto-initialize with default timezone: %v", err))
		}
	}
	return bizLocation
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock returns the current time. Use cases hold one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the production Clock.
var SystemClock Clock = NowUTC

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}
