// Package cooldown decides whether a player may make another attempt and,
// if not, how long they must wait.
package cooldown

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// DefaultWindow is the rolling cooldown between two successful attempts.
const DefaultWindow = 24 * time.Hour

// DefaultResetSchedule resets eligibility at midnight.
const DefaultResetSchedule = "0 0 * * *"

// Status is the result of a cooldown check.
type Status struct {
	// Eligible is true when a new attempt is allowed.
	Eligible bool
	// Remaining is the non-negative wait until the next allowed attempt;
	// zero when Eligible.
	Remaining time.Duration
}

// Hours returns the whole hours of Remaining.
func (s Status) Hours() int {
	return int(s.Remaining / time.Hour)
}

// Minutes returns the whole minutes of Remaining left after Hours.
func (s Status) Minutes() int {
	return int((s.Remaining % time.Hour) / time.Minute)
}

func (s Status) String() string {
	if s.Eligible {
		return "eligible"
	}
	return fmt.Sprintf("on cooldown for %dh %dm", s.Hours(), s.Minutes())
}

// Policy decides eligibility from the last attempt time.
type Policy interface {
	// NextAttempt returns the earliest time an attempt is allowed after last.
	NextAttempt(last time.Time) time.Time
}

// Check returns the cooldown status of rec at now under p. A nil rec (no
// record for the user yet) is always eligible.
//
// Postcondition: Remaining == max(0, p.NextAttempt(last) - now); Eligible == (Remaining == 0).
func Check(p Policy, rec *record.PlayerRecord, now time.Time) Status {
	if rec == nil {
		return Status{Eligible: true}
	}
	remaining := p.NextAttempt(rec.LastAttemptTime()).Sub(now)
	if remaining <= 0 {
		return Status{Eligible: true}
	}
	return Status{Remaining: remaining}
}

// RollingPolicy allows one attempt per fixed window measured from the last
// attempt. It has no calendar or timezone dependency.
type RollingPolicy struct {
	Window time.Duration
}

// NewRollingPolicy returns a RollingPolicy with the given window.
//
// Precondition: window > 0.
func NewRollingPolicy(window time.Duration) RollingPolicy {
	if window <= 0 {
		panic("cooldown: rolling window must be positive")
	}
	return RollingPolicy{Window: window}
}

// NextAttempt implements Policy.
func (p RollingPolicy) NextAttempt(last time.Time) time.Time {
	return last.Add(p.Window)
}

// CalendarPolicy resets eligibility at fixed wall-clock times given by a
// five-field cron schedule evaluated in a time zone, e.g. "0 0 * * *" for
// local midnight.
type CalendarPolicy struct {
	schedule cron.Schedule
	loc      *time.Location
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewCalendarPolicy parses spec and returns a CalendarPolicy in loc.
//
// Precondition: loc must be non-nil.
// Postcondition: Returns the policy, or an error when spec does not parse or
// never fires.
func NewCalendarPolicy(spec string, loc *time.Location) (*CalendarPolicy, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing reset schedule %q: %w", spec, err)
	}
	// Next returns the zero time for dates that do not exist, such as 30 February.
	if sched.Next(time.Now().In(loc)).IsZero() {
		return nil, fmt.Errorf("reset schedule %q never fires", spec)
	}
	return &CalendarPolicy{schedule: sched, loc: loc}, nil
}

// NextAttempt implements Policy: the first scheduled reset after last.
func (p *CalendarPolicy) NextAttempt(last time.Time) time.Time {
	return p.schedule.Next(last.In(p.loc))
}
