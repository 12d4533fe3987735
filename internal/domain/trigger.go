package domain

import "encoding/json"

// Trigger kinds.
const (
	TriggerCron       = "cron"
	TriggerInterval   = "interval"
	TriggerExecuteNow = "execute_now"
)

// Trigger is the tagged-variant decode of a job's trigger configuration.
// At most one of Cron/Interval is populated, determined by Type (neither
// for an execute_now or empty type, nor for an unrecognized one); ExecuteNow
// may be true regardless of Type — execute_now: true in any trigger makes
// the job non-schedulable.
type Trigger struct {
	Type       string          `json:"type"`
	ExecuteNow bool            `json:"execute_now,omitempty"`
	Cron       *CronFields     `json:"-"`
	Interval   *IntervalFields `json:"-"`
}

// CronFields mirrors an APScheduler-style cron field set. Empty fields
// mean "every" for that unit, following the library's convention when
// parsed by the scheduler's cron builder.
type CronFields struct {
	Year      string `json:"year,omitempty"`
	Month     string `json:"month,omitempty"`
	Day       string `json:"day,omitempty"`
	Week      string `json:"week,omitempty"`
	DayOfWeek string `json:"day_of_week,omitempty"`
	Hour      string `json:"hour,omitempty"`
	Minute    string `json:"minute,omitempty"`
	Second    string `json:"second,omitempty"`
}

// IntervalFields is a duration expressed as component counts.
type IntervalFields struct {
	Weeks   int `json:"weeks,omitempty"`
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Seconds int `json:"seconds,omitempty"`
}

// IsZero reports whether no component was set.
func (i IntervalFields) IsZero() bool {
	return i.Weeks == 0 && i.Days == 0 && i.Hours == 0 && i.Minutes == 0 && i.Seconds == 0
}

// rawTrigger is the wire shape used to decode the union before dispatching
// on its "type" tag.
type rawTrigger struct {
	Type       string      `json:"type"`
	ExecuteNow bool        `json:"execute_now"`
	Year       string      `json:"year"`
	Month      string      `json:"month"`
	Day        string      `json:"day"`
	Week       string      `json:"week"`
	DayOfWeek  string      `json:"day_of_week"`
	Hour       string      `json:"hour"`
	Minute     string      `json:"minute"`
	Second     string      `json:"second"`
	Weeks      int         `json:"weeks"`
	Days       int         `json:"days"`
	Hours      int         `json:"hours"`
	Minutes    int         `json:"minutes"`
	Seconds    int         `json:"seconds"`
}

// ParseTrigger decodes a trigger configuration, strict about required
// shape but tolerant of unknown keys.
func ParseTrigger(raw []byte) (*Trigger, error) {
	var r rawTrigger
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}

	t := &Trigger{Type: r.Type, ExecuteNow: r.ExecuteNow}

	switch r.Type {
	case TriggerCron:
		t.Cron = &CronFields{
			Year: r.Year, Month: r.Month, Day: r.Day, Week: r.Week,
			DayOfWeek: r.DayOfWeek, Hour: r.Hour, Minute: r.Minute, Second: r.Second,
		}
	case TriggerInterval:
		t.Interval = &IntervalFields{
			Weeks: r.Weeks, Days: r.Days, Hours: r.Hours, Minutes: r.Minutes, Seconds: r.Seconds,
		}
	case TriggerExecuteNow, "":
		t.ExecuteNow = true
	}

	return t, nil
}

// IsSchedulable reports whether the trigger should be installed in the
// timer wheel. execute_now triggers are never installed.
func (t *Trigger) IsSchedulable() bool {
	return t != nil && !t.ExecuteNow && (t.Cron != nil || t.Interval != nil)
}

// MarshalJSON re-flattens the tagged variant back into the wire shape.
func (t Trigger) MarshalJSON() ([]byte, error) {
	r := rawTrigger{Type: t.Type, ExecuteNow: t.ExecuteNow}
	if t.Cron != nil {
		r.Year, r.Month, r.Day, r.Week = t.Cron.Year, t.Cron.Month, t.Cron.Day, t.Cron.Week
		r.DayOfWeek, r.Hour, r.Minute, r.Second = t.Cron.DayOfWeek, t.Cron.Hour, t.Cron.Minute, t.Cron.Second
	}
	if t.Interval != nil {
		r.Weeks, r.Days, r.Hours, r.Minutes, r.Seconds =
			t.Interval.Weeks, t.Interval.Days, t.Interval.Hours, t.Interval.Minutes, t.Interval.Seconds
	}
	return json.Marshal(r)
}
