package services

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
)

const localDateLayout = "2006-01-02"

var weekdayByName = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or long English day names in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// ShortWeekday is the canonical stored form, e.g. "Mon".
func ShortWeekday(d time.Weekday) string {
	return d.String()[:3]
}

// ParseTimeOfDay parses a 24h "HH:MM" string into minutes after midnight.
func ParseTimeOfDay(s string) (int, error) {
	v := strings.TrimSpace(s)
	if len(v) != len("15:04") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func LoadTimezone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// LocalNow resolves now in the config's timezone.
func LocalNow(cfg models.StandupConfig, now time.Time) (time.Time, error) {
	loc, err := LoadTimezone(cfg.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return now.In(loc), nil
}

func isWorkingDay(cfg models.StandupConfig, d time.Weekday) bool {
	for _, name := range cfg.WorkingDays {
		if wd, ok := ParseWeekday(name); ok && wd == d {
			return true
		}
	}
	return false
}

// Due reports whether cfg should have a session at now, and the local
// calendar date that session belongs to. A config is due on a working day
// once the local wall clock has reached its time of day.
func Due(cfg models.StandupConfig, now time.Time) (localDate string, due bool, err error) {
	local, err := LocalNow(cfg, now)
	if err != nil {
		return "", false, err
	}
	localDate = local.Format(localDateLayout)

	if !isWorkingDay(cfg, local.Weekday()) {
		return localDate, false, nil
	}

	start, err := ParseTimeOfDay(cfg.Time)
	if err != nil {
		return localDate, false, err
	}

	return localDate, local.Hour()*60+local.Minute() >= start, nil
}
