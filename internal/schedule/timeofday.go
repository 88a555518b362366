package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeFormat reports a string that is not exactly HH:MM:SS.
	ErrTimeFormat = errors.New("time must be HH:MM:SS")
	// ErrTimeRange reports a syntactically valid component outside 0-23/0-59/0-59.
	ErrTimeRange = errors.New("time component out of range")
)

// TimeOfDay is an hour/minute/second triple without a date, interpreted in
// local calendar time.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseTimeOfDay parses a strict "HH:MM:SS" string: exactly three fields,
// each exactly two ASCII digits. Anything looser ("4:0:0", "04:00") is
// rejected so config typos disable the module loudly instead of arming a
// schedule the operator didn't intend.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrTimeFormat, raw)
	}

	var vals [3]int
	for i, p := range parts {
		if len(p) != 2 || !isDigits(p) {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrTimeFormat, raw)
		}
		vals[i] = int(p[0]-'0')*10 + int(p[1]-'0')
	}

	tod := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	switch {
	case tod.Hour > 23:
		return TimeOfDay{}, fmt.Errorf("%w: hour %d in %q", ErrTimeRange, tod.Hour, raw)
	case tod.Minute > 59:
		return TimeOfDay{}, fmt.Errorf("%w: minute %d in %q", ErrTimeRange, tod.Minute, raw)
	case tod.Second > 59:
		return TimeOfDay{}, fmt.Errorf("%w: second %d in %q", ErrTimeRange, tod.Second, raw)
	}
	return tod, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// NextOccurrence returns the next instant strictly after now whose local
// time-of-day (in now's location) matches tod. If today's occurrence has
// already passed, or matches now exactly, it rolls to the next day by adding
// exactly 86400 seconds. DST behavior is inherited from the location's
// calendar conversion.
func NextOccurrence(now time.Time, tod TimeOfDay) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, tod.Second, 0, now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}
