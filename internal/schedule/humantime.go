package schedule

import (
	"strconv"
	"strings"
	"time"
)

// HumanDuration renders a duration for operator-facing messages,
// e.g. "1 hour 30 minutes" or "8 minutes 20 seconds".
// Sub-second remainders are dropped; zero and negative render as "0 seconds".
func HumanDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0 seconds"
	}

	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	var b strings.Builder
	appendUnit(&b, days, "day")
	appendUnit(&b, hours, "hour")
	appendUnit(&b, minutes, "minute")
	appendUnit(&b, seconds, "second")
	return b.String()
}

func appendUnit(b *strings.Builder, n int64, unit string) {
	if n <= 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(strconv.FormatInt(n, 10))
	b.WriteByte(' ')
	b.WriteString(unit)
	if n != 1 {
		b.WriteByte('s')
	}
}
