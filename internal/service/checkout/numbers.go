package checkout

import (
	"fmt"
	"time"
)

const dayLayout = "20060102"

// FormatOrderNumber renders YYYYMMDD, the zero-padded daily sequence and a 000 suffix.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%06d%03d", day.Format(dayLayout), seq, 0)
}

// FormatOrderDetailNumber renders the per-line number; line is 1-based.
func FormatOrderDetailNumber(day time.Time, seq int64, line int) string {
	return fmt.Sprintf("B%s%06d%03d", day.Format(dayLayout), seq, line)
}

// dayBounds returns the start and end of t's calendar day in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
