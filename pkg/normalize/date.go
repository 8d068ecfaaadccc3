package normalize

import "time"

// smartLayouts covers the loose forms payment apps and banks emit:
// ISO timestamps, minutes without seconds, unpadded month/day and dotted dates.
var smartLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"2006年1月2日 15:04:05",
}

// explicitLayouts are tried in order when the loose parse fails.
var explicitLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006年01月02日",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

func smartParse(s string) (time.Time, bool) {
	return parseLayouts(s, smartLayouts)
}

func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dayOf(t), true
		}
	}
	return time.Time{}, false
}

// dayOf drops the time of day and pins the date to UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
