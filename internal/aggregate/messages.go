package aggregate

import (
	"unicode/utf8"

	"github.com/nixlim/fa-top/internal/api"
)

// DayGroup is the admin messages that fall on one local calendar day.
type DayGroup struct {
	Day      string
	Messages []api.AdminMessage
}

// GroupByDay groups messages by local day, keeping the input order both
// across and within groups.
func GroupByDay(messages []api.AdminMessage) []DayGroup {
	var order []string
	byDay := make(map[string][]api.AdminMessage)

	for _, m := range messages {
		day := m.Timestamp.Local().Format("Monday, January 2, 2006")
		if _, ok := byDay[day]; !ok {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], m)
	}

	out := make([]DayGroup, 0, len(order))
	for _, day := range order {
		out = append(out, DayGroup{Day: day, Messages: byDay[day]})
	}
	return out
}

// Preview shortens s to max runes followed by "..." when it is longer.
func Preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
