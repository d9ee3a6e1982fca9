package metadata

import (
	"math"
	"strings"
	"time"
)

// weekdayNames maps canonical English weekday names to their index.
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolveWeekday normalizes a free-text broadcast-day string ("Sundays",
// " monday ") to a weekday. The second return value is false when the string
// does not name one of the seven English weekdays; callers skip projection
// in that case rather than failing.
func ResolveWeekday(raw string) (time.Weekday, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	// Broadcast feeds use plural day names ("Saturdays").
	normalized = strings.TrimSuffix(normalized, "s")
	day, ok := weekdayNames[normalized]
	return day, ok
}

// ProjectAiring estimates how many weekly episodes of a series have aired and
// when the next one airs, given the first-broadcast date, the broadcast
// weekday, and the current time.
//
// The first air date is the first occurrence of weekday on or after start,
// keeping start's time of day. Elapsed episodes are floor(weeks between the
// first air date and now) + 1, floored at zero, so the premiere day counts
// as episode one the moment it passes. The predicted
// next date is one week after the last counted episode, and is dropped (nil)
// when it would already be in the past, which happens when the feed keeps a
// finished series flagged as airing.
func ProjectAiring(start time.Time, weekday time.Weekday, now time.Time) (int, *time.Time) {
	daysAhead := (int(weekday) - int(start.Weekday()) + 7) % 7
	firstAir := start.AddDate(0, 0, daysAhead)

	weeks := now.Sub(firstAir).Hours() / (24 * 7)
	episodes := int(math.Floor(weeks)) + 1
	if episodes <= 0 {
		return 0, nil
	}

	next := firstAir.AddDate(0, 0, 7*episodes)
	if next.Before(now) {
		return episodes, nil
	}
	return episodes, &next
}
