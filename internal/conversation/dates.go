package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// NormalizeDate resolves a spoken date phrase to a calendar date in the
// practice timezone. Bare month/day phrases resolve to the next occurrence
// on or after today. "next <weekday>" spoken on that same weekday means a
// week out, never today. An unresolvable phrase is a user-ambiguity case
// for the caller to re-prompt on, not a system error.
func NormalizeDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	phrase := strings.ToLower(strings.TrimSpace(raw))
	phrase = strings.TrimPrefix(phrase, "on ")
	today := midnight(now.In(loc))

	switch phrase {
	case "":
		return time.Time{}, fmt.Errorf("empty date phrase")
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "day after tomorrow":
		return today.AddDate(0, 0, 2), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", phrase, loc); err == nil {
		return t, nil
	}

	fields := strings.Fields(phrase)

	if len(fields) == 2 && (fields[0] == "next" || fields[0] == "this") {
		wd, ok := weekdays[fields[1]]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown weekday %q", fields[1])
		}
		ahead := int(wd-today.Weekday()+7) % 7
		if fields[0] == "next" && ahead == 0 {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead), nil
	}

	if len(fields) == 1 {
		if wd, ok := weekdays[fields[0]]; ok {
			ahead := int(wd-today.Weekday()+7) % 7
			return today.AddDate(0, 0, ahead), nil
		}
	}

	// "september 3", "sep 3rd", "3rd of september"
	if len(fields) == 2 {
		if m, ok := months[fields[0]]; ok {
			if day, ok := parseDayNumber(fields[1]); ok {
				return monthDayOnOrAfter(today, m, day, loc)
			}
		}
	}
	if len(fields) == 3 && fields[1] == "of" {
		if m, ok := months[fields[2]]; ok {
			if day, ok := parseDayNumber(fields[0]); ok {
				return monthDayOnOrAfter(today, m, day, loc)
			}
		}
	}

	// "9/3" or "09/03"
	if parts := strings.Split(phrase, "/"); len(parts) == 2 {
		mo, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && mo >= 1 && mo <= 12 {
			return monthDayOnOrAfter(today, time.Month(mo), day, loc)
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date phrase %q", raw)
}

func monthDayOnOrAfter(today time.Time, m time.Month, day int, loc *time.Location) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	candidate := time.Date(today.Year(), m, day, 0, 0, 0, 0, loc)
	if candidate.Month() != m {
		return time.Time{}, fmt.Errorf("no such date %s %d", m, day)
	}
	if candidate.Before(today) {
		candidate = time.Date(today.Year()+1, m, day, 0, 0, 0, 0, loc)
		if candidate.Month() != m {
			return time.Time{}, fmt.Errorf("no such date %s %d", m, day)
		}
	}
	return candidate, nil
}

func parseDayNumber(s string) (int, bool) {
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		s = strings.TrimSuffix(s, suffix)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
