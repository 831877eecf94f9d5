package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Spoken formatting for dates and times. These strings are read aloud by
// the voice front end, so they favor natural phrasing over precision.

// SpeakDate renders "Tuesday, September 1st".
func SpeakDate(t time.Time, loc *time.Location) string {
	lt := t.In(loc)
	return fmt.Sprintf("%s, %s %s", lt.Weekday(), lt.Month(), ordinal(lt.Day()))
}

// SpeakTime renders "9:05 AM".
func SpeakTime(t time.Time, loc *time.Location) string {
	return strings.TrimPrefix(t.In(loc).Format("3:04 PM"), "0")
}

// SpeakSlot renders "Tuesday, September 1st at 9:05 AM".
func SpeakSlot(s CandidateSlot, loc *time.Location) string {
	return fmt.Sprintf("%s at %s", SpeakDate(s.Time, loc), SpeakTime(s.Time, loc))
}

// speakSlotTimes lists offered times for one re-prompt, e.g.
// "9:00 AM, 10:30 AM, or 2:00 PM" when all share a date.
func speakSlotTimes(slots []CandidateSlot, loc *time.Location) string {
	parts := make([]string, 0, len(slots))
	sameDay := allSameDay(slots, loc)
	for _, s := range slots {
		if sameDay {
			parts = append(parts, SpeakTime(s.Time, loc))
		} else {
			parts = append(parts, SpeakSlot(s, loc))
		}
	}
	return joinSpoken(parts)
}

func allSameDay(slots []CandidateSlot, loc *time.Location) bool {
	if len(slots) < 2 {
		return true
	}
	first := slots[0].Time.In(loc)
	for _, s := range slots[1:] {
		lt := s.Time.In(loc)
		if lt.Year() != first.Year() || lt.YearDay() != first.YearDay() {
			return false
		}
	}
	return true
}

// joinSpoken joins options the way a person lists them: "a", "a or b",
// "a, b, or c".
func joinSpoken(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " or " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1]
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// Fixed user-facing messages for the failure classes that do not embed
// call-specific detail.
const (
	msgContactOffice = "I'm sorry, I'm not able to book that over the phone right now. Please contact the office directly and our staff will help you."
	msgStaffFollowUp = "I'm sorry, something went wrong on our end while booking. Our staff will follow up with you shortly to finish scheduling."
	msgGenericSorry  = "I'm sorry, something unexpected happened. Could you say that again?"
)
