package conversation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// TimePreference is a caller's coarse time-of-day wish.
type TimePreference string

const (
	PreferenceNone      TimePreference = ""
	PreferenceMorning   TimePreference = "morning"
	PreferenceAfternoon TimePreference = "afternoon"
	PreferenceEvening   TimePreference = "evening"
)

// ParseTimePreference maps a spoken preference to the closed set, falling
// back to none for anything unrecognized.
func ParseTimePreference(s string) TimePreference {
	switch TimePreference(s) {
	case PreferenceMorning, PreferenceAfternoon, PreferenceEvening:
		return TimePreference(s)
	default:
		return PreferenceNone
	}
}

// SlotSearchRules are the practice-independent business rules applied to
// every search.
type SlotSearchRules struct {
	ScanDays     int
	MinUseful    int    // stop scanning further days once this many candidates exist
	LunchStart   string // HH:MM local, inclusive
	LunchEnd     string // HH:MM local, exclusive
	MaxPresented int
}

// SlotSearchOutcome is the result of one scan.
type SlotSearchOutcome struct {
	Slots             []CandidateSlot
	NextAvailableDate *time.Time
	// PreferenceRelaxed is set when the time-of-day preference filtered
	// out everything and the unfiltered set is presented instead. The
	// handler must disclose this substitution to the caller.
	PreferenceRelaxed bool
}

// SlotSearcher queries the scheduling system day by day and applies the
// local business rules the external system does not know about.
type SlotSearcher struct {
	client scheduling.Client
	rules  SlotSearchRules
	logger *logging.Logger
}

func NewSlotSearcher(client scheduling.Client, rules SlotSearchRules, logger *logging.Logger) *SlotSearcher {
	if client == nil {
		panic("conversation: scheduling client required")
	}
	if rules.ScanDays <= 0 {
		rules.ScanDays = 5
	}
	if rules.MinUseful <= 0 {
		rules.MinUseful = 2
	}
	if rules.MaxPresented <= 0 {
		rules.MaxPresented = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotSearcher{client: client, rules: rules, logger: logger}
}

// Search scans from start for up to ScanDays days, stopping early once
// MinUseful candidates have accumulated.
func (s *SlotSearcher) Search(
	ctx context.Context,
	start time.Time,
	durationMins int,
	providerIDs, operatoryIDs []int64,
	locationID int64,
	pref TimePreference,
	loc *time.Location,
) (*SlotSearchOutcome, *HandlerError) {
	if durationMins <= 0 {
		return nil, invariantErr("slot search without a duration")
	}
	if len(providerIDs) == 0 {
		return nil, invariantErr("slot search without eligible providers")
	}

	var (
		collected []CandidateSlot
		nextHint  *time.Time
	)
	for day := 0; day < s.rules.ScanDays; day++ {
		date := start.AddDate(0, 0, day)
		result, err := s.client.GetAppointmentSlots(ctx, scheduling.SlotSearchRequest{
			Date:         date,
			DurationMins: durationMins,
			ProviderIDs:  providerIDs,
			OperatoryIDs: operatoryIDs,
			LocationID:   locationID,
		})
		if err != nil {
			return nil, systemErr(fmt.Errorf("slot search on %s: %w", date.Format("2006-01-02"), err))
		}

		for _, slot := range result.Slots {
			if s.inLunchWindow(slot.Time, loc) {
				continue
			}
			collected = append(collected, CandidateSlot{
				Time:        slot.Time,
				ProviderID:  slot.ProviderID,
				OperatoryID: slot.OperatoryID,
				LocationID:  slot.LocationID,
			})
		}
		if result.NextAvailableDate != nil && nextHint == nil {
			nextHint = result.NextAvailableDate
		}
		if len(collected) >= s.rules.MinUseful {
			break
		}
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Time.Before(collected[j].Time)
	})

	outcome := &SlotSearchOutcome{NextAvailableDate: nextHint}
	if len(collected) == 0 {
		return outcome, nil
	}

	chosen := collected
	if pref != PreferenceNone {
		preferred := filterByPreference(collected, pref, loc)
		if len(preferred) > 0 {
			chosen = preferred
		} else {
			// Preference emptied the set; present the unfiltered slots
			// rather than fail, and let the handler disclose it.
			outcome.PreferenceRelaxed = true
		}
	}

	if len(chosen) > s.rules.MaxPresented {
		chosen = chosen[:s.rules.MaxPresented]
	}
	outcome.Slots = chosen
	return outcome, nil
}

func (s *SlotSearcher) inLunchWindow(t time.Time, loc *time.Location) bool {
	startMin, ok1 := parseClock(s.rules.LunchStart)
	endMin, ok2 := parseClock(s.rules.LunchEnd)
	if !ok1 || !ok2 || startMin >= endMin {
		return false
	}
	lt := t.In(loc)
	m := lt.Hour()*60 + lt.Minute()
	return m >= startMin && m < endMin
}

func filterByPreference(slots []CandidateSlot, pref TimePreference, loc *time.Location) []CandidateSlot {
	var out []CandidateSlot
	for _, s := range slots {
		h := s.Time.In(loc).Hour()
		switch pref {
		case PreferenceMorning:
			if h < 12 {
				out = append(out, s)
			}
		case PreferenceAfternoon:
			if h >= 12 && h < 17 {
				out = append(out, s)
			}
		case PreferenceEvening:
			if h >= 17 {
				out = append(out, s)
			}
		}
	}
	return out
}

func parseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
