package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// Shared fakes for the conversation package tests. Everything that talks
// to the outside world is replaced by a function-field stub so each test
// scripts exactly the behavior it needs.

type stubMatcher struct {
	matchTypeFn func(utterance string, candidates []matching.Candidate) (matching.Result, error)
	matchSlotFn func(utterance string, candidates []matching.Candidate) (matching.Result, error)
	classifyFn  func(utterance string) (matching.ReplyClass, error)
}

func (m *stubMatcher) MatchAppointmentType(_ context.Context, utterance string, candidates []matching.Candidate) (matching.Result, error) {
	if m.matchTypeFn == nil {
		return matching.Result{}, nil
	}
	return m.matchTypeFn(utterance, candidates)
}

func (m *stubMatcher) MatchSlot(_ context.Context, utterance string, candidates []matching.Candidate) (matching.Result, error) {
	if m.matchSlotFn == nil {
		return matching.Result{}, nil
	}
	return m.matchSlotFn(utterance, candidates)
}

func (m *stubMatcher) ClassifyReply(_ context.Context, utterance string) (matching.ReplyClass, error) {
	if m.classifyFn == nil {
		return matching.ReplyUnclear, nil
	}
	return m.classifyFn(utterance)
}

type stubScheduling struct {
	getSlotsFn       func(req scheduling.SlotSearchRequest) (*scheduling.SlotSearchResult, error)
	searchPatientsFn func(q scheduling.PatientSearchQuery) ([]scheduling.Patient, error)
	createPatientFn  func(req scheduling.CreatePatientRequest) (*scheduling.Patient, error)
	createApptFn     func(req scheduling.AppointmentRequest) (*scheduling.Appointment, error)

	slotSearches   int
	patientCreates int
	apptCreates    int
	lastApptReq    scheduling.AppointmentRequest
}

func (s *stubScheduling) GetAppointmentSlots(_ context.Context, req scheduling.SlotSearchRequest) (*scheduling.SlotSearchResult, error) {
	s.slotSearches++
	if s.getSlotsFn == nil {
		return &scheduling.SlotSearchResult{}, nil
	}
	return s.getSlotsFn(req)
}

func (s *stubScheduling) SearchPatients(_ context.Context, q scheduling.PatientSearchQuery) ([]scheduling.Patient, error) {
	if s.searchPatientsFn == nil {
		return nil, nil
	}
	return s.searchPatientsFn(q)
}

func (s *stubScheduling) CreatePatient(_ context.Context, req scheduling.CreatePatientRequest) (*scheduling.Patient, error) {
	s.patientCreates++
	if s.createPatientFn == nil {
		return &scheduling.Patient{ID: 1}, nil
	}
	return s.createPatientFn(req)
}

func (s *stubScheduling) CreateAppointment(_ context.Context, req scheduling.AppointmentRequest) (*scheduling.Appointment, error) {
	s.apptCreates++
	s.lastApptReq = req
	if s.createApptFn == nil {
		return &scheduling.Appointment{ID: 1, StartTime: req.StartTime, EndTime: req.EndTime}, nil
	}
	return s.createApptFn(req)
}

type stubDirectory struct {
	dir *practice.Directory
	err error
}

func (d *stubDirectory) Directory(context.Context) (*practice.Directory, error) {
	return d.dir, d.err
}

// fakeDynamo is an in-memory ledger backend honoring the conditional put.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func dynamoKey(item map[string]types.AttributeValue) string {
	if v, ok := item["toolCallId"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := dynamoKey(in.Item)
	if _, exists := f.items[key]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[dynamoKey(in.Key)]}, nil
}

func testLogger() *logging.Logger {
	return logging.New("error")
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

// testDirectory is a practice with one bookable cleaning type served by
// one active provider in one operatory, plus a non-bookable consult.
func testDirectory() *practice.Directory {
	return &practice.Directory{
		Practice: practice.Practice{
			ID:         1,
			Name:       "Maple Street Dental",
			Subdomain:  "maple-street",
			LocationID: 500,
			Timezone:   "America/New_York",
			LunchStart: "13:00",
			LunchEnd:   "14:00",
		},
		AppointmentTypes: []practice.AppointmentType{
			{ID: 1, PracticeID: 1, Name: "Cleaning", Keywords: []string{"cleaning", "checkup"}, DurationMins: 30, Bookable: true},
			{ID: 2, PracticeID: 1, Name: "Implant Consult", DurationMins: 60, Bookable: false},
		},
		Providers: []practice.Provider{
			{ID: 10, PracticeID: 1, Name: "Dr. Patel", Active: true, AppointmentTypeIDs: []int64{1}},
		},
		Operatories: []practice.Operatory{
			{ID: 100, ProviderID: 10},
		},
	}
}

type testEnv struct {
	service    *Service
	store      *StateStore
	dynamo     *fakeDynamo
	scheduling *stubScheduling
	matcher    *stubMatcher
	now        time.Time
	loc        *time.Location
}

// newTestEnv wires a Service over miniredis and in-memory fakes. The clock
// is pinned to a Tuesday afternoon.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loc := newYork(t)
	now := time.Date(2026, time.August, 25, 14, 0, 0, 0, loc)

	env := &testEnv{
		store:      NewStateStore(client, time.Hour, nil),
		dynamo:     newFakeDynamo(),
		scheduling: &stubScheduling{},
		matcher:    &stubMatcher{},
		now:        now,
		loc:        loc,
	}
	env.service = NewService(ServiceDeps{
		Store:      env.store,
		Ledger:     NewToolCallLedger(env.dynamo, "tool_call_ledger", testLogger()),
		Directory:  &stubDirectory{dir: testDirectory()},
		Scheduling: env.scheduling,
		Matcher:    env.matcher,
		Rules: SlotSearchRules{
			ScanDays:     3,
			MinUseful:    2,
			LunchStart:   "13:00",
			LunchEnd:     "14:00",
			MaxPresented: 3,
		},
		Logger: testLogger(),
		Now:    func() time.Time { return now },
	})
	return env
}

// slotAt builds a presented slot for provider 10 at the given local time.
func (e *testEnv) slotAt(day, hour, min int) CandidateSlot {
	return CandidateSlot{
		Time:        time.Date(2026, time.August, day, hour, min, 0, 0, e.loc),
		ProviderID:  10,
		OperatoryID: 100,
		LocationID:  500,
	}
}
