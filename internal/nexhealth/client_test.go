package nexhealth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/authenticates", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": true,
			"data": map[string]string{"token": "tok-123"},
		})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient("test-key", "bright-smiles", logging.Default(), WithBaseURL(srv.URL))
	return srv, client
}

func TestGetAppointmentSlots(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointment_slots" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("subdomain") != "bright-smiles" || q.Get("days") != "1" {
			t.Errorf("unexpected query %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": true,
			"data": []map[string]any{
				{
					"lid": 100,
					"pid": 7,
					"slots": []map[string]any{
						{"time": "2026-09-01T09:00:00-04:00", "operatory_id": 12},
						{"time": "2026-09-01T10:30:00-04:00", "operatory_id": 12},
					},
				},
			},
		})
	})

	result, err := client.GetAppointmentSlots(context.Background(), scheduling.SlotSearchRequest{
		Date:         time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DurationMins: 30,
		ProviderIDs:  []int64{7},
		LocationID:   100,
	})
	if err != nil {
		t.Fatalf("GetAppointmentSlots: %v", err)
	}
	if len(result.Slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(result.Slots))
	}
	if result.Slots[0].ProviderID != 7 || result.Slots[0].OperatoryID != 12 {
		t.Errorf("slot provider/operatory = %d/%d", result.Slots[0].ProviderID, result.Slots[0].OperatoryID)
	}
}

func TestGetAppointmentSlotsNextAvailableHint(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":                true,
			"data":                []map[string]any{},
			"next_available_date": "2026-09-14",
		})
	})

	result, err := client.GetAppointmentSlots(context.Background(), scheduling.SlotSearchRequest{
		Date:       time.Now(),
		LocationID: 100,
	})
	if err != nil {
		t.Fatalf("GetAppointmentSlots: %v", err)
	}
	if len(result.Slots) != 0 {
		t.Fatalf("expected empty slots")
	}
	if result.NextAvailableDate == nil || result.NextAvailableDate.Format("2006-01-02") != "2026-09-14" {
		t.Errorf("NextAvailableDate = %v", result.NextAvailableDate)
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":  false,
			"error": []string{"requested time is no longer available"},
		})
	})

	_, err := client.CreateAppointment(context.Background(), scheduling.AppointmentRequest{
		PatientID:  1,
		ProviderID: 7,
		LocationID: 100,
		StartTime:  time.Now(),
		EndTime:    time.Now().Add(30 * time.Minute),
	})
	if !errors.Is(err, scheduling.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCreatePatientClassification(t *testing.T) {
	tests := []struct {
		name    string
		apiErr  string
		wantErr error
	}{
		{"duplicate", "Email has already been taken", scheduling.ErrDuplicatePatient},
		{"validation", "date_of_birth is invalid", scheduling.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":  false,
					"error": []string{tt.apiErr},
				})
			})
			_, err := client.CreatePatient(context.Background(), scheduling.CreatePatientRequest{
				Patient:    scheduling.Patient{FirstName: "Ana", LastName: "Diaz"},
				ProviderID: 7,
				LocationID: 100,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePatientRequiresProvider(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach the API without a provider")
	})
	_, err := client.CreatePatient(context.Background(), scheduling.CreatePatientRequest{
		Patient:    scheduling.Patient{FirstName: "Ana", LastName: "Diaz"},
		LocationID: 100,
	})
	if !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTokenRefreshOn401(t *testing.T) {
	calls := 0
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": true,
			"data": map[string]any{"patients": []any{}},
		})
	})

	_, err := client.SearchPatients(context.Background(), scheduling.PatientSearchQuery{Name: "Diaz", LocationID: 100})
	if err != nil {
		t.Fatalf("SearchPatients after refresh: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry after 401, got %d calls", calls)
	}
}
