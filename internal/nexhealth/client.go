// Package nexhealth is a REST client for the NexHealth Synchronizer API,
// the external system of record for providers, operatories, patients, and
// appointments.
package nexhealth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

const (
	defaultTimeout = 15 * time.Second
	tokenLifetime  = 50 * time.Minute // NexHealth tokens last an hour
)

// Client talks to the NexHealth API for one practice subdomain.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	subdomain  string
	logger     *logging.Logger

	mu    sync.Mutex
	token tokenState
}

var _ scheduling.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests, sandbox).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a NexHealth client.
func NewClient(apiKey, subdomain string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		apiKey:    apiKey,
		subdomain: subdomain,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAppointmentSlots queries open windows for a single date.
func (c *Client) GetAppointmentSlots(ctx context.Context, req scheduling.SlotSearchRequest) (*scheduling.SlotSearchResult, error) {
	q := url.Values{}
	q.Set("subdomain", c.subdomain)
	q.Set("start_date", req.Date.Format("2006-01-02"))
	q.Set("days", "1")
	q.Set("slot_length", strconv.Itoa(req.DurationMins))
	q.Add("lids[]", strconv.FormatInt(req.LocationID, 10))
	for _, pid := range req.ProviderIDs {
		q.Add("pids[]", strconv.FormatInt(pid, 10))
	}
	for _, oid := range req.OperatoryIDs {
		q.Add("operatory_ids[]", strconv.FormatInt(oid, 10))
	}

	var out slotsEnvelope
	if err := c.do(ctx, http.MethodGet, "/appointment_slots", q, nil, &out); err != nil {
		return nil, err
	}
	if !out.Code {
		return nil, apiError("appointment_slots", out.Description, out.Error)
	}

	result := &scheduling.SlotSearchResult{}
	for _, avail := range out.Data {
		for _, s := range avail.Slots {
			start, err := time.Parse(time.RFC3339, s.Time)
			if err != nil {
				c.logger.Warn("nexhealth: skipping unparseable slot time", "time", s.Time)
				continue
			}
			result.Slots = append(result.Slots, scheduling.Slot{
				Time:        start,
				ProviderID:  avail.ProviderID,
				OperatoryID: s.OperatoryID,
				LocationID:  avail.LocationID,
			})
		}
	}
	if out.NextAvailableDate != "" {
		if next, err := time.Parse("2006-01-02", out.NextAvailableDate); err == nil {
			result.NextAvailableDate = &next
		}
	}
	return result, nil
}

// SearchPatients finds patients by name. DOB matching is the caller's job.
func (c *Client) SearchPatients(ctx context.Context, query scheduling.PatientSearchQuery) ([]scheduling.Patient, error) {
	q := url.Values{}
	q.Set("subdomain", c.subdomain)
	q.Set("location_id", strconv.FormatInt(query.LocationID, 10))
	q.Set("name", query.Name)

	var out envelope[patientsData]
	if err := c.do(ctx, http.MethodGet, "/patients", q, nil, &out); err != nil {
		return nil, err
	}
	if !out.Code {
		return nil, apiError("patients", out.Description, out.Error)
	}

	patients := make([]scheduling.Patient, 0, len(out.Data.Patients))
	for _, p := range out.Data.Patients {
		patients = append(patients, fromPatientJSON(p))
	}
	return patients, nil
}

// CreatePatient registers a new patient under the given provider.
func (c *Client) CreatePatient(ctx context.Context, req scheduling.CreatePatientRequest) (*scheduling.Patient, error) {
	if req.ProviderID == 0 {
		return nil, fmt.Errorf("nexhealth: %w: patient creation requires a provider", scheduling.ErrValidation)
	}

	q := url.Values{}
	q.Set("subdomain", c.subdomain)
	q.Set("location_id", strconv.FormatInt(req.LocationID, 10))

	var body createPatientBody
	body.Provider.ProviderID = req.ProviderID
	body.Patient.FirstName = req.Patient.FirstName
	body.Patient.LastName = req.Patient.LastName
	body.Patient.Email = req.Patient.Email
	body.Patient.Bio = patientBio{
		DateOfBirth: req.Patient.DateOfBirth,
		PhoneNumber: req.Patient.Phone,
	}

	var out envelope[createPatientData]
	if err := c.do(ctx, http.MethodPost, "/patients", q, body, &out); err != nil {
		return nil, err
	}
	if !out.Code {
		return nil, classifyCreatePatientError(out.Description, out.Error)
	}

	created := fromPatientJSON(out.Data.User)
	return &created, nil
}

// CreateAppointment books a slot. A conflict (slot taken by another actor
// between search and commit) surfaces as scheduling.ErrSlotTaken.
func (c *Client) CreateAppointment(ctx context.Context, req scheduling.AppointmentRequest) (*scheduling.Appointment, error) {
	q := url.Values{}
	q.Set("subdomain", c.subdomain)
	q.Set("location_id", strconv.FormatInt(req.LocationID, 10))
	q.Set("notify_patient", "false")

	var body createAppointmentBody
	body.Appt.PatientID = req.PatientID
	body.Appt.ProviderID = req.ProviderID
	body.Appt.OperatoryID = req.OperatoryID
	body.Appt.StartTime = req.StartTime.Format(time.RFC3339)
	body.Appt.EndTime = req.EndTime.Format(time.RFC3339)
	body.Appt.Note = req.Note

	var out envelope[createAppointmentData]
	if err := c.do(ctx, http.MethodPost, "/appointments", q, body, &out); err != nil {
		return nil, err
	}
	if !out.Code {
		return nil, classifyBookingError(out.Description, out.Error)
	}

	appt := &scheduling.Appointment{ID: out.Data.Appt.ID}
	if start, err := time.Parse(time.RFC3339, out.Data.Appt.StartTime); err == nil {
		appt.StartTime = start
	}
	if end, err := time.Parse(time.RFC3339, out.Data.Appt.EndTime); err == nil {
		appt.EndTime = end
	}
	return appt, nil
}

// ensureToken exchanges the API key for a bearer token, caching it until
// close to expiry.
func (c *Client) ensureToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.token.value != "" && time.Since(c.token.fetchedAt) < tokenLifetime {
		return c.token.value, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authenticates", nil)
	if err != nil {
		return "", fmt.Errorf("nexhealth: create auth request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nexhealth: authenticate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nexhealth: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nexhealth: authenticate status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var out envelope[authData]
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("nexhealth: decode auth response: %w", err)
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("nexhealth: authenticate returned empty token")
	}

	c.token = tokenState{value: out.Data.Token, fetchedAt: time.Now()}
	return c.token.value, nil
}

// do executes one API call, refreshing the bearer token once on 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("nexhealth: missing api key")
	}
	if strings.TrimSpace(c.subdomain) == "" {
		return fmt.Errorf("nexhealth: missing subdomain")
	}

	attempt := func(force bool) (int, error) {
		token, err := c.ensureToken(ctx, force)
		if err != nil {
			return 0, err
		}

		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return 0, fmt.Errorf("nexhealth: marshal request: %w", err)
			}
			reader = bytes.NewReader(encoded)
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return 0, fmt.Errorf("nexhealth: create request: %w", err)
		}
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("nexhealth: http request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("nexhealth: read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, fmt.Errorf("nexhealth: unauthorized")
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, fmt.Errorf("nexhealth: status %d: %s", resp.StatusCode, truncate(respBody))
		}

		// 4xx responses still carry the envelope; let callers classify.
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("nexhealth: unmarshal response: %w", err)
		}
		return resp.StatusCode, nil
	}

	status, err := attempt(false)
	if status == http.StatusUnauthorized {
		c.logger.Debug("nexhealth: token rejected, refreshing once")
		_, err = attempt(true)
	}
	return err
}

func fromPatientJSON(p patientJSON) scheduling.Patient {
	return scheduling.Patient{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.Bio.DateOfBirth,
		Phone:       p.Bio.PhoneNumber,
		Email:       p.Email,
	}
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
