package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// IdentityResolution is the outcome of resolving a caller to an external
// patient record.
type IdentityResolution struct {
	ExternalPatientID int64
	IsNewRecord       bool
}

// IdentityResolver finds or creates the caller's patient record in the
// scheduling system. Name matches are accepted only on an exact date of
// birth; phone and email may legitimately differ within a household and
// are never used as uniqueness keys.
type IdentityResolver struct {
	client scheduling.Client
	logger *logging.Logger
}

func NewIdentityResolver(client scheduling.Client, logger *logging.Logger) *IdentityResolver {
	if client == nil {
		panic("conversation: scheduling client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IdentityResolver{client: client, logger: logger}
}

// Resolve searches by name and accepts an existing record only on exact
// DOB match; otherwise it creates a new record under the given provider.
func (r *IdentityResolver) Resolve(ctx context.Context, details PatientDetails, providerID, locationID int64) (*IdentityResolution, *HandlerError) {
	if strings.TrimSpace(details.FirstName) == "" || strings.TrimSpace(details.LastName) == "" {
		return nil, invariantErr("identity resolution without a name")
	}

	if id, found, err := r.findExisting(ctx, details, locationID); err != nil {
		return nil, err
	} else if found {
		return &IdentityResolution{ExternalPatientID: id}, nil
	}

	if providerID == 0 {
		return nil, newHandlerError(FailureInvariant, CodeMissingProviderID,
			fmt.Errorf("patient creation without a provider context"))
	}

	created, err := r.client.CreatePatient(ctx, scheduling.CreatePatientRequest{
		Patient: scheduling.Patient{
			FirstName:   details.FirstName,
			LastName:    details.LastName,
			DateOfBirth: details.DateOfBirth,
			Phone:       details.Phone,
			Email:       details.Email,
		},
		ProviderID: providerID,
		LocationID: locationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrDuplicatePatient):
			// The record exists but our first search missed it (created
			// concurrently, or indexed under a name variant). One
			// re-search, then give up to staff.
			if id, found, serr := r.findExisting(ctx, details, locationID); serr == nil && found {
				return &IdentityResolution{ExternalPatientID: id}, nil
			}
			return nil, systemErr(fmt.Errorf("duplicate patient not found on re-search: %w", err))
		case errors.Is(err, scheduling.ErrValidation):
			return nil, systemErr(fmt.Errorf("patient create rejected: %w", err))
		default:
			return nil, systemErr(fmt.Errorf("patient create: %w", err))
		}
	}

	r.logger.Info("patient record created", "external_patient_id", created.ID)
	return &IdentityResolution{ExternalPatientID: created.ID, IsNewRecord: true}, nil
}

func (r *IdentityResolver) findExisting(ctx context.Context, details PatientDetails, locationID int64) (int64, bool, *HandlerError) {
	matches, err := r.client.SearchPatients(ctx, scheduling.PatientSearchQuery{
		Name:       details.FullName(),
		LocationID: locationID,
	})
	if err != nil {
		return 0, false, systemErr(fmt.Errorf("patient search: %w", err))
	}

	for _, m := range matches {
		if sameName(m, details) && m.DateOfBirth == details.DateOfBirth && details.DateOfBirth != "" {
			r.logger.Info("existing patient matched by name and dob", "external_patient_id", m.ID)
			return m.ID, true, nil
		}
	}
	return 0, false, nil
}

func sameName(p scheduling.Patient, d PatientDetails) bool {
	return strings.EqualFold(strings.TrimSpace(p.FirstName), strings.TrimSpace(d.FirstName)) &&
		strings.EqualFold(strings.TrimSpace(p.LastName), strings.TrimSpace(d.LastName))
}
