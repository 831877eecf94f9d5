package practice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound means no practice matched the lookup.
var ErrNotFound = errors.New("practice: not found")

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository loads practice configuration from Postgres.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("practice: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	return &Repository{db: q}
}

// GetBySubdomain loads one practice row.
func (r *Repository) GetBySubdomain(ctx context.Context, subdomain string) (*Practice, error) {
	query := `
		SELECT id, name, subdomain, location_id, timezone, lunch_start, lunch_end
		FROM practices
		WHERE subdomain = $1
	`
	var p Practice
	if err := r.db.QueryRow(ctx, query, subdomain).Scan(
		&p.ID,
		&p.Name,
		&p.Subdomain,
		&p.LocationID,
		&p.Timezone,
		&p.LunchStart,
		&p.LunchEnd,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("practice: select failed: %w", err)
	}
	return &p, nil
}

// LoadDirectory resolves the full configuration for a practice: bookable
// types, providers with their accepted types, and operatories.
func (r *Repository) LoadDirectory(ctx context.Context, subdomain string) (*Directory, error) {
	p, err := r.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	dir := &Directory{Practice: *p}

	if dir.AppointmentTypes, err = r.loadTypes(ctx, p.ID); err != nil {
		return nil, err
	}
	if dir.Providers, err = r.loadProviders(ctx, p.ID); err != nil {
		return nil, err
	}
	if dir.Operatories, err = r.loadOperatories(ctx, p.ID); err != nil {
		return nil, err
	}
	return dir, nil
}

func (r *Repository) loadTypes(ctx context.Context, practiceID int64) ([]AppointmentType, error) {
	query := `
		SELECT id, practice_id, name, keywords, duration_mins, bookable
		FROM appointment_types
		WHERE practice_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("practice: load types: %w", err)
	}
	defer rows.Close()

	var out []AppointmentType
	for rows.Next() {
		var at AppointmentType
		if err := rows.Scan(&at.ID, &at.PracticeID, &at.Name, &at.Keywords, &at.DurationMins, &at.Bookable); err != nil {
			return nil, fmt.Errorf("practice: scan type: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (r *Repository) loadProviders(ctx context.Context, practiceID int64) ([]Provider, error) {
	query := `
		SELECT p.id, p.practice_id, p.name, p.active,
		       COALESCE(array_agg(pat.appointment_type_id) FILTER (WHERE pat.appointment_type_id IS NOT NULL), '{}')
		FROM providers p
		LEFT JOIN provider_appointment_types pat ON pat.provider_id = p.id
		WHERE p.practice_id = $1
		GROUP BY p.id
		ORDER BY p.id
	`
	rows, err := r.db.Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("practice: load providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.PracticeID, &p.Name, &p.Active, &p.AppointmentTypeIDs); err != nil {
			return nil, fmt.Errorf("practice: scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) loadOperatories(ctx context.Context, practiceID int64) ([]Operatory, error) {
	query := `
		SELECT o.id, o.provider_id
		FROM operatories o
		JOIN providers p ON p.id = o.provider_id
		WHERE p.practice_id = $1
		ORDER BY o.id
	`
	rows, err := r.db.Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("practice: load operatories: %w", err)
	}
	defer rows.Close()

	var out []Operatory
	for rows.Next() {
		var o Operatory
		if err := rows.Scan(&o.ID, &o.ProviderID); err != nil {
			return nil, fmt.Errorf("practice: scan operatory: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
