// Package practice holds the per-clinic configuration that drives call
// handling: the practice record, its bookable appointment types, the
// providers who accept them, and the operatories providers work out of.
package practice

import (
	"fmt"
	"time"
)

// Practice is one dental office. LocationID and Subdomain identify it in
// the external scheduling system.
type Practice struct {
	ID         int64
	Name       string
	Subdomain  string
	LocationID int64
	Timezone   string // IANA name, e.g. America/New_York
	LunchStart string // HH:MM, local
	LunchEnd   string
}

// Location resolves the practice timezone.
func (p *Practice) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("practice: bad timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// AppointmentType is a bookable visit category with its scheduling length.
// Keywords are the phrases callers use for it ("cleaning", "checkup").
type AppointmentType struct {
	ID           int64
	PracticeID   int64
	Name         string
	Keywords     []string
	DurationMins int
	Bookable     bool
}

// Provider is a dentist or hygienist. IDs are the external scheduling
// system's provider IDs so they can go straight into slot queries.
type Provider struct {
	ID                 int64
	PracticeID         int64
	Name               string
	Active             bool
	AppointmentTypeIDs []int64
}

// AcceptsType reports whether the provider takes the given appointment type.
func (p *Provider) AcceptsType(typeID int64) bool {
	for _, id := range p.AppointmentTypeIDs {
		if id == typeID {
			return true
		}
	}
	return false
}

// Operatory is a chair assigned to a provider.
type Operatory struct {
	ID         int64
	ProviderID int64
}

// Directory is the full loaded configuration for one practice, resolved
// once at call start so every later decision works off a consistent view.
type Directory struct {
	Practice         Practice
	AppointmentTypes []AppointmentType
	Providers        []Provider
	Operatories      []Operatory
}

// BookableTypes returns the appointment types callers may book.
func (d *Directory) BookableTypes() []AppointmentType {
	out := make([]AppointmentType, 0, len(d.AppointmentTypes))
	for _, at := range d.AppointmentTypes {
		if at.Bookable {
			out = append(out, at)
		}
	}
	return out
}

// TypeByID looks up an appointment type.
func (d *Directory) TypeByID(id int64) (*AppointmentType, bool) {
	for i := range d.AppointmentTypes {
		if d.AppointmentTypes[i].ID == id {
			return &d.AppointmentTypes[i], true
		}
	}
	return nil, false
}

// EligibleProviders returns active providers accepting the given type.
func (d *Directory) EligibleProviders(typeID int64) []Provider {
	var out []Provider
	for _, p := range d.Providers {
		if p.Active && p.AcceptsType(typeID) {
			out = append(out, p)
		}
	}
	return out
}

// OperatoryIDsFor returns the operatories assigned to a provider.
func (d *Directory) OperatoryIDsFor(providerID int64) []int64 {
	var out []int64
	for _, o := range d.Operatories {
		if o.ProviderID == providerID {
			out = append(out, o.ID)
		}
	}
	return out
}
