// Package appointment defines the appointment entity: an immutable value with
// a validating constructor, a trusted rehydration path, and read-only event
// projections.
package appointment

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/internal/validate"
)

// Country is the processing partition that owns an appointment.
type Country string

const (
	CountryPE Country = "PE"
	CountryCL Country = "CL"
)

// Countries lists every supported partition.
var Countries = []Country{CountryPE, CountryCL}

// ParseCountry validates and converts a raw country code.
func ParseCountry(raw string) (Country, error) {
	if err := validate.CountryISO(raw); err != nil {
		return "", err
	}
	return Country(raw), nil
}

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// CreateInput is the data accepted by the intake path.
type CreateInput struct {
	InsuredID  string `json:"insuredId"`
	ScheduleID int64  `json:"scheduleId"`
	CountryISO string `json:"countryISO"`
}

// Appointment is immutable; transitions return a new value.
type Appointment struct {
	id         string
	insuredID  string
	scheduleID int64
	country    Country
	status     Status
	createdAt  time.Time
	updatedAt  *time.Time
}

var lastCreated atomic.Int64

// creationTime returns the current UTC time, strictly later than any value it
// returned before in this process.
func creationTime() time.Time {
	for {
		now := time.Now().UTC()
		prev := lastCreated.Load()
		if now.UnixNano() <= prev {
			now = time.Unix(0, prev+1).UTC()
		}
		if lastCreated.CompareAndSwap(prev, now.UnixNano()) {
			return now
		}
	}
}

// Create validates input and returns a new pending appointment. The
// required-field check runs first so that a missing field is never reported
// as a format error.
func Create(input CreateInput) (*Appointment, error) {
	if err := validate.Required(
		validate.Field{Name: "insuredId", Value: input.InsuredID},
		validate.Field{Name: "scheduleId", Value: input.ScheduleID},
		validate.Field{Name: "countryISO", Value: input.CountryISO},
	); err != nil {
		return nil, err
	}
	if err := validate.InsuredID(input.InsuredID); err != nil {
		return nil, err
	}
	country, err := ParseCountry(input.CountryISO)
	if err != nil {
		return nil, err
	}
	if err := validate.PositiveNumber(input.ScheduleID, "scheduleId"); err != nil {
		return nil, err
	}

	return &Appointment{
		id:         uuid.NewString(),
		insuredID:  input.InsuredID,
		scheduleID: input.ScheduleID,
		country:    country,
		status:     StatusPending,
		createdAt:  creationTime(),
	}, nil
}

func (a *Appointment) ID() string           { return a.id }
func (a *Appointment) InsuredID() string    { return a.insuredID }
func (a *Appointment) ScheduleID() int64    { return a.scheduleID }
func (a *Appointment) Country() Country     { return a.country }
func (a *Appointment) Status() Status       { return a.status }
func (a *Appointment) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the transition time, if a transition has happened.
func (a *Appointment) UpdatedAt() (time.Time, bool) {
	if a.updatedAt == nil {
		return time.Time{}, false
	}
	return *a.updatedAt, true
}

// Complete returns the completed form of the appointment stamped with at.
// Completing an already completed appointment returns an unchanged copy.
func (a *Appointment) Complete(at time.Time) *Appointment {
	next := *a
	if a.status == StatusCompleted {
		return &next
	}
	at = at.UTC()
	next.status = StatusCompleted
	next.updatedAt = &at
	return &next
}

// CreatedEvent projects the appointment.created payload. Its timestamp is the
// creation time.
func (a *Appointment) CreatedEvent() events.AppointmentCreatedV1 {
	return events.AppointmentCreatedV1{
		AppointmentID: a.id,
		InsuredID:     a.insuredID,
		ScheduleID:    a.scheduleID,
		CountryISO:    string(a.country),
		Timestamp:     a.createdAt,
	}
}

// CompletedEvent projects the appointment.completed payload stamped with the
// current time.
func (a *Appointment) CompletedEvent() events.AppointmentCompletedV1 {
	return events.AppointmentCompletedV1{
		AppointmentID: a.id,
		InsuredID:     a.insuredID,
		ScheduleID:    a.scheduleID,
		CountryISO:    string(a.country),
		Timestamp:     time.Now().UTC(),
	}
}
