// Package appointments owns the appointment status store and the intake
// service that creates appointments and answers status queries.
package appointments

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
)

// Repository is the status store contract. UpdateStatus is idempotent and
// never moves a completed appointment back to pending.
type Repository interface {
	Save(ctx context.Context, appt *appointment.Appointment) error
	FindByID(ctx context.Context, appointmentID string) (*appointment.Appointment, error)
	FindByIDOrFail(ctx context.Context, appointmentID string) (*appointment.Appointment, error)
	FindByInsuredID(ctx context.Context, insuredID string) ([]*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID string, status appointment.Status) error
	Exists(ctx context.Context, appointmentID string) (bool, error)
}

// findOrFail implements FindByIDOrFail on top of FindByID.
func findOrFail(ctx context.Context, r Repository, appointmentID string) (*appointment.Appointment, error) {
	appt, err := r.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, apperr.AppointmentNotFound(appointmentID)
	}
	return appt, nil
}

// InMemoryRepository is a Repository backed by a map, used by tests and local
// runs without DynamoDB.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]appointment.Record
	now     func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]appointment.Record),
		now:     time.Now,
	}
}

func (r *InMemoryRepository) Save(ctx context.Context, appt *appointment.Appointment) error {
	rec := appt.ToRecord()
	r.mu.Lock()
	r.records[rec.AppointmentID] = rec
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, appointmentID string) (*appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[appointmentID]
	if !ok {
		return nil, nil
	}
	return appointment.FromRecord(rec), nil
}

func (r *InMemoryRepository) FindByIDOrFail(ctx context.Context, appointmentID string) (*appointment.Appointment, error) {
	return findOrFail(ctx, r, appointmentID)
}

func (r *InMemoryRepository) FindByInsuredID(ctx context.Context, insuredID string) ([]*appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*appointment.Appointment
	for _, rec := range r.records {
		if rec.InsuredID == insuredID {
			out = append(out, appointment.FromRecord(rec))
		}
	}
	slices.SortFunc(out, func(a, b *appointment.Appointment) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, appointmentID string, status appointment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[appointmentID]
	if !ok {
		return apperr.AppointmentNotFound(appointmentID)
	}
	switch {
	case rec.Status == status:
		return nil
	case rec.Status == appointment.StatusCompleted:
		return apperr.InvalidTransition(appointmentID, string(rec.Status), string(status))
	}
	rec.Status = status
	rec.UpdatedAt = appointment.FormatTime(r.now())
	r.records[appointmentID] = rec
	return nil
}

func (r *InMemoryRepository) Exists(ctx context.Context, appointmentID string) (bool, error) {
	appt, err := r.FindByID(ctx, appointmentID)
	return appt != nil, err
}
