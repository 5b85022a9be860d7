// Package countrydb persists processed appointments in the per-country
// Postgres databases.
package countrydb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/events"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes appointments for a single country.
type Store struct {
	db execer
}

// NewStore wraps a pool connected to one country database.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("countrydb: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithExec(exec execer) *Store {
	if exec == nil {
		panic("countrydb: exec required")
	}
	return &Store{db: exec}
}

const upsertAppointment = `
	INSERT INTO appointments (appointment_id, insured_id, schedule_id, country_iso, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (appointment_id) DO UPDATE SET
		insured_id = EXCLUDED.insured_id,
		schedule_id = EXCLUDED.schedule_id,
		country_iso = EXCLUDED.country_iso,
		created_at = EXCLUDED.created_at
`

// SaveAppointment upserts the appointment keyed by its id, so redelivered
// events leave exactly one row.
func (s *Store) SaveAppointment(ctx context.Context, evt events.AppointmentCreatedV1) error {
	_, err := s.db.Exec(ctx, upsertAppointment,
		evt.AppointmentID,
		evt.InsuredID,
		evt.ScheduleID,
		evt.CountryISO,
		evt.Timestamp,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.Timeout("countrydb save", err)
		}
		return apperr.Infrastructure(apperr.CodeUnavailable,
			fmt.Sprintf("countrydb: save appointment %s", evt.AppointmentID), err)
	}
	return nil
}
