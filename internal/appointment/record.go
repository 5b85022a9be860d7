package appointment

import "time"

// Record is the persisted form of an appointment.
type Record struct {
	AppointmentID string  `dynamodbav:"appointmentId" json:"appointmentId"`
	InsuredID     string  `dynamodbav:"insuredId" json:"insuredId"`
	ScheduleID    int64   `dynamodbav:"scheduleId" json:"scheduleId"`
	CountryISO    Country `dynamodbav:"countryISO" json:"countryISO"`
	Status        Status  `dynamodbav:"status" json:"status"`
	CreatedAt     string  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     string  `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Summary is the client-facing view returned by the API.
type Summary struct {
	AppointmentID string     `json:"appointmentId"`
	InsuredID     string     `json:"insuredId"`
	ScheduleID    int64      `json:"scheduleId"`
	CountryISO    Country    `json:"countryISO"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// FromRecord rehydrates a stored appointment. Stored data is trusted and is
// not re-validated; unparseable timestamps are left zero.
func FromRecord(rec Record) *Appointment {
	a := &Appointment{
		id:         rec.AppointmentID,
		insuredID:  rec.InsuredID,
		scheduleID: rec.ScheduleID,
		country:    rec.CountryISO,
		status:     rec.Status,
		createdAt:  parseTime(rec.CreatedAt),
	}
	if rec.UpdatedAt != "" {
		updated := parseTime(rec.UpdatedAt)
		a.updatedAt = &updated
	}
	return a
}

// ToRecord returns the persistable form.
func (a *Appointment) ToRecord() Record {
	rec := Record{
		AppointmentID: a.id,
		InsuredID:     a.insuredID,
		ScheduleID:    a.scheduleID,
		CountryISO:    a.country,
		Status:        a.status,
		CreatedAt:     FormatTime(a.createdAt),
	}
	if a.updatedAt != nil {
		rec.UpdatedAt = FormatTime(*a.updatedAt)
	}
	return rec
}

// Summary returns the client-facing view.
func (a *Appointment) Summary() Summary {
	s := Summary{
		AppointmentID: a.id,
		InsuredID:     a.insuredID,
		ScheduleID:    a.scheduleID,
		CountryISO:    a.country,
		Status:        a.status,
		CreatedAt:     a.createdAt,
	}
	if a.updatedAt != nil {
		updated := *a.updatedAt
		s.UpdatedAt = &updated
	}
	return s
}

// FormatTime renders timestamps the way they are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
