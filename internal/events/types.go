package events

import "time"

const (
	TypeAppointmentCreated   = "appointment.created"
	TypeAppointmentCompleted = "appointment.completed"
)

// AppointmentCreatedV1 is published when the intake path accepts a booking.
// Country processors consume it.
type AppointmentCreatedV1 struct {
	AppointmentID string    `json:"appointmentId"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int64     `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	Timestamp     time.Time `json:"timestamp"`
}

func (AppointmentCreatedV1) EventType() string {
	return TypeAppointmentCreated
}

// AppointmentCompletedV1 is published by a country processor once the
// appointment is stored in the country database. Timestamp is the completion
// time.
type AppointmentCompletedV1 struct {
	AppointmentID string    `json:"appointmentId"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int64     `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	Timestamp     time.Time `json:"timestamp"`
}

func (AppointmentCompletedV1) EventType() string {
	return TypeAppointmentCompleted
}
