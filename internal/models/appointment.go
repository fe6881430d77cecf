package models

import (
	"fmt"
	"time"

	"clinic-scheduling-server/internal/lifecycle"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// AppointmentRules is the appointment transition and permission table. Status
// never changes outside lifecycle.Apply, except for the rescheduled closing
// state which is only reachable through the reschedule operation. Doctors
// drive the clinical flow, patients may only cancel, admins may do anything a
// doctor or patient can.
var AppointmentRules = &lifecycle.Rules{
	Transitions: map[string][]string{
		string(StatusPending):   {string(StatusConfirmed), string(StatusCancelled)},
		string(StatusConfirmed): {string(StatusCompleted), string(StatusCancelled), string(StatusNoShow)},
	},
	RoleTargets: map[string][]string{
		string(RoleDoctor):  {string(StatusConfirmed), string(StatusCompleted), string(StatusNoShow), string(StatusCancelled)},
		string(RolePatient): {string(StatusCancelled)},
		string(RoleAdmin):   {string(StatusConfirmed), string(StatusCompleted), string(StatusNoShow), string(StatusCancelled)},
	},
}

// Appointment represents a scheduled consultation occupying one generated
// slot of a doctor's availability.
type Appointment struct {
	BaseModel
	DoctorID         string            `gorm:"size:36;index:idx_doctor_date" json:"doctorId"`
	PatientID        string            `gorm:"size:36;index" json:"patientId"`
	Date             string            `gorm:"size:10;index:idx_doctor_date" json:"date"`
	StartTime        TimeOfDay         `json:"startTime"`
	DurationMinutes  int               `json:"durationMinutes"`
	ConsultationType ConsultationType  `gorm:"size:20" json:"consultationType"`
	Status           AppointmentStatus `gorm:"size:20;default:'pending'" json:"status"`
	Fee              float64           `json:"fee"`
	Currency         string            `gorm:"size:8" json:"currency"`
	Reason           string            `gorm:"size:255" json:"reason"`
	Notes            string            `gorm:"type:text" json:"notes"`

	// SlotKey backs the at-most-one-booking-per-slot guarantee with a unique
	// index. It is cleared when the appointment leaves the active set so a
	// cancelled slot can be booked again.
	SlotKey *string `gorm:"size:100;uniqueIndex" json:"-"`

	StatusHistory []AppointmentStatusChange `gorm:"foreignKey:AppointmentID" json:"statusHistory,omitempty"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}

// AppointmentStatusChange is one append-only audit entry; entries are never
// rewritten and replaying them reconstructs the current status.
type AppointmentStatusChange struct {
	BaseModel
	AppointmentID string            `gorm:"size:36;index" json:"appointmentId"`
	Status        AppointmentStatus `gorm:"size:20" json:"status"`
	ActorRole     Role              `gorm:"size:20" json:"actorRole"`
	Note          string            `gorm:"size:255" json:"note,omitempty"`
}

// SlotKey builds the uniqueness key for one bookable slot.
func SlotKey(doctorID, date string, start TimeOfDay) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, start)
}

// EndTime returns the exclusive end of the appointment.
func (a *Appointment) EndTime() TimeOfDay {
	return a.StartTime.Add(a.DurationMinutes)
}

// Terminal reports whether the appointment accepts no further transitions.
// Rescheduled appointments have been closed by their replacement and are
// terminal like completed, cancelled and no_show.
func (a *Appointment) Terminal() bool {
	return AppointmentRules.Terminal(string(a.Status))
}

// Weekday resolves the appointment date's weekday.
func (a *Appointment) Weekday() (time.Weekday, error) {
	d, err := time.Parse(DateLayout, a.Date)
	if err != nil {
		return 0, fmt.Errorf("invalid appointment date %q: %w", a.Date, err)
	}
	return d.Weekday(), nil
}
