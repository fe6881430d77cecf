package scheduling

import (
	"context"
	"errors"
	"sync"

	"clinic-scheduling-server/internal/models"
)

// Booking rejections. Slot conflicts are retryable after re-reading current
// availability; an unsupported type is not.
var (
	ErrSlotNoLongerAvailable       = errors.New("slot no longer available")
	ErrUnsupportedConsultationType = errors.New("consultation type not offered by this doctor")
)

// AppointmentStore is the persistence boundary the coordinator books through.
// CreateAppointment must enforce slot-key uniqueness and report a duplicate as
// ErrSlotNoLongerAvailable; RescheduleAppointment must close the original and
// create the replacement atomically.
type AppointmentStore interface {
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	RescheduleAppointment(ctx context.Context, orig *models.Appointment, repl *models.Appointment) error
}

// BookingRequest describes one booking attempt for a generated slot. Actor is
// the authenticated caller's role, recorded in the status history.
type BookingRequest struct {
	PatientID        string
	Actor            models.Role
	Date             string
	Start            models.TimeOfDay
	ConsultationType models.ConsultationType
	Reason           string
	Notes            string
}

// Coordinator serializes booking attempts per (doctor, date) so the
// generate-then-insert sequence is atomic with respect to other bookers of the
// same key. The store's unique slot index backs the same guarantee across
// processes.
type Coordinator struct {
	store AppointmentStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator creates a booking coordinator over the given store.
func NewCoordinator(store AppointmentStore) *Coordinator {
	return &Coordinator{store: store, locks: make(map[string]*sync.Mutex)}
}

func (c *Coordinator) lockKey(doctorID, date string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := doctorID + "|" + date
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Book re-validates the requested slot against the live booked set and, when
// it is still open, creates the appointment in pending status. The fee is
// frozen from the doctor's current fee schedule; later fee changes do not
// touch existing appointments.
func (c *Coordinator) Book(ctx context.Context, doctor *models.DoctorProfile, req BookingRequest) (*models.Appointment, error) {
	if !doctor.Settings.Allows(req.ConsultationType) {
		return nil, ErrUnsupportedConsultationType
	}

	l := c.lockKey(doctor.UserID, req.Date)
	l.Lock()
	defer l.Unlock()

	appt, err := c.buildAppointment(ctx, doctor, req, "")
	if err != nil {
		return nil, err
	}
	if err := c.store.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Reschedule books a replacement slot and closes the original appointment as
// rescheduled, atomically through the store. The original's slot is released
// for the availability check, and its fee carries over to the replacement:
// rescheduling is not a new purchase.
func (c *Coordinator) Reschedule(ctx context.Context, doctor *models.DoctorProfile, orig *models.Appointment, req BookingRequest) (*models.Appointment, error) {
	l := c.lockKey(doctor.UserID, req.Date)
	l.Lock()
	defer l.Unlock()

	repl, err := c.buildAppointment(ctx, doctor, req, orig.ID)
	if err != nil {
		return nil, err
	}
	repl.Fee = orig.Fee
	repl.Currency = orig.Currency
	if err := c.store.RescheduleAppointment(ctx, orig, repl); err != nil {
		return nil, err
	}
	return repl, nil
}

// buildAppointment confirms the requested slot is currently open and
// assembles the pending appointment, without persisting it. excludeID drops
// the appointment being rescheduled from the booked set.
func (c *Coordinator) buildAppointment(ctx context.Context, doctor *models.DoctorProfile, req BookingRequest, excludeID string) (*models.Appointment, error) {
	booked, err := c.store.ListByDoctorAndDate(ctx, doctor.UserID, req.Date)
	if err != nil {
		return nil, err
	}
	if excludeID != "" {
		kept := booked[:0]
		for _, a := range booked {
			if a.ID != excludeID {
				kept = append(kept, a)
			}
		}
		booked = kept
	}

	open, err := GenerateSlots(doctor.Schedule, doctor.Settings, req.Date, booked)
	if err != nil {
		return nil, err
	}
	if !hasSlot(open.Slots, req.Start) {
		return nil, ErrSlotNoLongerAvailable
	}

	fee, _ := doctor.Settings.FeeFor(req.ConsultationType)
	key := models.SlotKey(doctor.UserID, req.Date, req.Start)
	return &models.Appointment{
		DoctorID:         doctor.UserID,
		PatientID:        req.PatientID,
		Date:             req.Date,
		StartTime:        req.Start,
		DurationMinutes:  doctor.Settings.SessionDuration,
		ConsultationType: req.ConsultationType,
		Status:           models.StatusPending,
		Fee:              fee,
		Currency:         doctor.Settings.Currency,
		Reason:           req.Reason,
		Notes:            req.Notes,
		SlotKey:          &key,
		StatusHistory: []models.AppointmentStatusChange{
			{Status: models.StatusPending, ActorRole: req.Actor},
		},
	}, nil
}

func hasSlot(slots []Slot, start models.TimeOfDay) bool {
	for _, s := range slots {
		if s.Start == start {
			return true
		}
	}
	return false
}
