package scheduling

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-scheduling-server/internal/models"
)

// memStore is an in-memory AppointmentStore with the same contract as the
// database-backed one: slot-key uniqueness on insert, atomic reschedule.
type memStore struct {
	mu    sync.Mutex
	appts map[string]*models.Appointment
	keys  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[string]*models.Appointment), keys: make(map[string]bool)}
}

func (m *memStore) ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date == date {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(appt)
}

func (m *memStore) RescheduleAppointment(ctx context.Context, orig *models.Appointment, repl *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertLocked(repl); err != nil {
		return err
	}
	stored := m.appts[orig.ID]
	if stored.SlotKey != nil {
		delete(m.keys, *stored.SlotKey)
	}
	stored.Status = models.StatusRescheduled
	stored.SlotKey = nil
	stored.Version++
	*orig = *stored
	return nil
}

func (m *memStore) insertLocked(appt *models.Appointment) error {
	if appt.SlotKey != nil && m.keys[*appt.SlotKey] {
		return ErrSlotNoLongerAvailable
	}
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if appt.Version == 0 {
		appt.Version = 1
	}
	cp := *appt
	m.appts[cp.ID] = &cp
	if cp.SlotKey != nil {
		m.keys[*cp.SlotKey] = true
	}
	return nil
}

func testDoctor(t *testing.T) *models.DoctorProfile {
	t.Helper()
	return &models.DoctorProfile{
		UserID:   uuid.New().String(),
		Schedule: mondaySchedule(t, [2]string{"09:00", "12:00"}),
		Settings: settings(30, 10, 4),
	}
}

func bookingReq(t *testing.T, patientID, start string) BookingRequest {
	t.Helper()
	return BookingRequest{
		PatientID:        patientID,
		Actor:            models.RolePatient,
		Date:             monday,
		Start:            mustTime(t, start),
		ConsultationType: models.ConsultationVideo,
		Reason:           "checkup",
	}
}

func TestBook(t *testing.T) {
	st := newMemStore()
	coord := NewCoordinator(st)
	doctor := testDoctor(t)
	patient := uuid.New().String()

	appt, err := coord.Book(context.Background(), doctor, bookingReq(t, patient, "09:40"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, doctor.UserID, appt.DoctorID)
	assert.Equal(t, patient, appt.PatientID)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, 50.0, appt.Fee)
	assert.Equal(t, "USD", appt.Currency)
	require.NotNil(t, appt.SlotKey)
	assert.Equal(t, models.SlotKey(doctor.UserID, monday, appt.StartTime), *appt.SlotKey)
	require.Len(t, appt.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, appt.StatusHistory[0].Status)
	assert.Equal(t, models.RolePatient, appt.StatusHistory[0].ActorRole)
}

func TestBookUnsupportedConsultationType(t *testing.T) {
	coord := NewCoordinator(newMemStore())
	doctor := testDoctor(t)

	req := bookingReq(t, uuid.New().String(), "09:00")
	req.ConsultationType = models.ConsultationChat
	_, err := coord.Book(context.Background(), doctor, req)
	assert.ErrorIs(t, err, ErrUnsupportedConsultationType)
}

func TestBookSlotNotOffered(t *testing.T) {
	coord := NewCoordinator(newMemStore())
	doctor := testDoctor(t)

	// 09:15 is never emitted by the generator for this schedule.
	_, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "09:15"))
	assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestBookSameSlotTwice(t *testing.T) {
	coord := NewCoordinator(newMemStore())
	doctor := testDoctor(t)

	_, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "09:00"))
	require.NoError(t, err)
	_, err = coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "09:00"))
	assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestBookConcurrentSameSlot(t *testing.T) {
	// Two callers racing for the same slot: exactly one success regardless
	// of interleaving.
	for i := 0; i < 50; i++ {
		coord := NewCoordinator(newMemStore())
		doctor := testDoctor(t)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "10:20"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var successes, conflicts int
		for err := range errs {
			if err == nil {
				successes++
			} else {
				require.ErrorIs(t, err, ErrSlotNoLongerAvailable)
				conflicts++
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, conflicts)
	}
}

func TestBookDailyCap(t *testing.T) {
	st := newMemStore()
	coord := NewCoordinator(st)
	doctor := testDoctor(t)

	// The Monday window holds exactly four slots with this stride and the
	// cap is four: fill them all.
	for _, start := range []string{"09:00", "09:40", "10:20", "11:00"} {
		_, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), start))
		require.NoError(t, err)
	}

	// Widen the window so more candidates would exist; the cap must still
	// reject a fifth active booking.
	doctor.Schedule = mondaySchedule(t, [2]string{"09:00", "20:00"})
	_, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "15:00"))
	assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestBookFeeFrozenAtBookingTime(t *testing.T) {
	st := newMemStore()
	coord := NewCoordinator(st)
	doctor := testDoctor(t)

	appt, err := coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "09:00"))
	require.NoError(t, err)
	require.Equal(t, 50.0, appt.Fee)

	// A later fee-schedule change does not touch the existing appointment.
	doctor.Settings.FeesByType[models.ConsultationVideo] = 75
	stored, err := st.ListByDoctorAndDate(context.Background(), doctor.UserID, monday)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 50.0, stored[0].Fee)
}

func TestReschedule(t *testing.T) {
	st := newMemStore()
	coord := NewCoordinator(st)
	doctor := testDoctor(t)
	patient := uuid.New().String()

	orig, err := coord.Book(context.Background(), doctor, bookingReq(t, patient, "09:00"))
	require.NoError(t, err)

	req := bookingReq(t, patient, "10:20")
	req.Actor = models.RoleDoctor
	repl, err := coord.Reschedule(context.Background(), doctor, orig, req)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRescheduled, orig.Status)
	assert.Nil(t, orig.SlotKey)
	assert.Equal(t, models.StatusPending, repl.Status)
	assert.Equal(t, mustTime(t, "10:20"), repl.StartTime)
	assert.Equal(t, orig.Fee, repl.Fee)

	// The original slot is released and bookable again.
	_, err = coord.Book(context.Background(), doctor, bookingReq(t, uuid.New().String(), "09:00"))
	assert.NoError(t, err)
}

func TestRescheduleSameDaySwap(t *testing.T) {
	st := newMemStore()
	coord := NewCoordinator(st)
	doctor := testDoctor(t)
	doctor.Settings.MaxPerDay = 1
	patient := uuid.New().String()

	orig, err := coord.Book(context.Background(), doctor, bookingReq(t, patient, "09:00"))
	require.NoError(t, err)

	// With a cap of one, moving the only appointment within the same day
	// must not trip over itself.
	repl, err := coord.Reschedule(context.Background(), doctor, orig, bookingReq(t, patient, "11:00"))
	require.NoError(t, err)
	assert.Equal(t, mustTime(t, "11:00"), repl.StartTime)
}
