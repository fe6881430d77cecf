package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-scheduling-server/internal/models"
)

func doctor(id, first, last, specialization string, rating float64, years int, fees map[models.ConsultationType]float64) models.DoctorProfile {
	types := make([]models.ConsultationType, 0, len(fees))
	for t := range fees {
		types = append(types, t)
	}
	return models.DoctorProfile{
		BaseModel:       models.BaseModel{ID: id},
		UserID:          id,
		Specialization:  specialization,
		Rating:          rating,
		YearsExperience: years,
		Settings: models.ConsultationSettings{
			SessionDuration: 30,
			MaxPerDay:       8,
			AllowedTypes:    types,
			FeesByType:      fees,
			Currency:        "USD",
		},
		User: models.User{FirstName: first, LastName: last},
	}
}

func testDoctors() []models.DoctorProfile {
	return []models.DoctorProfile{
		doctor("d1", "Alice", "Nowak", "Cardiology", 4.8, 12, map[models.ConsultationType]float64{models.ConsultationInPerson: 120, models.ConsultationVideo: 90}),
		doctor("d2", "Bruno", "Silva", "Dermatology", 4.2, 6, map[models.ConsultationType]float64{models.ConsultationVideo: 60}),
		doctor("d3", "Carol", "Meyer", "Cardiology", 4.8, 20, map[models.ConsultationType]float64{models.ConsultationInPerson: 150}),
		doctor("d4", "Dana", "Okafor", "Pediatrics", 3.9, 3, map[models.ConsultationType]float64{models.ConsultationChat: 25}),
	}
}

func ids(doctors []models.DoctorProfile) []string {
	out := make([]string, len(doctors))
	for i, d := range doctors {
		out[i] = d.ID
	}
	return out
}

func TestFilterDoctors(t *testing.T) {
	doctors := testDoctors()

	tests := []struct {
		name   string
		filter DoctorFilter
		want   []string
	}{
		{name: "no constraints", filter: DoctorFilter{}, want: []string{"d1", "d2", "d3", "d4"}},
		{name: "specialization case-insensitive", filter: DoctorFilter{Specialization: "cardiology"}, want: []string{"d1", "d3"}},
		{name: "min rating", filter: DoctorFilter{MinRating: 4.5}, want: []string{"d1", "d3"}},
		{name: "consultation type", filter: DoctorFilter{ConsultationType: models.ConsultationVideo}, want: []string{"d1", "d2"}},
		{name: "max fee uses lowest fee", filter: DoctorFilter{MaxFee: 60, HasMaxFee: true}, want: []string{"d2", "d4"}},
		{name: "max fee for requested type", filter: DoctorFilter{ConsultationType: models.ConsultationVideo, MaxFee: 70, HasMaxFee: true}, want: []string{"d2"}},
		{name: "text matches name", filter: DoctorFilter{Text: "alice"}, want: []string{"d1"}},
		{name: "text matches specialization", filter: DoctorFilter{Text: "derma"}, want: []string{"d2"}},
		{name: "combined", filter: DoctorFilter{Specialization: "Cardiology", MinRating: 4.5, Text: "meyer"}, want: []string{"d3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDoctors(doctors, tt.filter)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSortDoctors(t *testing.T) {
	tests := []struct {
		name string
		key  DoctorSortKey
		want []string
	}{
		// d1 and d3 tie on rating 4.8; the tie breaks on id.
		{name: "rating desc with id tiebreak", key: SortRatingDesc, want: []string{"d1", "d3", "d2", "d4"}},
		{name: "experience desc", key: SortExperienceDesc, want: []string{"d3", "d1", "d2", "d4"}},
		{name: "fee asc", key: SortFeeAsc, want: []string{"d4", "d2", "d1", "d3"}},
		{name: "fee desc", key: SortFeeDesc, want: []string{"d3", "d1", "d2", "d4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doctors := testDoctors()
			SortDoctors(doctors, tt.key, "")
			assert.Equal(t, tt.want, ids(doctors))
		})
	}
}

func appt(id, date, reason string, status models.AppointmentStatus, created time.Time) models.Appointment {
	return models.Appointment{
		BaseModel: models.BaseModel{ID: id, CreatedAt: created},
		Date:      date,
		Reason:    reason,
		Status:    status,
	}
}

func TestFilterAppointments(t *testing.T) {
	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	appts := []models.Appointment{
		appt("a1", "2025-09-01", "Annual checkup", models.StatusPending, base),
		appt("a2", "2025-09-03", "Back pain", models.StatusConfirmed, base.Add(time.Hour)),
		appt("a3", "2025-09-10", "Follow-up on back PAIN", models.StatusCancelled, base.Add(2*time.Hour)),
	}

	got := FilterAppointments(appts, AppointmentFilter{Status: models.StatusConfirmed})
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)

	got = FilterAppointments(appts, AppointmentFilter{FromDate: "2025-09-02", ToDate: "2025-09-10"})
	assert.Len(t, got, 2)

	got = FilterAppointments(appts, AppointmentFilter{Text: "back pain"})
	assert.Len(t, got, 2)

	got = FilterAppointments(appts, AppointmentFilter{Text: "back pain", ToDate: "2025-09-04"})
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
}

func TestSortAppointments(t *testing.T) {
	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	appts := []models.Appointment{
		appt("a2", "2025-09-03", "", models.StatusPending, base.Add(time.Hour)),
		appt("a1", "2025-09-01", "", models.StatusPending, base.Add(time.Hour)),
		appt("a3", "2025-09-01", "", models.StatusPending, base),
	}
	appts[0].StartTime = 600
	appts[1].StartTime = 540
	appts[2].StartTime = 540

	bySchedule := append([]models.Appointment(nil), appts...)
	SortAppointmentsBySchedule(bySchedule)
	scheduleIDs := []string{bySchedule[0].ID, bySchedule[1].ID, bySchedule[2].ID}
	// a1 and a3 share date and start time; the tie breaks on id.
	assert.Equal(t, []string{"a1", "a3", "a2"}, scheduleIDs)

	byRecency := append([]models.Appointment(nil), appts...)
	SortAppointmentsByRecency(byRecency)
	recencyIDs := []string{byRecency[0].ID, byRecency[1].ID, byRecency[2].ID}
	// a1 and a2 share the creation instant; the tie breaks on id.
	assert.Equal(t, []string{"a1", "a2", "a3"}, recencyIDs)
}
