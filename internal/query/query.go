// Package query provides the stateless filter predicates and comparators the
// listing endpoints apply over doctor and appointment collections. Everything
// here is pure and order-stable, with ties broken by entity id.
package query

import (
	"sort"
	"strings"

	"clinic-scheduling-server/internal/models"
)

// DoctorFilter narrows a doctor listing. Zero values mean "no constraint";
// HasMaxFee distinguishes "no fee limit" from a limit of zero.
type DoctorFilter struct {
	Specialization   string
	MinRating        float64
	MaxFee           float64
	HasMaxFee        bool
	ConsultationType models.ConsultationType
	Text             string
}

// FilterDoctors returns the doctors matching every set constraint, preserving
// input order. The fee constraint uses the fee for the requested consultation
// type, or the doctor's lowest fee when no type is requested.
func FilterDoctors(doctors []models.DoctorProfile, f DoctorFilter) []models.DoctorProfile {
	out := make([]models.DoctorProfile, 0, len(doctors))
	for _, d := range doctors {
		if f.Specialization != "" && !strings.EqualFold(d.Specialization, f.Specialization) {
			continue
		}
		if d.Rating < f.MinRating {
			continue
		}
		if f.ConsultationType != "" && !d.Settings.Allows(f.ConsultationType) {
			continue
		}
		if f.HasMaxFee {
			fee, ok := doctorFee(d, f.ConsultationType)
			if !ok || fee > f.MaxFee {
				continue
			}
		}
		if f.Text != "" && !doctorMatchesText(d, f.Text) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func doctorFee(d models.DoctorProfile, t models.ConsultationType) (float64, bool) {
	if t != "" {
		return d.Settings.FeeFor(t)
	}
	return d.Settings.MinFee()
}

func doctorMatchesText(d models.DoctorProfile, text string) bool {
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(d.User.FullName()), needle) ||
		strings.Contains(strings.ToLower(d.Specialization), needle)
}

// DoctorSortKey selects the doctor listing order.
type DoctorSortKey string

const (
	SortRatingDesc     DoctorSortKey = "rating"
	SortExperienceDesc DoctorSortKey = "experience"
	SortFeeAsc         DoctorSortKey = "fee_asc"
	SortFeeDesc        DoctorSortKey = "fee_desc"
)

// SortDoctors orders the slice in place by the given key. Doctors without a
// fee sort after those with one on the fee keys.
func SortDoctors(doctors []models.DoctorProfile, key DoctorSortKey, forType models.ConsultationType) {
	less := func(a, b models.DoctorProfile) bool { return a.Rating > b.Rating }
	switch key {
	case SortExperienceDesc:
		less = func(a, b models.DoctorProfile) bool { return a.YearsExperience > b.YearsExperience }
	case SortFeeAsc, SortFeeDesc:
		asc := key == SortFeeAsc
		less = func(a, b models.DoctorProfile) bool {
			fa, oka := doctorFee(a, forType)
			fb, okb := doctorFee(b, forType)
			if oka != okb {
				return oka
			}
			if fa != fb {
				if asc {
					return fa < fb
				}
				return fa > fb
			}
			return false
		}
	}
	sort.SliceStable(doctors, func(i, j int) bool {
		a, b := doctors[i], doctors[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
}

// AppointmentFilter narrows an appointment listing.
type AppointmentFilter struct {
	Status   models.AppointmentStatus
	FromDate string
	ToDate   string
	Text     string
}

// FilterAppointments returns the appointments matching every set constraint.
// Date bounds are inclusive; ISO dates compare lexicographically. Free text
// matches the reason and notes fields, case-insensitively.
func FilterAppointments(appts []models.Appointment, f AppointmentFilter) []models.Appointment {
	out := make([]models.Appointment, 0, len(appts))
	for _, a := range appts {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.FromDate != "" && a.Date < f.FromDate {
			continue
		}
		if f.ToDate != "" && a.Date > f.ToDate {
			continue
		}
		if f.Text != "" {
			needle := strings.ToLower(f.Text)
			if !strings.Contains(strings.ToLower(a.Reason), needle) &&
				!strings.Contains(strings.ToLower(a.Notes), needle) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// SortAppointmentsByRecency orders appointments newest first by creation
// time, ties broken by id.
func SortAppointmentsByRecency(appts []models.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortAppointmentsBySchedule orders appointments by date then start time,
// ties broken by id.
func SortAppointmentsBySchedule(appts []models.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}
