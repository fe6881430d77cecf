// Package scheduling converts a doctor's declared weekly availability into
// bookable slots and coordinates booking attempts so no slot is sold twice.
package scheduling

import (
	"fmt"
	"time"

	"clinic-scheduling-server/internal/models"
)

// Slot is a candidate appointment time generated from a doctor's availability.
type Slot struct {
	Start models.TimeOfDay `json:"start"`
	End   models.TimeOfDay `json:"end"`
}

// SlotList is the generator output for one doctor and date. SlotsRemaining is
// the daily-cap headroom, attached for display.
type SlotList struct {
	Date           string `json:"date"`
	Slots          []Slot `json:"slots"`
	SlotsRemaining int    `json:"slotsRemaining"`
}

// GenerateSlots produces the ordered bookable start times for one doctor and
// date. It is a pure function: it reads the schedule, the consultation
// parameters and the already-booked appointments for the date, and has no
// side effects.
//
// Booked appointments in a terminal status do not occupy their slot. Active
// ones block every candidate overlapping [start, end+buffer), and once their
// count reaches the daily cap no slots are offered at all, even when the
// windows would still have room.
func GenerateSlots(week models.WeeklySchedule, settings models.ConsultationSettings, date string, booked []models.Appointment) (SlotList, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return SlotList{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if err := settings.Validate(); err != nil {
		return SlotList{}, err
	}

	out := SlotList{Date: date, Slots: []Slot{}}

	active := make([]models.Appointment, 0, len(booked))
	for _, a := range booked {
		if !a.Terminal() {
			active = append(active, a)
		}
	}

	out.SlotsRemaining = settings.MaxPerDay - len(active)
	if out.SlotsRemaining < 0 {
		out.SlotsRemaining = 0
	}
	if len(active) >= settings.MaxPerDay {
		return out, nil
	}

	sched := week.Day(day.Weekday())
	if !sched.IsAvailable {
		return out, nil
	}

	stride := settings.SessionDuration + settings.BufferMinutes
	for _, win := range sched.Windows {
		for start := win.Start; start.Add(settings.SessionDuration) <= win.End; start = start.Add(stride) {
			slot := Slot{Start: start, End: start.Add(settings.SessionDuration)}
			if slotFree(slot, active, settings.BufferMinutes) {
				out.Slots = append(out.Slots, slot)
			}
		}
	}
	return out, nil
}

// slotFree applies the half-open overlap test against every active
// appointment, padding the appointment end with the buffer.
func slotFree(slot Slot, active []models.Appointment, buffer int) bool {
	for _, a := range active {
		if slot.Start < a.EndTime().Add(buffer) && a.StartTime < slot.End {
			return false
		}
	}
	return true
}
