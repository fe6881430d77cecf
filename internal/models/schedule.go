package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used across the API ("2025-09-01").
const DateLayout = "2006-01-02"

// TimeOfDay is a local time of day stored as minutes since midnight. It
// marshals as "HH:MM" so schedules read naturally in JSON documents.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24-hour format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns the time of day the given number of minutes later.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeWindow is a half-open availability window [Start, End).
type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// ScheduleDay represents a doctor's availability for one weekday.
type ScheduleDay struct {
	IsAvailable bool         `json:"isAvailable"`
	Windows     []TimeWindow `json:"windows,omitempty"`
}

// WeeklySchedule is a doctor's recurring weekly availability. It is owned by
// exactly one doctor and replaced wholesale on update.
type WeeklySchedule struct {
	Monday    ScheduleDay `json:"monday"`
	Tuesday   ScheduleDay `json:"tuesday"`
	Wednesday ScheduleDay `json:"wednesday"`
	Thursday  ScheduleDay `json:"thursday"`
	Friday    ScheduleDay `json:"friday"`
	Saturday  ScheduleDay `json:"saturday"`
	Sunday    ScheduleDay `json:"sunday"`
}

// Day returns the schedule for the given weekday.
func (w WeeklySchedule) Day(d time.Weekday) ScheduleDay {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// Schedule validation errors.
var (
	ErrInvalidWindow     = errors.New("invalid schedule window")
	ErrOverlappingWindow = errors.New("overlapping schedule windows")
	ErrWindowTooShort    = errors.New("schedule window shorter than session duration")
)

const minutesPerDay = 24 * 60

// Validate checks every day of the schedule: windows must be within the day,
// sorted ascending, non-overlapping, and each long enough to hold at least one
// session. An unavailable day must carry no windows.
func (w WeeklySchedule) Validate(settings ConsultationSettings) error {
	for d := time.Sunday; d <= time.Saturday; d++ {
		day := w.Day(d)
		name := d.String()
		if !day.IsAvailable {
			if len(day.Windows) > 0 {
				return fmt.Errorf("%w: %s is unavailable but has windows", ErrInvalidWindow, name)
			}
			continue
		}
		for i, win := range day.Windows {
			if win.Start < 0 || win.End > minutesPerDay || win.End <= win.Start {
				return fmt.Errorf("%w: %s window %d (%s-%s)", ErrInvalidWindow, name, i, win.Start, win.End)
			}
			if int(win.End-win.Start) < settings.SessionDuration {
				return fmt.Errorf("%w: %s window %d (%s-%s)", ErrWindowTooShort, name, i, win.Start, win.End)
			}
			if i > 0 && win.Start < day.Windows[i-1].End {
				return fmt.Errorf("%w: %s windows %d and %d", ErrOverlappingWindow, name, i-1, i)
			}
		}
	}
	return nil
}

// ConsultationType enumerates how a consultation is delivered.
type ConsultationType string

const (
	ConsultationInPerson ConsultationType = "in_person"
	ConsultationVideo    ConsultationType = "video"
	ConsultationPhone    ConsultationType = "phone"
	ConsultationChat     ConsultationType = "chat"
)

// ConsultationSettings holds a doctor's consultation parameters. Like the
// weekly schedule it is replaced as a whole document.
type ConsultationSettings struct {
	SessionDuration int                          `json:"sessionDuration"`
	BufferMinutes   int                          `json:"bufferMinutes"`
	MaxPerDay       int                          `json:"maxPerDay"`
	AllowedTypes    []ConsultationType           `json:"allowedTypes"`
	FeesByType      map[ConsultationType]float64 `json:"feesByType"`
	Currency        string                       `json:"currency"`
}

// Settings validation errors.
var (
	ErrInvalidSessionDuration = errors.New("session duration must be positive")
	ErrInvalidBuffer          = errors.New("buffer minutes must not be negative")
	ErrInvalidDailyCap        = errors.New("max appointments per day must be positive")
	ErrInvalidFee             = errors.New("consultation fee must not be negative")
	ErrUnknownConsultType     = errors.New("unknown consultation type")
)

func validConsultationType(t ConsultationType) bool {
	switch t {
	case ConsultationInPerson, ConsultationVideo, ConsultationPhone, ConsultationChat:
		return true
	}
	return false
}

// Validate checks the consultation parameters.
func (s ConsultationSettings) Validate() error {
	if s.SessionDuration <= 0 {
		return ErrInvalidSessionDuration
	}
	if s.BufferMinutes < 0 {
		return ErrInvalidBuffer
	}
	if s.MaxPerDay <= 0 {
		return ErrInvalidDailyCap
	}
	for _, t := range s.AllowedTypes {
		if !validConsultationType(t) {
			return fmt.Errorf("%w: %q", ErrUnknownConsultType, t)
		}
	}
	for t, fee := range s.FeesByType {
		if !validConsultationType(t) {
			return fmt.Errorf("%w: %q", ErrUnknownConsultType, t)
		}
		if fee < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidFee, t)
		}
	}
	return nil
}

// Allows reports whether the doctor offers the given consultation type.
func (s ConsultationSettings) Allows(t ConsultationType) bool {
	for _, allowed := range s.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// FeeFor returns the fee charged for the given consultation type.
func (s ConsultationSettings) FeeFor(t ConsultationType) (float64, bool) {
	fee, ok := s.FeesByType[t]
	return fee, ok
}

// MinFee returns the lowest fee across the doctor's allowed types, used for
// fee-based filtering and sorting when no specific type is requested.
func (s ConsultationSettings) MinFee() (float64, bool) {
	found := false
	var min float64
	for _, t := range s.AllowedTypes {
		fee, ok := s.FeesByType[t]
		if !ok {
			continue
		}
		if !found || fee < min {
			min = fee
			found = true
		}
	}
	return min, found
}
