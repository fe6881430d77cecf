package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestTimeOfDayJSON(t *testing.T) {
	tod := mustTime(t, "09:05")
	assert.Equal(t, TimeOfDay(545), tod)
	assert.Equal(t, "09:05", tod.String())

	data, err := json.Marshal(tod)
	require.NoError(t, err)
	assert.Equal(t, `"09:05"`, string(data))

	var back TimeOfDay
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tod, back)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("9am")
	assert.Error(t, err)
}

func testSettings() ConsultationSettings {
	return ConsultationSettings{
		SessionDuration: 30,
		BufferMinutes:   10,
		MaxPerDay:       4,
		AllowedTypes:    []ConsultationType{ConsultationInPerson, ConsultationVideo},
		FeesByType:      map[ConsultationType]float64{ConsultationInPerson: 80, ConsultationVideo: 50},
		Currency:        "USD",
	}
}

func TestWeeklyScheduleValidate(t *testing.T) {
	window := func(start, end string) TimeWindow {
		return TimeWindow{Start: mustTime(t, start), End: mustTime(t, end)}
	}

	tests := []struct {
		name    string
		day     ScheduleDay
		wantErr error
	}{
		{
			name: "valid windows",
			day:  ScheduleDay{IsAvailable: true, Windows: []TimeWindow{window("09:00", "12:00"), window("14:00", "17:00")}},
		},
		{
			name:    "end before start",
			day:     ScheduleDay{IsAvailable: true, Windows: []TimeWindow{window("12:00", "09:00")}},
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "unavailable day with windows",
			day:     ScheduleDay{IsAvailable: false, Windows: []TimeWindow{window("09:00", "12:00")}},
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "overlapping windows",
			day:     ScheduleDay{IsAvailable: true, Windows: []TimeWindow{window("09:00", "12:00"), window("11:00", "14:00")}},
			wantErr: ErrOverlappingWindow,
		},
		{
			name:    "unsorted windows",
			day:     ScheduleDay{IsAvailable: true, Windows: []TimeWindow{window("14:00", "17:00"), window("09:00", "12:00")}},
			wantErr: ErrOverlappingWindow,
		},
		{
			name:    "window shorter than session",
			day:     ScheduleDay{IsAvailable: true, Windows: []TimeWindow{window("09:00", "09:20")}},
			wantErr: ErrWindowTooShort,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week := WeeklySchedule{Monday: tt.day}
			err := week.Validate(testSettings())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConsultationSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConsultationSettings)
		wantErr error
	}{
		{name: "valid", mutate: func(s *ConsultationSettings) {}},
		{name: "zero session", mutate: func(s *ConsultationSettings) { s.SessionDuration = 0 }, wantErr: ErrInvalidSessionDuration},
		{name: "negative buffer", mutate: func(s *ConsultationSettings) { s.BufferMinutes = -1 }, wantErr: ErrInvalidBuffer},
		{name: "zero cap", mutate: func(s *ConsultationSettings) { s.MaxPerDay = 0 }, wantErr: ErrInvalidDailyCap},
		{name: "unknown type", mutate: func(s *ConsultationSettings) { s.AllowedTypes = append(s.AllowedTypes, "carrier_pigeon") }, wantErr: ErrUnknownConsultType},
		{name: "negative fee", mutate: func(s *ConsultationSettings) { s.FeesByType[ConsultationVideo] = -5 }, wantErr: ErrInvalidFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSettingsFees(t *testing.T) {
	s := testSettings()

	assert.True(t, s.Allows(ConsultationVideo))
	assert.False(t, s.Allows(ConsultationChat))

	fee, ok := s.FeeFor(ConsultationInPerson)
	require.True(t, ok)
	assert.Equal(t, 80.0, fee)

	min, ok := s.MinFee()
	require.True(t, ok)
	assert.Equal(t, 50.0, min)

	s.FeesByType = nil
	_, ok = s.MinFee()
	assert.False(t, ok)
}

func TestAppointmentTerminalAndHistoryReplay(t *testing.T) {
	a := Appointment{Status: StatusPending}
	assert.False(t, a.Terminal())
	for _, st := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled} {
		a.Status = st
		assert.True(t, a.Terminal(), "status %s", st)
	}

	// Replaying the append-only history reconstructs the current status.
	a = Appointment{
		Status: StatusCompleted,
		StatusHistory: []AppointmentStatusChange{
			{Status: StatusPending, ActorRole: RolePatient},
			{Status: StatusConfirmed, ActorRole: RoleDoctor},
			{Status: StatusCompleted, ActorRole: RoleDoctor},
		},
	}
	replayed := a.StatusHistory[len(a.StatusHistory)-1].Status
	assert.Equal(t, a.Status, replayed)
}

func TestSlotKey(t *testing.T) {
	key := SlotKey("doc-1", "2025-09-01", TimeOfDay(9*60))
	assert.Equal(t, "doc-1|2025-09-01|09:00", key)
}
