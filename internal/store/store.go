// Package store is the persistence boundary for the scheduling engine. Every
// status or document write is a compare-and-set on the entity version, and
// slot uniqueness is enforced by the appointments slot-key index, so two
// concurrent writers can never both succeed on the same key.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"clinic-scheduling-server/internal/models"
	"clinic-scheduling-server/internal/scheduling"
)

// ErrVersionConflict is returned when a conditional write lost to a
// concurrent one. Callers may retry after re-reading current state.
var ErrVersionConflict = errors.New("version conflict")

// Store wraps the database for the handlers and the booking coordinator.
type Store struct {
	DB *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ListByDoctorAndDate returns all of a doctor's appointments for a calendar
// date, terminal ones included; the slot generator decides which still occupy
// their slot.
func (s *Store) ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.DB.WithContext(ctx).
		Where("doctor_id = ? AND date = ?", doctorID, date).
		Order("start_time asc").
		Find(&appts).Error
	return appts, err
}

// CreateAppointment inserts a new appointment together with its initial
// status-history entry. A duplicate slot key means another booking won the
// race and is reported as the retryable slot conflict.
func (s *Store) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	err := s.DB.WithContext(ctx).Create(appt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return scheduling.ErrSlotNoLongerAvailable
	}
	return err
}

// RescheduleAppointment closes the original as rescheduled and inserts the
// replacement in one transaction. The original's slot key is released so the
// old time becomes bookable again.
func (s *Store) RescheduleAppointment(ctx context.Context, orig *models.Appointment, repl *models.Appointment) error {
	actor := models.RoleDoctor
	if len(repl.StatusHistory) > 0 {
		actor = repl.StatusHistory[0].ActorRole
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND version = ?", orig.ID, orig.Version).
			Updates(map[string]interface{}{
				"status":   models.StatusRescheduled,
				"slot_key": nil,
				"version":  orig.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		entry := models.AppointmentStatusChange{
			AppointmentID: orig.ID,
			Status:        models.StatusRescheduled,
			ActorRole:     actor,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Create(repl).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return scheduling.ErrSlotNoLongerAvailable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	orig.Status = models.StatusRescheduled
	orig.SlotKey = nil
	orig.Version++
	return nil
}

// ApplyAppointmentTransition persists a state-machine outcome with a CAS on
// the appointment version and appends the audit entry. Reaching a terminal
// status releases the slot key.
func (s *Store) ApplyAppointmentTransition(ctx context.Context, appt *models.Appointment, newStatus models.AppointmentStatus, actor models.Role, note string) error {
	updates := map[string]interface{}{
		"status":  newStatus,
		"version": appt.Version + 1,
	}
	terminal := models.AppointmentRules.Terminal(string(newStatus))
	if terminal {
		updates["slot_key"] = nil
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND version = ?", appt.ID, appt.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		entry := models.AppointmentStatusChange{
			AppointmentID: appt.ID,
			Status:        newStatus,
			ActorRole:     actor,
			Note:          note,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return err
	}
	appt.Status = newStatus
	appt.Version++
	if terminal {
		appt.SlotKey = nil
	}
	return nil
}

// ReplaceSchedule atomically replaces a doctor's weekly schedule document,
// guarded by the profile version the caller read.
func (s *Store) ReplaceSchedule(ctx context.Context, profile *models.DoctorProfile, schedule models.WeeklySchedule, expectedVersion int) error {
	// Struct-based update so the schedule document goes through the JSON
	// serializer; map updates would write the raw struct.
	res := s.DB.WithContext(ctx).Model(&models.DoctorProfile{}).
		Where("id = ? AND version = ?", profile.ID, expectedVersion).
		Select("Schedule", "Version").
		Updates(models.DoctorProfile{Schedule: schedule, BaseModel: models.BaseModel{Version: expectedVersion + 1}})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	profile.Schedule = schedule
	profile.Version = expectedVersion + 1
	return nil
}

// ReplaceSettings atomically replaces a doctor's consultation settings
// document, guarded by the profile version the caller read.
func (s *Store) ReplaceSettings(ctx context.Context, profile *models.DoctorProfile, settings models.ConsultationSettings, expectedVersion int) error {
	res := s.DB.WithContext(ctx).Model(&models.DoctorProfile{}).
		Where("id = ? AND version = ?", profile.ID, expectedVersion).
		Select("Settings", "Version").
		Updates(models.DoctorProfile{Settings: settings, BaseModel: models.BaseModel{Version: expectedVersion + 1}})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	profile.Settings = settings
	profile.Version = expectedVersion + 1
	return nil
}

// CreateOrder inserts a new lab or imaging order with its initial history
// entry.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.DB.WithContext(ctx).Create(order).Error
}

// ApplyOrderTransition persists a state-machine outcome on an order with a
// CAS on its version. Completion stores the result and the completion time.
func (s *Store) ApplyOrderTransition(ctx context.Context, order *models.Order, newStatus models.OrderStatus, actor models.Role, result string) error {
	updates := map[string]interface{}{
		"status":  newStatus,
		"version": order.Version + 1,
	}
	if newStatus == models.OrderCompleted {
		updates["result"] = result
		updates["completed_date"] = s.DB.NowFunc()
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		entry := models.OrderStatusChange{
			OrderID:   order.ID,
			Status:    newStatus,
			ActorRole: actor,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return err
	}
	order.Status = newStatus
	order.Version++
	if newStatus == models.OrderCompleted {
		order.Result = result
		now := s.DB.NowFunc()
		order.CompletedDate = &now
	}
	return nil
}
