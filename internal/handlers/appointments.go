package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-scheduling-server/internal/lifecycle"
	"clinic-scheduling-server/internal/middleware"
	"clinic-scheduling-server/internal/models"
	"clinic-scheduling-server/internal/query"
	"clinic-scheduling-server/internal/scheduling"
	"clinic-scheduling-server/internal/store"
	"clinic-scheduling-server/internal/utils"
)

// AppointmentHandler handles appointment booking and lifecycle requests.
type AppointmentHandler struct {
	DB          *gorm.DB
	Store       *store.Store
	Coordinator *scheduling.Coordinator
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, st *store.Store, coord *scheduling.Coordinator) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Store: st, Coordinator: coord}
}

// BookAppointmentRequest represents the request body for booking a slot.
type BookAppointmentRequest struct {
	DoctorID         string `json:"doctorId" binding:"required,uuid"`
	PatientID        string `json:"patientId" binding:"required,uuid"`
	Date             string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime        string `json:"startTime" binding:"required"`
	ConsultationType string `json:"consultationType" binding:"required,oneof=in_person video phone chat"`
	Reason           string `json:"reason" binding:"required"`
	Notes            string `json:"notes"`
}

// BookAppointment books one generated slot through the coordinator. Patients
// book for themselves; doctors and admins may book on a patient's behalf.
func (h *AppointmentHandler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	callerID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	callerRole, _ := middleware.GetUserRoleFromContext(c)
	if callerRole == models.RolePatient && callerID != req.PatientID {
		utils.Forbidden(c, "Patients can only book appointments for themselves.")
		return
	}

	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	var profile models.DoctorProfile
	if err := h.DB.First(&profile, "user_id = ? AND active = ?", req.DoctorID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}

	appt, err := h.Coordinator.Book(c.Request.Context(), &profile, scheduling.BookingRequest{
		PatientID:        req.PatientID,
		Actor:            callerRole,
		Date:             req.Date,
		Start:            start,
		ConsultationType: models.ConsultationType(req.ConsultationType),
		Reason:           req.Reason,
		Notes:            req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrUnsupportedConsultationType):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, scheduling.ErrSlotNoLongerAvailable):
			utils.Conflict(c, err.Error())
		default:
			utils.InternalServerError(c, "Failed to book appointment: "+err.Error())
		}
		return
	}

	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in
// user, scoped by role and narrowed by the query-layer filters (status, date
// range, free text).
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	dbq := h.DB.Preload("StatusHistory")
	switch userRole {
	case models.RolePatient:
		dbq = dbq.Where("patient_id = ?", userID)
	case models.RoleDoctor:
		dbq = dbq.Where("doctor_id = ?", userID)
	case models.RoleAdmin:
		// Admins see all appointments.
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}

	var appointments []models.Appointment
	if err := dbq.Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	appointments = query.FilterAppointments(appointments, query.AppointmentFilter{
		Status:   models.AppointmentStatus(c.Query("status")),
		FromDate: c.Query("from"),
		ToDate:   c.Query("to"),
		Text:     c.Query("q"),
	})
	if c.Query("sort") == "recency" {
		query.SortAppointmentsByRecency(appointments)
	} else {
		query.SortAppointmentsBySchedule(appointments)
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appt, ok := h.loadInvolvedAppointment(c)
	if !ok {
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// UpdateAppointmentStatusRequest represents the request body for a status
// transition. Rescheduling has its own endpoint and is not a requestable
// status here.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=pending confirmed completed cancelled no_show"`
	Note   string                   `json:"note"`
}

// UpdateAppointmentStatus runs a requested transition through the state
// machine and persists the outcome. Same-status requests succeed without a
// new history entry.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, ok := h.loadInvolvedAppointment(c)
	if !ok {
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	outcome, err := models.AppointmentRules.Apply(string(appt.Status), string(req.Status), string(userRole), true)
	if err != nil {
		rejectTransition(c, err)
		return
	}
	if !outcome.Changed {
		utils.Success(c, "Appointment already in requested status", appt)
		return
	}

	if err := h.Store.ApplyAppointmentTransition(c.Request.Context(), appt, req.Status, userRole, req.Note); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			utils.Conflict(c, "Appointment was modified concurrently, re-read and retry")
		} else {
			utils.InternalServerError(c, "Failed to update appointment status: "+err.Error())
		}
		return
	}

	utils.Success(c, "Appointment status updated successfully", appt)
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" binding:"required"`
	Notes     string `json:"notes"`
}

// RescheduleAppointment closes the appointment as rescheduled and books a
// replacement slot for it, atomically. Allowed for the involved doctor or
// patient while the appointment is still pending or confirmed, and for
// admins.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, ok := h.loadInvolvedAppointment(c)
	if !ok {
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	if appt.Status != models.StatusPending && appt.Status != models.StatusConfirmed {
		utils.Conflict(c, "Only pending or confirmed appointments can be rescheduled")
		return
	}

	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var profile models.DoctorProfile
	if err := h.DB.First(&profile, "user_id = ?", appt.DoctorID).Error; err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	repl, err := h.Coordinator.Reschedule(c.Request.Context(), &profile, appt, scheduling.BookingRequest{
		PatientID:        appt.PatientID,
		Actor:            userRole,
		Date:             req.Date,
		Start:            start,
		ConsultationType: appt.ConsultationType,
		Reason:           appt.Reason,
		Notes:            req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrSlotNoLongerAvailable):
			utils.Conflict(c, err.Error())
		case errors.Is(err, store.ErrVersionConflict):
			utils.Conflict(c, "Appointment was modified concurrently, re-read and retry")
		default:
			utils.InternalServerError(c, "Failed to reschedule appointment: "+err.Error())
		}
		return
	}

	utils.Success(c, "Appointment rescheduled successfully", repl)
}

// loadInvolvedAppointment fetches the appointment addressed by :id and
// enforces that the caller is the involved patient, the involved doctor, or
// an admin.
func (h *AppointmentHandler) loadInvolvedAppointment(c *gin.Context) (*models.Appointment, bool) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.Preload("StatusHistory").First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	involved := userID == appointment.PatientID || userID == appointment.DoctorID
	if userRole != models.RoleAdmin && !involved {
		utils.Forbidden(c, "You are not authorized to access this appointment")
		return nil, false
	}
	return &appointment, true
}

// rejectTransition maps a state-machine denial onto the response taxonomy:
// role denials are authorization failures, state denials are conflicts.
func rejectTransition(c *gin.Context, err error) {
	var denial *lifecycle.Denial
	if errors.As(err, &denial) {
		switch denial.Reason {
		case lifecycle.RoleNotPermitted:
			utils.Forbidden(c, denial.Error())
		case lifecycle.MissingRequiredPayload:
			utils.BadRequest(c, denial.Error())
		default:
			utils.Conflict(c, denial.Error())
		}
		return
	}
	utils.InternalServerError(c, err.Error())
}
