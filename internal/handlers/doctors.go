package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-scheduling-server/internal/middleware"
	"clinic-scheduling-server/internal/models"
	"clinic-scheduling-server/internal/query"
	"clinic-scheduling-server/internal/scheduling"
	"clinic-scheduling-server/internal/store"
	"clinic-scheduling-server/internal/utils"
)

// DoctorHandler handles doctor listing, availability and profile documents.
type DoctorHandler struct {
	DB    *gorm.DB
	Store *store.Store
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB, st *store.Store) *DoctorHandler {
	return &DoctorHandler{DB: db, Store: st}
}

// DoctorListing is the listing shape for one doctor.
type DoctorListing struct {
	models.DoctorProfile
	Name string `json:"name"`
}

// GetDoctors handles the filtered, sorted doctor listing. Filters and sort
// keys come from query parameters; the heavy lifting is the pure query layer.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	var doctors []models.DoctorProfile
	if err := h.DB.Preload("User").Where("active = ?", true).Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	filter := query.DoctorFilter{
		Specialization:   c.Query("specialization"),
		ConsultationType: models.ConsultationType(c.Query("consultationType")),
		Text:             c.Query("q"),
	}
	if v := c.Query("minRating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(c, "Invalid minRating")
			return
		}
		filter.MinRating = r
	}
	if v := c.Query("maxFee"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(c, "Invalid maxFee")
			return
		}
		filter.MaxFee = f
		filter.HasMaxFee = true
	}

	doctors = query.FilterDoctors(doctors, filter)
	query.SortDoctors(doctors, query.DoctorSortKey(c.DefaultQuery("sort", string(query.SortRatingDesc))), filter.ConsultationType)

	listings := make([]DoctorListing, len(doctors))
	for i, d := range doctors {
		listings[i] = DoctorListing{DoctorProfile: d, Name: d.User.FullName()}
	}
	utils.Success(c, "Doctors fetched successfully", listings)
}

// GetDoctorSlots returns the bookable slots for a doctor on a date.
func (h *DoctorHandler) GetDoctorSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		utils.BadRequest(c, "date query parameter is required")
		return
	}

	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	booked, err := h.Store.ListByDoctorAndDate(c.Request.Context(), profile.UserID, date)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	slots, err := scheduling.GenerateSlots(profile.Schedule, profile.Settings, date, booked)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	utils.Success(c, "Slots fetched successfully", slots)
}

// UpdateScheduleRequest carries the full replacement schedule document and
// the profile version it was derived from.
type UpdateScheduleRequest struct {
	Schedule models.WeeklySchedule `json:"schedule"`
	Version  int                   `json:"version" binding:"required,min=1"`
}

// UpdateSchedule replaces a doctor's weekly schedule wholesale. Only the
// doctor themselves or an admin may do it, and the document is validated
// before acceptance.
func (h *DoctorHandler) UpdateSchedule(c *gin.Context) {
	profile, ok := h.loadOwnedProfile(c)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := req.Schedule.Validate(profile.Settings); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.Store.ReplaceSchedule(c.Request.Context(), profile, req.Schedule, req.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			utils.Conflict(c, "Schedule was modified concurrently, re-read and retry")
		} else {
			utils.InternalServerError(c, "Failed to update schedule: "+err.Error())
		}
		return
	}
	utils.Success(c, "Schedule updated successfully", profile)
}

// UpdateSettingsRequest carries the full replacement consultation settings
// and the profile version they were derived from.
type UpdateSettingsRequest struct {
	Settings models.ConsultationSettings `json:"settings"`
	Version  int                         `json:"version" binding:"required,min=1"`
}

// UpdateSettings replaces a doctor's consultation settings wholesale. The
// existing schedule is re-validated against the new session duration so no
// published window becomes too short to hold a session.
func (h *DoctorHandler) UpdateSettings(c *gin.Context) {
	profile, ok := h.loadOwnedProfile(c)
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := req.Settings.Validate(); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if err := profile.Schedule.Validate(req.Settings); err != nil {
		utils.BadRequest(c, "Current schedule incompatible with new settings: "+err.Error())
		return
	}

	if err := h.Store.ReplaceSettings(c.Request.Context(), profile, req.Settings, req.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			utils.Conflict(c, "Settings were modified concurrently, re-read and retry")
		} else {
			utils.InternalServerError(c, "Failed to update settings: "+err.Error())
		}
		return
	}
	utils.Success(c, "Settings updated successfully", profile)
}

// loadProfile fetches the doctor profile addressed by the :id route
// parameter (the doctor's user id).
func (h *DoctorHandler) loadProfile(c *gin.Context) (*models.DoctorProfile, bool) {
	doctorID := c.Param("id")

	var profile models.DoctorProfile
	if err := h.DB.First(&profile, "user_id = ?", doctorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &profile, true
}

// loadOwnedProfile is loadProfile plus the ownership check for document
// updates: the doctor themselves or an admin.
func (h *DoctorHandler) loadOwnedProfile(c *gin.Context) (*models.DoctorProfile, bool) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return nil, false
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)
	if userRole != models.RoleAdmin && userID != profile.UserID {
		utils.Forbidden(c, "You are not authorized to modify this doctor's profile")
		return nil, false
	}
	return profile, true
}
