package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-scheduling-server/internal/middleware"
	"clinic-scheduling-server/internal/models"
	"clinic-scheduling-server/internal/store"
	"clinic-scheduling-server/internal/utils"
)

// OrderHandler handles lab-test and imaging-study orders. Orders share the
// appointment state-machine contract with their own transition table.
type OrderHandler struct {
	DB    *gorm.DB
	Store *store.Store
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(db *gorm.DB, st *store.Store) *OrderHandler {
	return &OrderHandler{DB: db, Store: st}
}

// CreateOrderRequest represents the request body for ordering a lab test or
// imaging study for a patient.
type CreateOrderRequest struct {
	PatientID string `json:"patientId" binding:"required,uuid"`
	Kind      string `json:"kind" binding:"required,oneof=lab_test imaging_study"`
	Category  string `json:"category" binding:"required"`
}

// CreateOrder handles a doctor ordering a test or study.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	actorRole, _ := middleware.GetUserRoleFromContext(c)

	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	order := models.Order{
		PatientID:   req.PatientID,
		OrderedBy:   doctorID,
		Kind:        models.OrderKind(req.Kind),
		Category:    req.Category,
		Status:      models.OrderPending,
		OrderedDate: h.DB.NowFunc(),
		StatusHistory: []models.OrderStatusChange{
			{Status: models.OrderPending, ActorRole: actorRole},
		},
	}
	if err := h.Store.CreateOrder(c.Request.Context(), &order); err != nil {
		utils.InternalServerError(c, "Failed to create order: "+err.Error())
		return
	}

	utils.Created(c, "Order created successfully", order)
}

// GetOrdersForUser handles fetching orders scoped by role: patients see
// their own, doctors what they ordered, admins everything.
func (h *OrderHandler) GetOrdersForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	dbq := h.DB.Preload("StatusHistory").Order("ordered_date desc")
	switch userRole {
	case models.RolePatient:
		dbq = dbq.Where("patient_id = ?", userID)
	case models.RoleDoctor:
		dbq = dbq.Where("ordered_by = ?", userID)
	case models.RoleAdmin:
		// Admins see all orders.
	default:
		utils.Forbidden(c, "User role not permitted to view orders")
		return
	}
	if kind := c.Query("kind"); kind != "" {
		dbq = dbq.Where("kind = ?", kind)
	}
	if status := c.Query("status"); status != "" {
		dbq = dbq.Where("status = ?", status)
	}

	var orders []models.Order
	if err := dbq.Find(&orders).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch orders: "+err.Error())
		return
	}
	utils.Success(c, "Orders fetched successfully", orders)
}

// UpdateOrderStatusRequest represents the request body for an order status
// transition. Result must accompany completion.
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending in_progress completed cancelled"`
	Result string             `json:"result"`
}

// UpdateOrderStatus runs a requested transition through the state machine.
// Only the ordering doctor or an admin may advance an order to completed,
// and completion requires a non-empty result.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	orderID := c.Param("id")
	var order models.Order
	if err := h.DB.Preload("StatusHistory").First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Order not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	if userRole == models.RoleDoctor && userID != order.OrderedBy {
		utils.Forbidden(c, "Only the ordering doctor may update this order")
		return
	}

	outcome, err := models.OrderRules.Apply(string(order.Status), string(req.Status), string(userRole), req.Result != "")
	if err != nil {
		rejectTransition(c, err)
		return
	}
	if !outcome.Changed {
		utils.Success(c, "Order already in requested status", order)
		return
	}

	if err := h.Store.ApplyOrderTransition(c.Request.Context(), &order, req.Status, userRole, req.Result); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			utils.Conflict(c, "Order was modified concurrently, re-read and retry")
		} else {
			utils.InternalServerError(c, "Failed to update order status: "+err.Error())
		}
		return
	}

	utils.Success(c, "Order status updated successfully", order)
}
