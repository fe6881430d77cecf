package models

import (
	"time"

	"clinic-scheduling-server/internal/lifecycle"
)

// OrderKind discriminates the two order families sharing this shape.
type OrderKind string

const (
	OrderLabTest      OrderKind = "lab_test"
	OrderImagingStudy OrderKind = "imaging_study"
)

// OrderStatus represents the status of a lab test or imaging study.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderRules is the order transition and permission table. Completion must
// carry a result payload; whether the actor is the ordering doctor is checked
// by the handler, which knows the caller's identity.
var OrderRules = &lifecycle.Rules{
	Transitions: map[string][]string{
		string(OrderPending):    {string(OrderInProgress), string(OrderCancelled)},
		string(OrderInProgress): {string(OrderCompleted), string(OrderCancelled)},
	},
	RoleTargets: map[string][]string{
		string(RoleDoctor): {string(OrderInProgress), string(OrderCompleted), string(OrderCancelled)},
		string(RoleAdmin):  {string(OrderInProgress), string(OrderCompleted), string(OrderCancelled)},
	},
	PayloadRequired: map[string]bool{
		string(OrderCompleted): true,
	},
}

// Order represents a lab test or imaging study ordered for a patient. Orders
// follow the same state-machine contract as appointments with their own
// transition table.
type Order struct {
	BaseModel
	PatientID     string      `gorm:"size:36;index" json:"patientId"`
	OrderedBy     string      `gorm:"size:36;index" json:"orderedBy"`
	Kind          OrderKind   `gorm:"size:20;index" json:"kind"`
	Category      string      `gorm:"size:100" json:"category"`
	Status        OrderStatus `gorm:"size:20;default:'pending'" json:"status"`
	Result        string      `gorm:"type:text" json:"result,omitempty"`
	OrderedDate   time.Time   `json:"orderedDate"`
	CompletedDate *time.Time  `json:"completedDate,omitempty"`

	StatusHistory []OrderStatusChange `gorm:"foreignKey:OrderID" json:"statusHistory,omitempty"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:OrderedBy" json:"-"`
}

// OrderStatusChange is one append-only audit entry for an order.
type OrderStatusChange struct {
	BaseModel
	OrderID   string      `gorm:"size:36;index" json:"orderId"`
	Status    OrderStatus `gorm:"size:20" json:"status"`
	ActorRole Role        `gorm:"size:20" json:"actorRole"`
	Note      string      `gorm:"size:255" json:"note,omitempty"`
}

// Terminal reports whether the order accepts no further transitions.
func (o *Order) Terminal() bool {
	return OrderRules.Terminal(string(o.Status))
}
