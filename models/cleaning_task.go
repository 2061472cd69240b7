package models

import "time"

type TaskStatus string

const (
	TaskPending              TaskStatus = "pending"
	TaskAccepted             TaskStatus = "accepted"
	TaskInProgress           TaskStatus = "in_progress"
	TaskCompleted            TaskStatus = "completed"
	TaskInspected            TaskStatus = "inspected"
	TaskPendingRepairDetails TaskStatus = "pending_repair_details"
	TaskNeedsRepair          TaskStatus = "needs_repair"
)

// ActiveTaskStatuses are the statuses in which a task is owned and being worked on.
var ActiveTaskStatuses = []TaskStatus{TaskAccepted, TaskInProgress}

// CleaningTask tracks one room's post-checkout cleaning cycle. Rows are never deleted.
type CleaningTask struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RoomID       uint       `gorm:"not null;index" json:"room_id"`
	Room         Room       `gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"room"`
	BookingID    *string    `gorm:"type:varchar(64)" json:"booking_id,omitempty"`
	Status       TaskStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	AssigneeID   *uint      `gorm:"index" json:"assignee_id,omitempty"`
	Assignee     *Staff     `gorm:"foreignKey:AssigneeID;references:ID" json:"assignee,omitempty"`
	CheckoutTime *time.Time `json:"checkout_time,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	InspectedAt  *time.Time `json:"inspected_at,omitempty"`
	InspectorID  *uint      `json:"inspector_id,omitempty"`
	Notes        string     `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
