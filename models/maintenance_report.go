package models

import "time"

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportInProgress ReportStatus = "in_progress"
	ReportResolved   ReportStatus = "resolved"
	// ReportClosed is reached when an administrator opens the room again.
	ReportClosed ReportStatus = "closed"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority defaults to normal for anything other than "high".
func ParsePriority(s string) Priority {
	if Priority(s) == PriorityHigh {
		return PriorityHigh
	}
	return PriorityNormal
}

type MaintenanceReport struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	RoomID      uint         `gorm:"not null;index" json:"room_id"`
	Room        Room         `gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"room"`
	TaskID      *uint        `gorm:"index" json:"task_id,omitempty"`
	ReporterID  *uint        `json:"reporter_id,omitempty"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Priority    Priority     `gorm:"type:varchar(16);not null;default:'normal'" json:"priority"`
	Status      ReportStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	AssigneeID  *uint        `gorm:"index" json:"assignee_id,omitempty"`
	Assignee    *Staff       `gorm:"foreignKey:AssigneeID;references:ID" json:"assignee,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}
