package models

import (
	"time"
)

type NotificationType string

const (
	NotifyTaskAssigned    NotificationType = "task_assigned"
	NotifyRepairRequested NotificationType = "repair_requested"
	NotifyCleaningDone    NotificationType = "cleaning_done"
	NotifyRepairDone      NotificationType = "repair_done"
	NotifyCustom          NotificationType = "custom"
)

// DeliveryStatusSent is written optimistically; the platform gives no delivery receipts.
const DeliveryStatusSent = "sent"

// Notification is the append-only delivery audit log, one row per recipient.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID string           `gorm:"type:varchar(64);not null;index" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(32);not null;index" json:"type"`
	TaskID      *uint            `gorm:"index" json:"task_id,omitempty"`
	ReportID    *uint            `gorm:"index" json:"report_id,omitempty"`
	RoomID      *uint            `json:"room_id,omitempty"`
	Content     string           `gorm:"type:text;not null" json:"content"`
	Status      string           `gorm:"type:varchar(16);not null" json:"status"`
	SentAt      time.Time        `gorm:"not null" json:"sent_at"`
}
