package models

import (
	"fmt"
	"time"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomCleaning    RoomStatus = "cleaning"
	RoomMaintenance RoomStatus = "maintenance"
)

// Room belongs to the property management side. This service only writes Status.
type Room struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RoomNumber string     `gorm:"type:varchar(50);not null" json:"room_number"`
	Floor      int        `json:"floor"`
	Status     RoomStatus `gorm:"type:varchar(32);not null;default:'available'" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Label is the room number, or a placeholder built from the id when the room is unknown.
func (r Room) Label() string {
	if r.RoomNumber != "" {
		return r.RoomNumber
	}
	return fmt.Sprintf("#%d", r.ID)
}
