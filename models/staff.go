package models

import "time"

// Staff is the internal staff record. It is owned by the hotel application; this service
// only reads it and toggles IsOnline on check-in/check-out.
type Staff struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Role      Role      `gorm:"type:varchar(32);not null;index" json:"role"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	IsOnline  bool      `gorm:"not null;default:false" json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	IdentityActive   = "active"
	IdentityInactive = "inactive"
)

// StaffIdentity maps one chat platform user onto a staff record.
type StaffIdentity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"external_id"`
	StaffID     uint      `gorm:"not null;index" json:"staff_id"`
	Staff       Staff     `gorm:"foreignKey:StaffID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"staff"`
	DisplayName string    `gorm:"type:varchar(255)" json:"display_name"`
	PictureURL  string    `gorm:"type:varchar(512)" json:"picture_url,omitempty"`
	Status      string    `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	MenuKey     string    `gorm:"type:varchar(64)" json:"menu_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name prefers the staff record's name over the chat display name.
func (si StaffIdentity) Name() string {
	if si.Staff.Name != "" {
		return si.Staff.Name
	}
	return si.DisplayName
}

// RegistrationCode is a one-time onboarding code. It is usable while UsedAt is nil and
// ExpiresAt is in the future.
type RegistrationCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"type:varchar(6);not null;uniqueIndex" json:"code"`
	StaffID   uint       `gorm:"not null;index" json:"staff_id"`
	Staff     Staff      `gorm:"foreignKey:StaffID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *string    `gorm:"type:varchar(64)" json:"used_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the code can still be consumed at now.
func (rc RegistrationCode) Usable(now time.Time) bool {
	return rc.UsedAt == nil && now.Before(rc.ExpiresAt)
}

// Attendance records one check-in or check-out confirmation.
type Attendance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StaffID   uint      `gorm:"not null;index" json:"staff_id"`
	Kind      string    `gorm:"type:varchar(16);not null" json:"kind"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

const (
	AttendanceCheckIn  = "check_in"
	AttendanceCheckOut = "check_out"
)

func (Staff) TableName() string { return "staff_members" }

func (StaffIdentity) TableName() string { return "staff_identities" }
