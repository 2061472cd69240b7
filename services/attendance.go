package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// Attendance records check-in/check-out and keeps the presence flag the recipient selector
// reads for its first tier.
type Attendance struct {
	store *database.Store
	now   func() time.Time
}

func NewAttendance(store *database.Store) *Attendance {
	return &Attendance{store: store, now: time.Now}
}

// Record appends an attendance row and flips presence. Replays write another row.
func (a *Attendance) Record(ctx context.Context, actor *models.StaffIdentity, kind string) (messaging.Message, error) {
	if kind != models.AttendanceCheckIn && kind != models.AttendanceCheckOut {
		return messaging.Message{}, fmt.Errorf("unknown attendance kind %q", kind)
	}

	now := a.now()
	err := a.store.Transaction(ctx, func(tx *database.Store) error {
		if err := tx.CreateAttendance(ctx, &models.Attendance{
			StaffID:   actor.StaffID,
			Kind:      kind,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.SetPresence(ctx, actor.StaffID, kind == models.AttendanceCheckIn)
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("record %s: %w", kind, err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"staff_id": actor.StaffID,
		"kind":     kind,
	}).Info("attendance recorded")
	return AttendanceMessage(actor.Name(), kind, now), nil
}
