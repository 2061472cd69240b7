package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/feed"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// Dispatch summarises a fan-out: how many recipients were addressed and which audience.
type Dispatch struct {
	SentTo int
	Target string
}

// Maintenance drives the repair lifecycle: pending -> in_progress -> resolved -> closed.
type Maintenance struct {
	store    *database.Store
	selector *RecipientSelector
	notifier *Notifier
	hub      *feed.Hub
	now      func() time.Time
}

func NewMaintenance(store *database.Store, selector *RecipientSelector, notifier *Notifier, hub *feed.Hub) *Maintenance {
	return &Maintenance{
		store:    store,
		selector: selector,
		notifier: notifier,
		hub:      hub,
		now:      time.Now,
	}
}

// Create stores a pending report for a known room.
func (m *Maintenance) Create(ctx context.Context, roomID uint, description string, priority models.Priority, taskID, reporterID *uint) (*models.MaintenanceReport, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrBadTrigger)
	}
	room, err := m.store.RoomByID(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}

	report := &models.MaintenanceReport{
		RoomID:      room.ID,
		TaskID:      taskID,
		ReporterID:  reporterID,
		Description: description,
		Priority:    priority,
		Status:      models.ReportPending,
	}
	if err := m.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	report.Room = *room
	m.hub.ReportUpdate(report.ID, room.ID, string(report.Status))
	return report, nil
}

// Announce sends the repair request to technicians, escalating to administrators when no
// technician exists. High priority reports also go to administrators in any case.
// An empty final audience yields ErrNoRecipients.
func (m *Maintenance) Announce(ctx context.Context, report *models.MaintenanceReport) (Dispatch, error) {
	audience, err := m.selector.SelectForRepair(ctx)
	if err != nil {
		return Dispatch{}, err
	}
	recipients := audience.ExternalIDs()
	target := string(audience.Role)

	if report.Priority == models.PriorityHigh && audience.Tier != TierEscalated {
		admins, err := m.selector.Administrators(ctx)
		if err != nil {
			return Dispatch{}, err
		}
		if !admins.Empty() {
			recipients = append(recipients, admins.ExternalIDs()...)
			if audience.Empty() {
				target = string(models.RoleAdmin)
			} else {
				target = string(audience.Role) + "+" + string(models.RoleAdmin)
			}
		}
	}
	if len(distinct(recipients)) == 0 {
		return Dispatch{Target: target}, ErrNoRecipients
	}

	sent, err := m.notifier.Multicast(ctx, recipients, Subject{
		Type:     models.NotifyRepairRequested,
		ReportID: &report.ID,
		RoomID:   &report.RoomID,
	}, RepairRequestedMessage(*report, report.Room))
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("report_id", report.ID).Warn("repair request delivery failed")
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"room_id":   report.RoomID,
		"priority":  report.Priority,
		"tier":      audience.Tier.String(),
		"sent_to":   sent,
	}).Info("repair request announced")
	return Dispatch{SentTo: sent, Target: target}, nil
}

// Accept assigns a pending report to the caller. Only one technician can win.
func (m *Maintenance) Accept(ctx context.Context, actor *models.StaffIdentity, reportID uint) (messaging.Message, error) {
	now := m.now()
	n, err := m.store.CompareAndSetReport(ctx, reportID, []models.ReportStatus{models.ReportPending}, nil, map[string]any{
		"status":      models.ReportInProgress,
		"assignee_id": actor.StaffID,
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("accept report %d: %w", reportID, err)
	}
	if n == 0 {
		if _, err := m.loadReport(ctx, reportID); err != nil {
			return messaging.Message{}, err
		}
		return messaging.Message{}, reject(ErrRaceLost, "This repair has already been taken.")
	}

	report, err := m.loadReport(ctx, reportID)
	if err != nil {
		return messaging.Message{}, err
	}
	m.hub.ReportUpdate(report.ID, report.RoomID, string(report.Status))
	utils.InfoLogger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"staff_id":  actor.StaffID,
		"at":        now.Format(time.RFC3339),
	}).Info("repair accepted")
	return RepairAcceptedMessage(*report, report.Room), nil
}

// Resolve finishes the caller's repair, sends the room back to cleaning and tells the
// administrators it is waiting to be opened.
func (m *Maintenance) Resolve(ctx context.Context, actor *models.StaffIdentity, reportID uint) (messaging.Message, error) {
	report, err := m.loadReport(ctx, reportID)
	if err != nil {
		return messaging.Message{}, err
	}

	now := m.now()
	err = m.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.CompareAndSetReport(ctx, reportID, []models.ReportStatus{models.ReportInProgress}, &actor.StaffID, map[string]any{
			"status":      models.ReportResolved,
			"resolved_at": now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return m.explainReportMiss(report, actor)
		}
		return tx.SetRoomStatus(ctx, report.RoomID, models.RoomCleaning)
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return messaging.Message{}, err
		}
		return messaging.Message{}, fmt.Errorf("resolve report %d: %w", reportID, err)
	}

	report.Status = models.ReportResolved
	report.ResolvedAt = &now
	report.Room.Status = models.RoomCleaning
	m.hub.ReportUpdate(report.ID, report.RoomID, string(report.Status))
	m.hub.RoomStatus(report.RoomID, string(models.RoomCleaning))

	m.notifyAdmins(ctx, Subject{
		Type:     models.NotifyRepairDone,
		ReportID: &report.ID,
		RoomID:   &report.RoomID,
	}, RepairDoneMessage(*report, report.Room, actor.Name()))

	return messaging.Text(fmt.Sprintf("Repair in room %s marked as resolved. The administrators have been notified.", report.Room.Label())), nil
}

// OpenRoom releases a repaired room. With a report it closes the report first; a bare room
// id releases the room directly.
func (m *Maintenance) OpenRoom(ctx context.Context, actor *models.StaffIdentity, reportID, roomID uint) (messaging.Message, error) {
	if actor.Staff.Role != models.RoleAdmin {
		return messaging.Message{}, reject(ErrForbidden, forbiddenMessage)
	}

	if reportID == 0 {
		room, err := m.store.RoomByID(ctx, roomID)
		if errors.Is(err, database.ErrNotFound) {
			return messaging.Message{}, reject(ErrNotFound, "This room no longer exists.")
		}
		if err != nil {
			return messaging.Message{}, err
		}
		if err := m.store.SetRoomStatus(ctx, room.ID, models.RoomAvailable); err != nil {
			return messaging.Message{}, fmt.Errorf("open room %d: %w", room.ID, err)
		}
		m.hub.RoomStatus(room.ID, string(models.RoomAvailable))
		return roomOpenedMessage(*room), nil
	}

	report, err := m.loadReport(ctx, reportID)
	if err != nil {
		return messaging.Message{}, err
	}
	err = m.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.CompareAndSetReport(ctx, reportID, []models.ReportStatus{models.ReportResolved}, nil, map[string]any{
			"status": models.ReportClosed,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return reject(ErrInvalidState, fmt.Sprintf("Room %s is not waiting to be opened.", report.Room.Label()))
		}
		return tx.SetRoomStatus(ctx, report.RoomID, models.RoomAvailable)
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return messaging.Message{}, err
		}
		return messaging.Message{}, fmt.Errorf("open room for report %d: %w", reportID, err)
	}

	m.hub.ReportUpdate(report.ID, report.RoomID, string(models.ReportClosed))
	m.hub.RoomStatus(report.RoomID, string(models.RoomAvailable))
	utils.InfoLogger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"room_id":   report.RoomID,
		"staff_id":  actor.StaffID,
	}).Info("room opened")
	return roomOpenedMessage(report.Room), nil
}

// NotifyResolved tells administrators about a repair completed outside the chat.
func (m *Maintenance) NotifyResolved(ctx context.Context, reportID uint) (Dispatch, error) {
	report, err := m.store.ReportByID(ctx, reportID)
	if errors.Is(err, database.ErrNotFound) {
		return Dispatch{}, fmt.Errorf("%w: report %d", ErrNotFound, reportID)
	}
	if err != nil {
		return Dispatch{}, err
	}
	technician := "maintenance"
	if report.Assignee != nil {
		technician = report.Assignee.Name
	}
	return m.sendToAdmins(ctx, Subject{
		Type:     models.NotifyRepairDone,
		ReportID: &report.ID,
		RoomID:   &report.RoomID,
	}, RepairDoneMessage(*report, report.Room, technician))
}

func (m *Maintenance) sendToAdmins(ctx context.Context, subject Subject, msg messaging.Message) (Dispatch, error) {
	admins, err := m.selector.Administrators(ctx)
	if err != nil {
		return Dispatch{}, err
	}
	if admins.Empty() {
		return Dispatch{Target: string(models.RoleAdmin)}, ErrNoRecipients
	}
	sent, err := m.notifier.Multicast(ctx, admins.ExternalIDs(), subject, msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("type", subject.Type).Warn("administrator notification failed")
	}
	return Dispatch{SentTo: sent, Target: string(models.RoleAdmin)}, nil
}

// notifyAdmins is the best-effort variant used after a chat-driven transition.
func (m *Maintenance) notifyAdmins(ctx context.Context, subject Subject, msg messaging.Message) {
	if _, err := m.sendToAdmins(ctx, subject, msg); err != nil {
		utils.ErrorLogger.WithError(err).WithField("type", subject.Type).Warn("no administrator notified")
	}
}

func (m *Maintenance) loadReport(ctx context.Context, id uint) (*models.MaintenanceReport, error) {
	report, err := m.store.ReportByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, reject(ErrNotFound, "This repair request no longer exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", id, err)
	}
	return report, nil
}

func (m *Maintenance) explainReportMiss(report *models.MaintenanceReport, actor *models.StaffIdentity) error {
	if report.AssigneeID == nil || *report.AssigneeID != actor.StaffID {
		return reject(ErrNotAssignee, "This repair is assigned to someone else.")
	}
	return reject(ErrInvalidState, "This repair is not in progress.")
}

func roomOpenedMessage(room models.Room) messaging.Message {
	return messaging.Text(fmt.Sprintf("Room %s is open for guests again.", room.Label()))
}
