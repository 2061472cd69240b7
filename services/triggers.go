package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// Trigger types accepted from the hotel application.
const (
	TriggerCheckoutAlert  = "checkout_alert"
	TriggerRepairRequest  = "repair_request"
	TriggerRepairComplete = "repair_complete"
	TriggerCleanComplete  = "clean_complete"
	TriggerCustom         = "custom"
)

type TriggerRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TriggerResult is returned to the caller for every trigger, successful or not.
type TriggerResult struct {
	Success bool   `json:"success"`
	SentTo  int    `json:"sentTo,omitempty"`
	Error   string `json:"error,omitempty"`
	Target  string `json:"target,omitempty"`
	TaskID  uint   `json:"taskId,omitempty"`
	// ReportID is set when the trigger created a maintenance report.
	ReportID uint `json:"reportId,omitempty"`
}

type checkoutAlertData struct {
	RoomID       uint       `json:"room_id"`
	BookingID    *string    `json:"booking_id"`
	CheckoutTime *time.Time `json:"checkout_time"`
}

type repairRequestData struct {
	RoomID      uint   `json:"room_id"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	TaskID      *uint  `json:"task_id"`
	ReporterID  *uint  `json:"reporter_id"`
}

type repairCompleteData struct {
	ReportID uint `json:"report_id"`
}

type cleanCompleteData struct {
	TaskID uint `json:"task_id"`
}

type customData struct {
	Message   string `json:"message"`
	StaffID   uint   `json:"staff_id"`
	StaffName string `json:"staff_name"`
	Role      string `json:"role"`
}

// Triggers handles notifications originated by the hotel application rather than by a
// chat event.
type Triggers struct {
	store       *database.Store
	selector    *RecipientSelector
	notifier    *Notifier
	tasks       *RoomTasks
	maintenance *Maintenance
}

func NewTriggers(store *database.Store, selector *RecipientSelector, notifier *Notifier, tasks *RoomTasks, maintenance *Maintenance) *Triggers {
	return &Triggers{
		store:       store,
		selector:    selector,
		notifier:    notifier,
		tasks:       tasks,
		maintenance: maintenance,
	}
}

// Handle runs one trigger synchronously. The returned error classifies the failure
// (ErrBadTrigger, ErrNotFound, ErrNoRecipients or a storage error); the result always
// carries a caller-facing description.
func (t *Triggers) Handle(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	var (
		result TriggerResult
		err    error
	)
	switch req.Type {
	case TriggerCheckoutAlert:
		result, err = t.checkoutAlert(ctx, req.Data)
	case TriggerRepairRequest:
		result, err = t.repairRequest(ctx, req.Data)
	case TriggerRepairComplete:
		result, err = t.repairComplete(ctx, req.Data)
	case TriggerCleanComplete:
		result, err = t.cleanComplete(ctx, req.Data)
	case TriggerCustom:
		result, err = t.custom(ctx, req.Data)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrBadTrigger, req.Type)
	}

	if err != nil {
		result.Success = false
		result.Error = describeTriggerError(err, result.Target)
		utils.ErrorLogger.WithFields(logrus.Fields{
			"trigger": req.Type,
			"target":  result.Target,
		}).WithError(err).Warn("trigger failed")
		return result, err
	}
	result.Success = true
	utils.InfoLogger.WithFields(logrus.Fields{
		"trigger": req.Type,
		"target":  result.Target,
		"sent_to": result.SentTo,
	}).Info("trigger handled")
	return result, nil
}

func (t *Triggers) checkoutAlert(ctx context.Context, raw json.RawMessage) (TriggerResult, error) {
	var data checkoutAlertData
	if err := decodeTrigger(raw, &data); err != nil {
		return TriggerResult{}, err
	}
	if data.RoomID == 0 {
		return TriggerResult{}, fmt.Errorf("%w: room_id is required", ErrBadTrigger)
	}

	task, err := t.tasks.CreateFromCheckout(ctx, data.RoomID, data.BookingID, data.CheckoutTime)
	if err != nil {
		return TriggerResult{}, err
	}
	dispatch, err := t.tasks.Announce(ctx, task)
	return TriggerResult{SentTo: dispatch.SentTo, Target: dispatch.Target, TaskID: task.ID}, err
}

func (t *Triggers) repairRequest(ctx context.Context, raw json.RawMessage) (TriggerResult, error) {
	var data repairRequestData
	if err := decodeTrigger(raw, &data); err != nil {
		return TriggerResult{}, err
	}
	if data.RoomID == 0 {
		return TriggerResult{}, fmt.Errorf("%w: room_id is required", ErrBadTrigger)
	}

	report, err := t.maintenance.Create(ctx, data.RoomID, data.Description, models.ParsePriority(data.Priority), data.TaskID, data.ReporterID)
	if err != nil {
		return TriggerResult{}, err
	}
	dispatch, err := t.maintenance.Announce(ctx, report)
	return TriggerResult{SentTo: dispatch.SentTo, Target: dispatch.Target, ReportID: report.ID}, err
}

func (t *Triggers) repairComplete(ctx context.Context, raw json.RawMessage) (TriggerResult, error) {
	var data repairCompleteData
	if err := decodeTrigger(raw, &data); err != nil {
		return TriggerResult{}, err
	}
	if data.ReportID == 0 {
		return TriggerResult{}, fmt.Errorf("%w: report_id is required", ErrBadTrigger)
	}
	dispatch, err := t.maintenance.NotifyResolved(ctx, data.ReportID)
	return TriggerResult{SentTo: dispatch.SentTo, Target: dispatch.Target, ReportID: data.ReportID}, err
}

func (t *Triggers) cleanComplete(ctx context.Context, raw json.RawMessage) (TriggerResult, error) {
	var data cleanCompleteData
	if err := decodeTrigger(raw, &data); err != nil {
		return TriggerResult{}, err
	}
	if data.TaskID == 0 {
		return TriggerResult{}, fmt.Errorf("%w: task_id is required", ErrBadTrigger)
	}
	dispatch, err := t.tasks.NotifyCleaningDone(ctx, data.TaskID)
	return TriggerResult{SentTo: dispatch.SentTo, Target: dispatch.Target, TaskID: data.TaskID}, err
}

// custom sends free text to one staff member (by id or name) or to every active staff
// member of a role.
func (t *Triggers) custom(ctx context.Context, raw json.RawMessage) (TriggerResult, error) {
	var data customData
	if err := decodeTrigger(raw, &data); err != nil {
		return TriggerResult{}, err
	}
	if strings.TrimSpace(data.Message) == "" {
		return TriggerResult{}, fmt.Errorf("%w: message is required", ErrBadTrigger)
	}
	subject := Subject{Type: models.NotifyCustom}
	msg := CustomMessage(data.Message)

	if data.StaffID != 0 || data.StaffName != "" {
		staff, err := t.findStaff(ctx, data.StaffID, data.StaffName)
		if err != nil {
			return TriggerResult{}, err
		}
		target := "staff:" + staff.Name
		identities, err := t.store.IdentitiesByStaffID(ctx, staff.ID)
		if err != nil {
			return TriggerResult{Target: target}, err
		}
		if len(identities) == 0 {
			return TriggerResult{Target: target}, ErrNoRecipients
		}
		if len(identities) == 1 {
			if err := t.notifier.Push(ctx, identities[0].ExternalID, subject, msg); err != nil {
				utils.ErrorLogger.WithError(err).WithField("staff_id", staff.ID).Warn("custom message delivery failed")
			}
			return TriggerResult{SentTo: 1, Target: target}, nil
		}
		ids := make([]string, 0, len(identities))
		for _, identity := range identities {
			ids = append(ids, identity.ExternalID)
		}
		sent, err := t.notifier.Multicast(ctx, ids, subject, msg)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("staff_id", staff.ID).Warn("custom message delivery failed")
		}
		return TriggerResult{SentTo: sent, Target: target}, nil
	}

	role, ok := models.ParseRole(data.Role)
	if !ok {
		return TriggerResult{}, fmt.Errorf("%w: staff_id, staff_name or a valid role is required", ErrBadTrigger)
	}
	target := "role:" + string(role)
	identities, err := t.store.IdentitiesByRole(ctx, role, false)
	if err != nil {
		return TriggerResult{Target: target}, err
	}
	audience := Audience{Role: role, Tier: TierActive, Recipients: identities}
	if audience.Empty() {
		return TriggerResult{Target: target}, ErrNoRecipients
	}
	sent, err := t.notifier.Multicast(ctx, audience.ExternalIDs(), subject, msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("role", role).Warn("custom message delivery failed")
	}
	return TriggerResult{SentTo: sent, Target: target}, nil
}

func (t *Triggers) findStaff(ctx context.Context, id uint, name string) (*models.Staff, error) {
	var (
		staff *models.Staff
		err   error
	)
	if id != 0 {
		staff, err = t.store.StaffByID(ctx, id)
	} else {
		staff, err = t.store.StaffByName(ctx, strings.TrimSpace(name))
	}
	if errors.Is(err, database.ErrNotFound) || (err == nil && !staff.Active) {
		return nil, fmt.Errorf("%w: staff member", ErrNotFound)
	}
	return staff, err
}

func decodeTrigger(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: data is required", ErrBadTrigger)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadTrigger, err)
	}
	return nil
}

func describeTriggerError(err error, target string) string {
	switch {
	case errors.Is(err, ErrNoRecipients):
		switch {
		case target == string(models.RoleHousekeeper):
			return "no housekeepers available"
		case strings.HasPrefix(target, string(models.RoleTechnician)):
			return "no technicians or administrators available"
		case target == string(models.RoleAdmin):
			return "no administrators available"
		}
		return "no recipients available"
	case errors.Is(err, ErrBadTrigger), errors.Is(err, ErrNotFound):
		return err.Error()
	}
	return "internal error"
}
