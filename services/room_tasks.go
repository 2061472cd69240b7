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

// RoomTasks drives the cleaning lifecycle:
//
//	pending -> accepted -> in_progress -> completed -> inspected
//	accepted|in_progress -> pending_repair_details -> needs_repair
//	accepted|in_progress -> needs_repair
//
// Every status change is a compare-and-set at the store; a guard miss becomes a Rejection.
type RoomTasks struct {
	store       *database.Store
	selector    *RecipientSelector
	notifier    *Notifier
	tracker     *ConversationTracker
	maintenance *Maintenance
	hub         *feed.Hub
	now         func() time.Time
}

func NewRoomTasks(store *database.Store, selector *RecipientSelector, notifier *Notifier, tracker *ConversationTracker, maintenance *Maintenance, hub *feed.Hub) *RoomTasks {
	return &RoomTasks{
		store:       store,
		selector:    selector,
		notifier:    notifier,
		tracker:     tracker,
		maintenance: maintenance,
		hub:         hub,
		now:         time.Now,
	}
}

// CreateFromCheckout opens a pending task for a room that was just checked out.
func (rt *RoomTasks) CreateFromCheckout(ctx context.Context, roomID uint, bookingID *string, checkout *time.Time) (*models.CleaningTask, error) {
	room, err := rt.store.RoomByID(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	if checkout == nil {
		now := rt.now()
		checkout = &now
	}

	task := &models.CleaningTask{
		RoomID:       room.ID,
		BookingID:    bookingID,
		Status:       models.TaskPending,
		CheckoutTime: checkout,
	}
	if err := rt.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	task.Room = *room
	rt.hub.TaskUpdate(task.ID, room.ID, string(task.Status))
	return task, nil
}

// Announce offers a pending task to housekeepers. No housekeeper at all is ErrNoRecipients.
func (rt *RoomTasks) Announce(ctx context.Context, task *models.CleaningTask) (Dispatch, error) {
	audience, err := rt.selector.Select(ctx, models.RoleHousekeeper)
	if err != nil {
		return Dispatch{}, err
	}
	target := string(models.RoleHousekeeper)
	if audience.Empty() {
		return Dispatch{Target: target}, ErrNoRecipients
	}

	sent, err := rt.notifier.Multicast(ctx, audience.ExternalIDs(), Subject{
		Type:   models.NotifyTaskAssigned,
		TaskID: &task.ID,
		RoomID: &task.RoomID,
	}, TaskAssignedMessage(*task, task.Room))
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("task_id", task.ID).Warn("task announcement delivery failed")
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"room_id": task.RoomID,
		"tier":    audience.Tier.String(),
		"sent_to": sent,
	}).Info("cleaning task announced")
	return Dispatch{SentTo: sent, Target: target}, nil
}

// Accept claims a pending task for the caller. When two housekeepers race, the store lets
// exactly one update through and the other is told the task is taken.
func (rt *RoomTasks) Accept(ctx context.Context, actor *models.StaffIdentity, taskID uint) (messaging.Message, error) {
	now := rt.now()
	n, err := rt.store.CompareAndSetTask(ctx, taskID, []models.TaskStatus{models.TaskPending}, nil, map[string]any{
		"status":      models.TaskAccepted,
		"assignee_id": actor.StaffID,
		"accepted_at": now,
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("accept task %d: %w", taskID, err)
	}
	if n == 0 {
		if _, err := rt.loadTask(ctx, taskID); err != nil {
			return messaging.Message{}, err
		}
		return messaging.Message{}, reject(ErrRaceLost, "This task has already been taken.")
	}

	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}
	rt.hub.TaskUpdate(task.ID, task.RoomID, string(task.Status))
	utils.InfoLogger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"staff_id": actor.StaffID,
	}).Info("cleaning task accepted")
	return TaskAcceptedMessage(*task, task.Room), nil
}

// Start marks the caller's accepted task as being cleaned.
func (rt *RoomTasks) Start(ctx context.Context, actor *models.StaffIdentity, taskID uint) (messaging.Message, error) {
	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}
	n, err := rt.store.CompareAndSetTask(ctx, taskID, []models.TaskStatus{models.TaskAccepted}, &actor.StaffID, map[string]any{
		"status": models.TaskInProgress,
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("start task %d: %w", taskID, err)
	}
	if n == 0 {
		return messaging.Message{}, explainTaskMiss(task, actor, "This task cannot be started any more.")
	}

	task.Status = models.TaskInProgress
	rt.hub.TaskUpdate(task.ID, task.RoomID, string(task.Status))
	return TaskStartedMessage(*task, task.Room), nil
}

// Complete finishes the caller's task, puts the room into cleaning (awaiting inspection)
// and asks the administrators to inspect it.
func (rt *RoomTasks) Complete(ctx context.Context, actor *models.StaffIdentity, taskID uint) (messaging.Message, error) {
	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}

	now := rt.now()
	err = rt.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.CompareAndSetTask(ctx, taskID, models.ActiveTaskStatuses, &actor.StaffID, map[string]any{
			"status":       models.TaskCompleted,
			"completed_at": now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return explainTaskMiss(task, actor, "This task is not in progress.")
		}
		return tx.SetRoomStatus(ctx, task.RoomID, models.RoomCleaning)
	})
	if err != nil {
		return messaging.Message{}, passRejection(err, "complete task %d", taskID)
	}

	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	rt.hub.TaskUpdate(task.ID, task.RoomID, string(task.Status))
	rt.hub.RoomStatus(task.RoomID, string(models.RoomCleaning))

	if _, err := rt.notifyCleaningDone(ctx, task, actor.Name()); err != nil {
		utils.ErrorLogger.WithError(err).WithField("task_id", task.ID).Warn("no administrator notified")
	}
	return messaging.Text(fmt.Sprintf("Room %s marked as cleaned. An administrator will inspect it.", task.Room.Label())), nil
}

// Inspect approves a completed task and releases the room. Administrators only.
func (rt *RoomTasks) Inspect(ctx context.Context, actor *models.StaffIdentity, taskID uint) (messaging.Message, error) {
	if actor.Staff.Role != models.RoleAdmin {
		return messaging.Message{}, reject(ErrForbidden, forbiddenMessage)
	}
	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}

	now := rt.now()
	err = rt.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.CompareAndSetTask(ctx, taskID, []models.TaskStatus{models.TaskCompleted}, nil, map[string]any{
			"status":       models.TaskInspected,
			"inspected_at": now,
			"inspector_id": actor.StaffID,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return reject(ErrInvalidState, fmt.Sprintf("Room %s is not waiting for inspection.", task.Room.Label()))
		}
		return tx.SetRoomStatus(ctx, task.RoomID, models.RoomAvailable)
	})
	if err != nil {
		return messaging.Message{}, passRejection(err, "inspect task %d", taskID)
	}

	rt.hub.TaskUpdate(task.ID, task.RoomID, string(models.TaskInspected))
	rt.hub.RoomStatus(task.RoomID, string(models.RoomAvailable))
	utils.InfoLogger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"room_id":  task.RoomID,
		"staff_id": actor.StaffID,
	}).Info("room inspected and released")
	return messaging.Text(fmt.Sprintf("Room %s inspected and available again.", task.Room.Label())), nil
}

// RequestRepairDetails moves the caller's task to pending_repair_details so the next text
// message is taken as the repair description.
func (rt *RoomTasks) RequestRepairDetails(ctx context.Context, actor *models.StaffIdentity, taskID uint) (messaging.Message, error) {
	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}

	state, err := rt.tracker.Current(ctx, actor.StaffID)
	if err != nil {
		return messaging.Message{}, err
	}
	if awaiting, ok := state.(AwaitingRepairDetails); ok {
		if awaiting.TaskID == task.ID {
			return messaging.Text(fmt.Sprintf(detailsPrompt, task.Room.Label())), nil
		}
		return messaging.Message{}, reject(ErrInvalidState,
			fmt.Sprintf("Please finish describing the problem in room %s first.", awaiting.Room.Label()))
	}

	n, err := rt.store.CompareAndSetTask(ctx, taskID, models.ActiveTaskStatuses, &actor.StaffID, map[string]any{
		"status": models.TaskPendingRepairDetails,
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("request repair details for task %d: %w", taskID, err)
	}
	if n == 0 {
		return messaging.Message{}, explainTaskMiss(task, actor, "A repair can only be reported on a task you are working on.")
	}

	rt.hub.TaskUpdate(task.ID, task.RoomID, string(models.TaskPendingRepairDetails))
	return messaging.Text(fmt.Sprintf(detailsPrompt, task.Room.Label())), nil
}

// SubmitRepairDetails consumes the awaited description: the task moves to needs_repair and
// a report is created in the same transaction, then technicians are notified.
func (rt *RoomTasks) SubmitRepairDetails(ctx context.Context, actor *models.StaffIdentity, state AwaitingRepairDetails, details string) (messaging.Message, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return messaging.Text(fmt.Sprintf(detailsPrompt, state.Room.Label())), nil
	}
	return rt.fileRepair(ctx, actor, state.TaskID, []models.TaskStatus{models.TaskPendingRepairDetails}, details)
}

// ReportRepair files a repair straight from "report-repair <details>" against the caller's
// current task.
func (rt *RoomTasks) ReportRepair(ctx context.Context, actor *models.StaffIdentity, details string) (messaging.Message, error) {
	tasks, err := rt.store.TasksByAssignee(ctx, actor.StaffID, models.ActiveTaskStatuses...)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("load active tasks: %w", err)
	}
	if len(tasks) == 0 {
		return messaging.Message{}, reject(ErrNoActiveTask, "You have no accepted task to report a repair for.")
	}
	return rt.fileRepair(ctx, actor, tasks[0].ID, models.ActiveTaskStatuses, details)
}

func (rt *RoomTasks) fileRepair(ctx context.Context, actor *models.StaffIdentity, taskID uint, from []models.TaskStatus, details string) (messaging.Message, error) {
	task, err := rt.loadTask(ctx, taskID)
	if err != nil {
		return messaging.Message{}, err
	}

	report := &models.MaintenanceReport{
		RoomID:      task.RoomID,
		TaskID:      &task.ID,
		ReporterID:  &actor.StaffID,
		Description: details,
		Priority:    models.PriorityNormal,
		Status:      models.ReportPending,
	}
	err = rt.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.CompareAndSetTask(ctx, task.ID, from, &actor.StaffID, map[string]any{
			"status": models.TaskNeedsRepair,
			"notes":  appendNote(task.Notes, details),
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return explainTaskMiss(task, actor, "This task is no longer waiting for a repair description.")
		}
		return tx.CreateReport(ctx, report)
	})
	if err != nil {
		return messaging.Message{}, passRejection(err, "file repair for task %d", task.ID)
	}
	report.Room = task.Room
	rt.hub.TaskUpdate(task.ID, task.RoomID, string(models.TaskNeedsRepair))
	rt.hub.ReportUpdate(report.ID, report.RoomID, string(report.Status))

	dispatch, err := rt.maintenance.Announce(ctx, report)
	if errors.Is(err, ErrNoRecipients) {
		return messaging.Text(fmt.Sprintf("Repair for room %s recorded, but no technician or administrator is available right now.", task.Room.Label())), nil
	}
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("report_id", report.ID).Warn("repair announcement failed")
	}
	return messaging.Text(fmt.Sprintf("Repair for room %s reported. %d staff notified.", task.Room.Label(), dispatch.SentTo)), nil
}

// AttachPhoto notes an image sent while a repair description is awaited.
func (rt *RoomTasks) AttachPhoto(ctx context.Context, actor *models.StaffIdentity, state AwaitingRepairDetails, messageID string) (messaging.Message, error) {
	task, err := rt.loadTask(ctx, state.TaskID)
	if err != nil {
		return messaging.Message{}, err
	}
	n, err := rt.store.CompareAndSetTask(ctx, task.ID, []models.TaskStatus{models.TaskPendingRepairDetails}, &actor.StaffID, map[string]any{
		"notes": appendNote(task.Notes, "photo:"+messageID),
	})
	if err != nil {
		return messaging.Message{}, fmt.Errorf("attach photo to task %d: %w", task.ID, err)
	}
	if n == 0 {
		return messaging.Message{}, reject(ErrInvalidState, "This task is no longer waiting for a repair description.")
	}
	return messaging.Text("Photo received. Please also describe the problem in a text message."), nil
}

// ListActive returns the caller's open tasks and repairs.
func (rt *RoomTasks) ListActive(ctx context.Context, actor *models.StaffIdentity) (messaging.Message, error) {
	tasks, err := rt.store.TasksByAssignee(ctx, actor.StaffID,
		models.TaskAccepted, models.TaskInProgress, models.TaskPendingRepairDetails)
	if err != nil {
		return messaging.Message{}, err
	}
	reports, err := rt.store.ReportsByAssignee(ctx, actor.StaffID, models.ReportInProgress)
	if err != nil {
		return messaging.Message{}, err
	}
	return TaskListMessage(tasks, reports), nil
}

// NotifyCleaningDone tells administrators about a task completed outside the chat.
func (rt *RoomTasks) NotifyCleaningDone(ctx context.Context, taskID uint) (Dispatch, error) {
	task, err := rt.store.TaskByID(ctx, taskID)
	if errors.Is(err, database.ErrNotFound) {
		return Dispatch{}, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
	}
	if err != nil {
		return Dispatch{}, err
	}
	name := "housekeeping"
	if task.Assignee != nil {
		name = task.Assignee.Name
	}
	return rt.notifyCleaningDone(ctx, task, name)
}

func (rt *RoomTasks) notifyCleaningDone(ctx context.Context, task *models.CleaningTask, staffName string) (Dispatch, error) {
	return rt.maintenance.sendToAdmins(ctx, Subject{
		Type:   models.NotifyCleaningDone,
		TaskID: &task.ID,
		RoomID: &task.RoomID,
	}, CleaningDoneMessage(*task, task.Room, staffName))
}

func (rt *RoomTasks) loadTask(ctx context.Context, id uint) (*models.CleaningTask, error) {
	task, err := rt.store.TaskByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, reject(ErrNotFound, "This task no longer exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	return task, nil
}

// explainTaskMiss turns a zero-row update on an owned task into the matching rejection.
func explainTaskMiss(task *models.CleaningTask, actor *models.StaffIdentity, stateReply string) error {
	if task.AssigneeID == nil || *task.AssigneeID != actor.StaffID {
		return reject(ErrNotAssignee, "This task is assigned to someone else.")
	}
	return reject(ErrInvalidState, stateReply)
}

// passRejection returns rejections as they are and wraps anything else.
func passRejection(err error, format string, args ...any) error {
	if _, ok := AsRejection(err); ok {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
