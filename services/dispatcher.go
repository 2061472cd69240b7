package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// Dispatcher routes one webhook event to the registration flow, the conversation tracker
// and the state machines, then replies with the outcome.
type Dispatcher struct {
	registration *Registration
	tracker      *ConversationTracker
	tasks        *RoomTasks
	maintenance  *Maintenance
	attendance   *Attendance
	notifier     *Notifier
}

func NewDispatcher(registration *Registration, tracker *ConversationTracker, tasks *RoomTasks, maintenance *Maintenance, attendance *Attendance, notifier *Notifier) *Dispatcher {
	return &Dispatcher{
		registration: registration,
		tracker:      tracker,
		tasks:        tasks,
		maintenance:  maintenance,
		attendance:   attendance,
		notifier:     notifier,
	}
}

// Dispatch handles a single event. Rejections are answered and swallowed; any other error
// is answered with a generic failure and returned for logging.
func (d *Dispatcher) Dispatch(ctx context.Context, ev messaging.Event) error {
	var (
		msg messaging.Message
		err error
	)
	switch ev.Type {
	case messaging.EventTypeFollow:
		msg, err = d.handleFollow(ctx, ev)
	case messaging.EventTypeMessage:
		if ev.Message == nil {
			return nil
		}
		switch ev.Message.Type {
		case messaging.MessageTypeText:
			msg, err = d.handleText(ctx, ev)
		case messaging.MessageTypeImage:
			msg, err = d.handleImage(ctx, ev)
		default:
			utils.InfoLogger.WithField("message_type", ev.Message.Type).Debug("ignoring message type")
			return nil
		}
	case messaging.EventTypePostback:
		if ev.Postback == nil {
			return nil
		}
		msg, err = d.handlePostback(ctx, ev)
	default:
		utils.InfoLogger.WithField("event_type", ev.Type).Debug("ignoring event type")
		return nil
	}

	if err != nil {
		if rejection, ok := AsRejection(err); ok {
			utils.InfoLogger.WithFields(logrus.Fields{
				"event_type": ev.Type,
				"user_id":    ev.Source.UserID,
				"reason":     rejection.Err.Error(),
			}).Info("event rejected")
			d.notifier.Reply(ctx, ev.ReplyToken, messaging.Text(rejection.Reply))
			return nil
		}
		d.notifier.Reply(ctx, ev.ReplyToken, messaging.Text(genericFailure))
		return err
	}
	if msg.Type != "" {
		d.notifier.Reply(ctx, ev.ReplyToken, msg)
	}
	return nil
}

func (d *Dispatcher) handleFollow(ctx context.Context, ev messaging.Event) (messaging.Message, error) {
	identity, err := d.resolve(ctx, ev.Source.UserID)
	if err != nil {
		return messaging.Message{}, err
	}
	if identity == nil {
		return messaging.Text(welcomeMessage), nil
	}
	d.registration.BindMenu(ctx, identity)
	return messaging.Text(fmt.Sprintf("Welcome back, %s!", identity.Name())), nil
}

// handleText matches in a fixed order: pending repair description, registration, then the
// staff text commands.
func (d *Dispatcher) handleText(ctx context.Context, ev messaging.Event) (messaging.Message, error) {
	text := ev.Message.Text
	identity, err := d.resolve(ctx, ev.Source.UserID)
	if err != nil {
		return messaging.Message{}, err
	}

	if identity != nil {
		state, err := d.tracker.Current(ctx, identity.StaffID)
		if err != nil {
			return messaging.Message{}, err
		}
		if awaiting, ok := state.(AwaitingRepairDetails); ok {
			return d.tasks.SubmitRepairDetails(ctx, identity, awaiting, text)
		}
	}

	if code, ok := MatchRegistration(text); ok {
		registered, err := d.registration.Register(ctx, ev.Source.UserID, code)
		if err != nil {
			return messaging.Message{}, err
		}
		return RegistrationSuccessMessage(registered.Name(), registered.Staff.Role), nil
	}

	if identity == nil {
		return messaging.Message{}, reject(ErrNotRegistered, registerPrompt)
	}

	if details, ok := MatchReportRepair(text); ok {
		if !identity.Staff.Role.Can(models.ActionReportRepair) {
			return messaging.Message{}, reject(ErrForbidden, forbiddenMessage)
		}
		return d.tasks.ReportRepair(ctx, identity, details)
	}
	if isTaskListCommand(text) {
		return d.tasks.ListActive(ctx, identity)
	}
	if isHelpCommand(text) {
		return messaging.Text(helpMessage), nil
	}
	return messaging.Message{}, nil
}

func (d *Dispatcher) handleImage(ctx context.Context, ev messaging.Event) (messaging.Message, error) {
	identity, err := d.resolve(ctx, ev.Source.UserID)
	if err != nil || identity == nil {
		return messaging.Message{}, err
	}
	state, err := d.tracker.Current(ctx, identity.StaffID)
	if err != nil {
		return messaging.Message{}, err
	}
	awaiting, ok := state.(AwaitingRepairDetails)
	if !ok {
		return messaging.Message{}, nil
	}
	return d.tasks.AttachPhoto(ctx, identity, awaiting, ev.Message.ID)
}

func (d *Dispatcher) handlePostback(ctx context.Context, ev messaging.Event) (messaging.Message, error) {
	cmd := ParseCommand(ev.Postback.Data)
	if cmd.Action == models.ActionUnknown {
		utils.InfoLogger.WithField("data", cmd.Raw).Warn("ignoring unknown postback action")
		return messaging.Message{}, nil
	}

	identity, err := d.resolve(ctx, ev.Source.UserID)
	if err != nil {
		return messaging.Message{}, err
	}
	if identity == nil {
		return messaging.Message{}, reject(ErrNotRegistered, registerPrompt)
	}
	if !identity.Staff.Role.Can(cmd.Action) {
		return messaging.Message{}, reject(ErrForbidden, forbiddenMessage)
	}

	switch cmd.Action {
	case models.ActionAcceptClean:
		return d.tasks.Accept(ctx, identity, cmd.TaskID)
	case models.ActionStartClean:
		return d.tasks.Start(ctx, identity, cmd.TaskID)
	case models.ActionCompleteClean:
		return d.tasks.Complete(ctx, identity, cmd.TaskID)
	case models.ActionReportRepair:
		return d.tasks.RequestRepairDetails(ctx, identity, cmd.TaskID)
	case models.ActionInspect:
		return d.tasks.Inspect(ctx, identity, cmd.TaskID)
	case models.ActionAcceptRepair:
		return d.maintenance.Accept(ctx, identity, cmd.ReportID)
	case models.ActionResolveRepair:
		return d.maintenance.Resolve(ctx, identity, cmd.ReportID)
	case models.ActionOpenRoom:
		return d.maintenance.OpenRoom(ctx, identity, cmd.ReportID, cmd.RoomID)
	case models.ActionCheckIn:
		return d.attendance.Record(ctx, identity, models.AttendanceCheckIn)
	case models.ActionCheckOut:
		return d.attendance.Record(ctx, identity, models.AttendanceCheckOut)
	case models.ActionMyTasks:
		return d.tasks.ListActive(ctx, identity)
	}
	return messaging.Message{}, fmt.Errorf("unhandled action %q", cmd.Action)
}

// resolve returns nil without error for callers that have not registered.
func (d *Dispatcher) resolve(ctx context.Context, externalID string) (*models.StaffIdentity, error) {
	identity, err := d.registration.Resolve(ctx, externalID)
	if errors.Is(err, ErrNotRegistered) {
		return nil, nil
	}
	return identity, err
}
