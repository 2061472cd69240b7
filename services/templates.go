package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
)

const clock = "15:04"

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(clock)
}

// TaskAssignedMessage announces a new cleaning task to housekeepers.
func TaskAssignedMessage(task models.CleaningTask, room models.Room) messaging.Message {
	text := fmt.Sprintf("Checkout %s. Tap to take this room.", formatTime(task.CheckoutTime))
	return messaging.Buttons(
		fmt.Sprintf("New cleaning task: room %s", room.Label()),
		fmt.Sprintf("🧹 Clean room %s", room.Label()),
		text,
		messaging.PostbackAction("Accept", PostbackData(models.ActionAcceptClean, "task_id", task.ID), "Accept room "+room.Label()),
	)
}

// TaskAcceptedMessage is the reply to the housekeeper who won the task.
func TaskAcceptedMessage(task models.CleaningTask, room models.Room) messaging.Message {
	return messaging.Buttons(
		fmt.Sprintf("You accepted room %s", room.Label()),
		fmt.Sprintf("Room %s is yours", room.Label()),
		fmt.Sprintf("Accepted at %s. Report back when done.", formatTime(task.AcceptedAt)),
		messaging.PostbackAction("Start", PostbackData(models.ActionStartClean, "task_id", task.ID), "Start room "+room.Label()),
		messaging.PostbackAction("Complete", PostbackData(models.ActionCompleteClean, "task_id", task.ID), "Room "+room.Label()+" done"),
		messaging.PostbackAction("Report repair", PostbackData(models.ActionReportRepair, "task_id", task.ID), "Repair needed in "+room.Label()),
	)
}

// TaskStartedMessage is the reply after a housekeeper starts cleaning.
func TaskStartedMessage(task models.CleaningTask, room models.Room) messaging.Message {
	return messaging.Buttons(
		fmt.Sprintf("Cleaning room %s", room.Label()),
		fmt.Sprintf("Cleaning room %s", room.Label()),
		"Tap Complete when the room is ready.",
		messaging.PostbackAction("Complete", PostbackData(models.ActionCompleteClean, "task_id", task.ID), "Room "+room.Label()+" done"),
		messaging.PostbackAction("Report repair", PostbackData(models.ActionReportRepair, "task_id", task.ID), "Repair needed in "+room.Label()),
	)
}

// CleaningDoneMessage asks administrators to inspect a cleaned room.
func CleaningDoneMessage(task models.CleaningTask, room models.Room, staffName string) messaging.Message {
	return messaging.Buttons(
		fmt.Sprintf("Room %s cleaned by %s, awaiting inspection", room.Label(), staffName),
		fmt.Sprintf("✅ Room %s cleaned", room.Label()),
		fmt.Sprintf("By %s at %s. Awaiting inspection.", staffName, formatTime(task.CompletedAt)),
		messaging.PostbackAction("Inspect", PostbackData(models.ActionInspect, "task_id", task.ID), "Inspected room "+room.Label()),
	)
}

// RepairRequestedMessage announces a maintenance report to technicians.
func RepairRequestedMessage(report models.MaintenanceReport, room models.Room) messaging.Message {
	title := fmt.Sprintf("🔧 Repair room %s", room.Label())
	if report.Priority == models.PriorityHigh {
		title = fmt.Sprintf("🚨 URGENT repair room %s", room.Label())
	}
	return messaging.Buttons(
		fmt.Sprintf("Repair requested for room %s: %s", room.Label(), report.Description),
		title,
		report.Description,
		messaging.PostbackAction("Accept", PostbackData(models.ActionAcceptRepair, "report_id", report.ID), "Taking repair in "+room.Label()),
	)
}

// RepairAcceptedMessage is the reply to the technician who took the report.
func RepairAcceptedMessage(report models.MaintenanceReport, room models.Room) messaging.Message {
	return messaging.Buttons(
		fmt.Sprintf("You accepted the repair in room %s", room.Label()),
		fmt.Sprintf("Repair room %s is yours", room.Label()),
		report.Description,
		messaging.PostbackAction("Resolved", PostbackData(models.ActionResolveRepair, "report_id", report.ID), "Repair in "+room.Label()+" done"),
	)
}

// RepairDoneMessage asks administrators to release a repaired room.
func RepairDoneMessage(report models.MaintenanceReport, room models.Room, technician string) messaging.Message {
	return messaging.Buttons(
		fmt.Sprintf("Repair in room %s finished by %s, awaiting release", room.Label(), technician),
		fmt.Sprintf("🛠 Room %s repaired", room.Label()),
		fmt.Sprintf("By %s at %s. Open the room?", technician, formatTime(report.ResolvedAt)),
		messaging.PostbackAction("Open room", PostbackData(models.ActionOpenRoom, "report_id", report.ID), "Open room "+room.Label()),
	)
}

func RegistrationSuccessMessage(name string, role models.Role) messaging.Message {
	return messaging.Text(fmt.Sprintf("Registration complete. Welcome %s! You are registered as %s.", name, role.Label()))
}

func AttendanceMessage(name, kind string, at time.Time) messaging.Message {
	verb := "checked in"
	if kind == models.AttendanceCheckOut {
		verb = "checked out"
	}
	return messaging.Text(fmt.Sprintf("%s %s at %s.", name, verb, at.Format(clock)))
}

// TaskListMessage lists the caller's open work.
func TaskListMessage(tasks []models.CleaningTask, reports []models.MaintenanceReport) messaging.Message {
	if len(tasks) == 0 && len(reports) == 0 {
		return messaging.Text("You have no open tasks.")
	}
	var b strings.Builder
	b.WriteString("Your open tasks:")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n🧹 Room %s (%s)", t.Room.Label(), t.Status)
	}
	for _, r := range reports {
		fmt.Fprintf(&b, "\n🔧 Room %s: %s (%s)", r.Room.Label(), r.Description, r.Status)
	}
	return messaging.Text(b.String())
}

const (
	registerPrompt   = "Please register first: send \"register <CODE>\" with the 6-character code from your manager."
	welcomeMessage   = "Welcome to the housekeeping bot! " + registerPrompt
	helpMessage      = "Commands:\n• register <CODE>\n• report-repair <details>\n• tasks\nUse the menu buttons for everything else."
	genericFailure   = "Sorry, something went wrong. Please try again."
	detailsPrompt    = "Please describe the problem in room %s. Your next message will be sent to the technicians."
	forbiddenMessage = "This action is not available for your role."
)

// CustomMessage is the generic free text template.
func CustomMessage(text string) messaging.Message {
	return messaging.Text(text)
}
