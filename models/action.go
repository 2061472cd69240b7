package models

// Action is the closed set of commands a postback may carry.
type Action string

const (
	ActionUnknown       Action = ""
	ActionAcceptClean   Action = "accept_clean"
	ActionStartClean    Action = "start_clean"
	ActionCompleteClean Action = "complete_clean"
	ActionReportRepair  Action = "report_repair"
	ActionInspect       Action = "inspect"
	ActionAcceptRepair  Action = "accept_repair"
	ActionResolveRepair Action = "resolve_repair"
	ActionOpenRoom      Action = "open_room"
	ActionCheckIn       Action = "check_in"
	ActionCheckOut      Action = "check_out"
	ActionMyTasks       Action = "my_tasks"
)

// ParseAction returns ActionUnknown for anything outside the command set.
func ParseAction(s string) Action {
	switch a := Action(s); a {
	case ActionAcceptClean, ActionStartClean, ActionCompleteClean, ActionReportRepair,
		ActionInspect, ActionAcceptRepair, ActionResolveRepair, ActionOpenRoom,
		ActionCheckIn, ActionCheckOut, ActionMyTasks:
		return a
	}
	return ActionUnknown
}
