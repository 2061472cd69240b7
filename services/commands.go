package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yeremiapane/roomturn/models"
)

// Command is a parsed postback. Unknown or malformed input yields ActionUnknown.
type Command struct {
	Action   models.Action
	TaskID   uint
	ReportID uint
	RoomID   uint
	Raw      string
}

// ParseCommand decodes a query-string encoded postback payload.
func ParseCommand(data string) Command {
	cmd := Command{Raw: data}
	values, err := url.ParseQuery(data)
	if err != nil {
		return cmd
	}
	cmd.Action = models.ParseAction(values.Get("action"))
	cmd.TaskID = parseID(values.Get("task_id"))
	cmd.ReportID = parseID(values.Get("report_id"))
	cmd.RoomID = parseID(values.Get("room_id"))
	return cmd
}

// PostbackData encodes an action and optional entity id into postback data.
func PostbackData(action models.Action, key string, id uint) string {
	v := url.Values{}
	v.Set("action", string(action))
	if key != "" {
		v.Set(key, strconv.FormatUint(uint64(id), 10))
	}
	return v.Encode()
}

func parseID(s string) uint {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

var (
	registerPattern     = regexp.MustCompile(`(?i)^\s*register\s+([a-z0-9]{6})\s*$`)
	reportRepairPattern = regexp.MustCompile(`(?is)^\s*report-repair\s+(.*\S)\s*$`)
)

// MatchRegistration extracts the code from "register ABC123", upper-cased.
func MatchRegistration(text string) (string, bool) {
	m := registerPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// MatchReportRepair extracts the details from "report-repair <details>".
func MatchReportRepair(text string) (string, bool) {
	m := reportRepairPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func isTaskListCommand(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "tasks", "my tasks", "my-tasks":
		return true
	}
	return false
}

func isHelpCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "help")
}
