package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yeremiapane/roomturn/models"
)

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("action=accept_clean&task_id=42")
	assert.Equal(t, models.ActionAcceptClean, cmd.Action)
	assert.Equal(t, uint(42), cmd.TaskID)

	cmd = ParseCommand("action=open_room&report_id=3&room_id=12")
	assert.Equal(t, models.ActionOpenRoom, cmd.Action)
	assert.Equal(t, uint(3), cmd.ReportID)
	assert.Equal(t, uint(12), cmd.RoomID)

	assert.Equal(t, models.ActionUnknown, ParseCommand("action=dance").Action)
	assert.Equal(t, models.ActionUnknown, ParseCommand("task_id=1").Action)
	assert.Equal(t, models.ActionUnknown, ParseCommand("%zz").Action)
	assert.Zero(t, ParseCommand("action=inspect&task_id=-1").TaskID)
}

func TestPostbackDataRoundTrip(t *testing.T) {
	data := PostbackData(models.ActionResolveRepair, "report_id", 9)
	assert.Equal(t, "action=resolve_repair&report_id=9", data)
	cmd := ParseCommand(data)
	assert.Equal(t, models.ActionResolveRepair, cmd.Action)
	assert.Equal(t, uint(9), cmd.ReportID)

	assert.Equal(t, "action=check_in", PostbackData(models.ActionCheckIn, "", 0))
}

func TestMatchRegistration(t *testing.T) {
	cases := map[string]string{
		"register ABC123":     "ABC123",
		"  REGISTER abc123  ": "ABC123",
		"Register x9y8z7":     "X9Y8Z7",
	}
	for in, want := range cases {
		got, ok := MatchRegistration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"register ABC12", "register ABC1234", "registerABC123", "please register ABC123", "register AB-123"} {
		_, ok := MatchRegistration(in)
		assert.False(t, ok, in)
	}
}

func TestMatchReportRepair(t *testing.T) {
	got, ok := MatchReportRepair("report-repair  AC not cooling\nsince morning ")
	assert.True(t, ok)
	assert.Equal(t, "AC not cooling\nsince morning", got)

	_, ok = MatchReportRepair("report-repair   ")
	assert.False(t, ok)
	_, ok = MatchReportRepair("report repair AC")
	assert.False(t, ok)
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, models.RoleHousekeeper.Can(models.ActionAcceptClean))
	assert.False(t, models.RoleHousekeeper.Can(models.ActionInspect))
	assert.True(t, models.RoleAdmin.Can(models.ActionOpenRoom))
	assert.False(t, models.RoleTechnician.Can(models.ActionCompleteClean))
	for _, role := range models.Roles() {
		assert.True(t, role.Can(models.ActionCheckIn), role)
		assert.NotEmpty(t, role.MenuKey(), role)
	}
}
