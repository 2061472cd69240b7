package models

import "strings"

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHousekeeper Role = "housekeeper"
	RoleTechnician  Role = "technician"
)

// ParseRole maps a stored or user supplied role name onto the closed Role set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleHousekeeper:
		return RoleHousekeeper, true
	case RoleTechnician:
		return RoleTechnician, true
	}
	return "", false
}

// Label is the human readable role name shown in chat replies.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleHousekeeper:
		return "Housekeeper"
	case RoleTechnician:
		return "Technician"
	}
	return "Staff"
}

// MenuKey returns the menu binding assigned to the role on registration.
func (r Role) MenuKey() string {
	return roleMenus[r]
}

// Can reports whether the role may perform the action.
func (r Role) Can(a Action) bool {
	for _, allowed := range rolePermissions[r] {
		if allowed == a {
			return true
		}
	}
	return false
}

var roleMenus = map[Role]string{
	RoleAdmin:       "menu_admin",
	RoleHousekeeper: "menu_housekeeper",
	RoleTechnician:  "menu_technician",
}

var rolePermissions = map[Role][]Action{
	RoleAdmin: {
		ActionInspect, ActionOpenRoom,
		ActionCheckIn, ActionCheckOut, ActionMyTasks,
	},
	RoleHousekeeper: {
		ActionAcceptClean, ActionStartClean, ActionCompleteClean, ActionReportRepair,
		ActionCheckIn, ActionCheckOut, ActionMyTasks,
	},
	RoleTechnician: {
		ActionAcceptRepair, ActionResolveRepair,
		ActionCheckIn, ActionCheckOut, ActionMyTasks,
	},
}

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHousekeeper, RoleTechnician}
}
