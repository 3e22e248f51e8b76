package auth

import (
	"context"
	"slices"
)

const (
	RoleAdmin   = "admin"
	RoleBursar  = "bursar"
	RoleTeacher = "teacher"
	RoleAuditor = "auditor"
)

const (
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollRun      = "payroll.run"
	PermPayrollFinalize = "payroll.finalize"
	PermStaffRead       = "staff.read"
	PermStaffWrite      = "staff.write"
	PermAuditRead       = "audit.read"
)

var RolePermissions = map[string][]string{
	RoleTeacher: {
		PermPayrollRead,
	},
	RoleAuditor: {
		PermPayrollRead,
		PermStaffRead,
		PermAuditRead,
	},
	RoleBursar: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermStaffRead,
		PermStaffWrite,
	},
	RoleAdmin: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollFinalize,
		PermStaffRead,
		PermStaffWrite,
		PermAuditRead,
	},
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	return slices.Contains(RolePermissions[roleName], permission), nil
}
