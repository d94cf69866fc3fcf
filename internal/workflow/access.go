package workflow

import "strings"

// Role identifies a clinical staff role carried in auth claims.
type Role string

const (
	RoleDoctor      Role = "DOCTOR"
	RoleNurse       Role = "NURSE"
	RolePharmacist  Role = "PHARMACIST"
	RoleLabTech     Role = "LAB_TECH"
	RoleRadiologist Role = "RADIOLOGIST"
	RoleAdmin       Role = "ADMIN"
)

// ParseRole canonicalizes a role token from auth claims.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

// RoleSet is a small set of roles. Membership checks always admit ADMIN.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r may act. ADMIN is implicitly allowed everywhere.
func (s RoleSet) Contains(r Role) bool {
	if r == RoleAdmin {
		return true
	}
	_, ok := s[r]
	return ok
}

// Roles returns the set's members in a stable order, for error messages.
func (s RoleSet) Roles() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// departmentRoles maps a department to its generic clinical role. Departments
// not listed fall back to DOCTOR.
var departmentRoles = map[string]Role{
	"pharmacy":   RolePharmacist,
	"nursing":    RoleNurse,
	"laboratory": RoleLabTech,
	"radiology":  RoleRadiologist,
	"referral":   RoleDoctor,
	"general":    RoleDoctor,
}

// DepartmentRole returns the clinical role that staffs a department.
func DepartmentRole(department string) Role {
	if r, ok := departmentRoles[normDept(department)]; ok {
		return r
	}
	return RoleDoctor
}

// CanAccessDepartmentQueue reports whether role may read a department queue.
func CanAccessDepartmentQueue(role Role, department string) bool {
	if role == RoleAdmin {
		return true
	}
	return DepartmentRole(department) == role
}

// AuthScope is the slice of a clinical action the role table needs.
type AuthScope struct {
	Kind       ActionKind
	IsCustom   bool
	Department string
}

func cancelRoles() RoleSet {
	return NewRoleSet(RoleDoctor, RoleAdmin)
}

// RolesAllowedFor answers which roles may move the action into newState.
// Evaluated fresh per request; department/role mappings are not cached here.
// ADMIN is admitted by RoleSet.Contains regardless of the returned members.
func RolesAllowedFor(a AuthScope, newState string) RoleSet {
	if a.IsCustom {
		// Custom workflows get no per-state differentiation: the owning
		// department's generic role, uniformly for every state.
		return NewRoleSet(DepartmentRole(a.Department), RoleAdmin)
	}

	switch a.Kind {
	case KindDiagnostic:
		if newState == "CANCELLED" {
			return cancelRoles()
		}
		if normDept(a.Department) == "radiology" {
			return NewRoleSet(RoleRadiologist, RoleAdmin)
		}
		return NewRoleSet(RoleLabTech, RoleAdmin)

	case KindMedication:
		switch newState {
		case "DISPENSED":
			return NewRoleSet(RolePharmacist, RoleAdmin)
		case "ADMINISTERED":
			return NewRoleSet(RoleNurse, RoleAdmin)
		case "CANCELLED":
			return cancelRoles()
		}
		return NewRoleSet(RoleAdmin)

	case KindReferral:
		return NewRoleSet(RoleDoctor, RoleAdmin)

	case KindCareInstruction, KindVitalsRequest:
		if newState == "CANCELLED" {
			return NewRoleSet(RoleDoctor, RoleNurse, RoleAdmin)
		}
		return NewRoleSet(RoleNurse, RoleAdmin)
	}

	return NewRoleSet(RoleAdmin)
}
