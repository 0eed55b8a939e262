package access

// Role is a workspace role. Roles form a single total order with monotonic
// permission inheritance: any role also holds every permission of the roles
// below it. Routes declare the minimum role they require instead of ad-hoc
// per-route sets.
type Role string

const (
	RoleObserver     Role = "observer"
	RoleResident     Role = "resident"
	RoleDoctor       Role = "doctor"
	RoleSeniorDoctor Role = "senior_doctor"
	RoleAdmin        Role = "admin"
	RoleOwner        Role = "owner"
)

var roleRank = map[Role]int{
	RoleObserver:     0,
	RoleResident:     1,
	RoleDoctor:       2,
	RoleSeniorDoctor: 3,
	RoleAdmin:        4,
	RoleOwner:        5,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min in the role ordering.
// Unknown roles never satisfy any requirement.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// RolesAtLeast expands the ordering into the explicit set of roles ranking
// at or above min, lowest first.
func RolesAtLeast(min Role) []Role {
	mr, ok := roleRank[min]
	if !ok {
		return nil
	}
	out := make([]Role, 0, len(roleRank))
	for _, r := range []Role{RoleObserver, RoleResident, RoleDoctor, RoleSeniorDoctor, RoleAdmin, RoleOwner} {
		if roleRank[r] >= mr {
			out = append(out, r)
		}
	}
	return out
}
