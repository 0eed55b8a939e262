package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotAMember is returned when no active membership exists for a
	// (user, workspace) pair. Invited and disabled memberships are treated
	// identically to absence.
	ErrNotAMember = errors.New("not a workspace member")

	// ErrNotFound is returned when a looked-up resource does not exist.
	// Callers surface it without distinguishing "absent" from
	// "inaccessible" so that non-members cannot probe for existence.
	ErrNotFound = errors.New("resource not found")
)

// MembershipStatus is the lifecycle state of a membership row. Memberships
// are disabled rather than deleted.
type MembershipStatus string

const (
	StatusActive   MembershipStatus = "active"
	StatusInvited  MembershipStatus = "invited"
	StatusDisabled MembershipStatus = "disabled"
)

// Membership binds a principal to a workspace with a role. At most one
// active row exists per (user, workspace) pair.
type Membership struct {
	WorkspaceID uuid.UUID        `db:"workspace_id" json:"workspace_id"`
	UserID      uuid.UUID        `db:"user_id" json:"user_id"`
	Role        Role             `db:"role" json:"role"`
	Status      MembershipStatus `db:"status" json:"status"`
}

// Decision is the request-scoped outcome of an authorization check. It is
// computed fresh on every request and never cached, so a role change takes
// effect on the caller's next request.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Role    Role   `json:"role,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// MembershipStore looks up membership rows. Only rows with status=active
// are ever returned; anything else yields ErrNotAMember.
type MembershipStore interface {
	ActiveMembership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error)
}

// PatientLocator resolves a patient to its owning workspace. Patients carry
// no caller-checkable ACL of their own, so authorization always goes
// through the workspace.
type PatientLocator interface {
	PatientWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
}

// Resolver answers "may this principal perform this operation on this
// workspace-scoped resource".
type Resolver struct {
	members  MembershipStore
	patients PatientLocator
}

func NewResolver(members MembershipStore, patients PatientLocator) *Resolver {
	return &Resolver{members: members, patients: patients}
}

// CheckMembership returns the active membership for the pair, or
// ErrNotAMember when none exists.
func (r *Resolver) CheckMembership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error) {
	m, err := r.members.ActiveMembership(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusActive {
		return nil, ErrNotAMember
	}
	return m, nil
}

// ResolvePatientWorkspace returns the workspace owning the patient, or
// ErrNotFound.
func (r *Resolver) ResolvePatientWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return r.patients.PatientWorkspace(ctx, patientID)
}

// Authorize decides whether a membership satisfies the required role set.
// An empty set means membership alone suffices. Pure function: same inputs
// always give the same decision.
func Authorize(m *Membership, required ...Role) Decision {
	if m == nil || m.Status != StatusActive {
		return Decision{Allowed: false, Reason: "no active membership"}
	}
	if len(required) == 0 {
		return Decision{Allowed: true, Role: m.Role}
	}
	for _, want := range required {
		if m.Role == want {
			return Decision{Allowed: true, Role: m.Role}
		}
	}
	return Decision{Allowed: false, Role: m.Role, Reason: "insufficient role"}
}

// AuthorizeMin is Authorize with the required set derived from the role
// ordering: every role at or above min is accepted.
func AuthorizeMin(m *Membership, min Role) Decision {
	return Authorize(m, RolesAtLeast(min)...)
}
