package workflow

// Role is a user's role. Capabilities are checked exactly, not by rank:
// a supervisor can vet but not submit, a user can submit but not vet.
// admin and super_admin are interchangeable for every report action.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every known role.
var Roles = []Role{RoleUser, RoleSupervisor, RoleAdmin, RoleSuperAdmin}

// VetterRoles are notified when a report is submitted.
var VetterRoles = []Role{RoleSupervisor, RoleAdmin, RoleSuperAdmin}

// ApproverRoles are notified when a report is vetted.
var ApproverRoles = []Role{RoleAdmin, RoleSuperAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupervisor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) CanSubmit() bool { return r == RoleUser }

func (r Role) CanVet() bool {
	return r == RoleSupervisor || r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is the authenticated caller of a workflow action.
type Actor struct {
	ID   int64
	Role Role
}

// Authorize is the capability matrix for report actions.
//
//	submit   user
//	view     owner, or any vetter/approver
//	edit     owner
//	vet      vetter
//	approve  approver
//	reject   vetter while pending, approver while vetted
//	delete   owner while pending, or approver in any status
//
// For reject the per-gate check only applies to pending and vetted reports;
// on a terminal report a vetter gets a state conflict from Next instead.
// An owner deleting a non-pending report gets a state conflict here, since
// the refusal is about the status, not the caller.
func Authorize(actor Actor, action Action, subj Subject) error {
	deny := func(reason string) error {
		return &AuthorizationError{Action: action, Role: actor.Role, Reason: reason}
	}
	owner := subj.OwnerID != 0 && subj.OwnerID == actor.ID

	switch action {
	case ActionSubmit:
		if !actor.Role.CanSubmit() {
			return deny("Only users can submit reports")
		}
	case ActionView:
		if !owner && !actor.Role.CanVet() {
			return deny("Unauthorized to view this report")
		}
	case ActionEdit:
		if !owner {
			return deny("Unauthorized to update this report")
		}
	case ActionVet:
		if !actor.Role.CanVet() {
			return deny("Only supervisors can vet reports")
		}
	case ActionApprove:
		if !actor.Role.CanApprove() {
			return deny("Only admins can approve reports")
		}
	case ActionReject:
		if !actor.Role.CanVet() {
			return deny("Only supervisors and admins can reject reports")
		}
		if subj.Status == StatusVetted && !actor.Role.CanApprove() {
			return deny("Only admins can reject vetted reports")
		}
	case ActionDelete:
		if actor.Role.CanApprove() {
			return nil
		}
		if !owner {
			return deny("Unauthorized to delete this report")
		}
		if subj.Status != StatusPending {
			return &StateConflictError{Action: action, Current: subj.Status}
		}
	default:
		return deny("Unknown action")
	}
	return nil
}

// VisibleOwner returns the owner id a listing must be restricted to, and
// whether a restriction applies at all. Submitters only see their own
// reports; vetters and approvers see every report.
func VisibleOwner(actor Actor) (int64, bool) {
	if actor.Role.CanVet() {
		return 0, false
	}
	return actor.ID, true
}
