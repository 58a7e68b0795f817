// Package workflow is the report review state machine.
//
// A report is created pending, may be vetted by a supervisor (or admin), then
// approved by an admin. It can be rejected at either gate. Approved and
// rejected are terminal. This package decides who may do what and which state
// comes next; it has no HTTP or database dependencies.
package workflow

// ── Statuses ─────────────────────────────────────────────────────

type Status string

const (
	StatusPending  Status = "pending"
	StatusVetted   Status = "vetted"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusVetted, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVetted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Label is the display name shown by the web client.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending Review"
	case StatusVetted:
		return "Vetted"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

// ── Actions ──────────────────────────────────────────────────────

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionVet     Action = "vet"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDelete  Action = "delete"
)

// ── Gates ────────────────────────────────────────────────────────

// Gate identifies which set of audit fields a transition records.
type Gate int

const (
	GateNone Gate = iota
	GateVet                 // vetted_by / vetted_at / vet_comments
	GateApproval            // approved_by / approved_at / approval_comments
)

// RejectionGate returns the gate that records a rejection from the given status.
// A pending report is rejected at the vetting gate, a vetted one at the approval gate.
func RejectionGate(from Status) Gate {
	switch from {
	case StatusPending:
		return GateVet
	case StatusVetted:
		return GateApproval
	}
	return GateNone
}

// ── Transition table ─────────────────────────────────────────────

// Next returns the status a report moves to when action is applied in status
// from. Actions that do not change the status (edit, delete) return from.
// An illegal combination yields a *StateConflictError carrying from.
func Next(from Status, action Action) (Status, error) {
	switch action {
	case ActionSubmit:
		if from == "" {
			return StatusPending, nil
		}
	case ActionView:
		return from, nil
	case ActionEdit:
		if from == StatusPending {
			return StatusPending, nil
		}
	case ActionVet:
		if from == StatusPending {
			return StatusVetted, nil
		}
	case ActionApprove:
		if from == StatusVetted {
			return StatusApproved, nil
		}
	case ActionReject:
		if from == StatusPending || from == StatusVetted {
			return StatusRejected, nil
		}
	case ActionDelete:
		if from.Valid() {
			return from, nil
		}
	}
	return from, &StateConflictError{Action: action, Current: from}
}

// Subject is the part of a report the capability check looks at.
type Subject struct {
	OwnerID int64
	Status  Status
}

// Check runs the capability check and then the state guard for action.
// It returns the resulting status when both pass.
func Check(actor Actor, action Action, subj Subject) (Status, error) {
	if err := Authorize(actor, action, subj); err != nil {
		return subj.Status, err
	}
	return Next(subj.Status, action)
}
