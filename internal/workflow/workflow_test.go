package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_TransitionTable(t *testing.T) {
	tests := []struct {
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{"", ActionSubmit, StatusPending, true},
		{StatusPending, ActionSubmit, StatusPending, false},

		{StatusPending, ActionVet, StatusVetted, true},
		{StatusVetted, ActionVet, StatusVetted, false},
		{StatusApproved, ActionVet, StatusApproved, false},
		{StatusRejected, ActionVet, StatusRejected, false},

		{StatusVetted, ActionApprove, StatusApproved, true},
		{StatusPending, ActionApprove, StatusPending, false},
		{StatusApproved, ActionApprove, StatusApproved, false},
		{StatusRejected, ActionApprove, StatusRejected, false},

		{StatusPending, ActionReject, StatusRejected, true},
		{StatusVetted, ActionReject, StatusRejected, true},
		{StatusApproved, ActionReject, StatusApproved, false},
		{StatusRejected, ActionReject, StatusRejected, false},

		{StatusPending, ActionEdit, StatusPending, true},
		{StatusVetted, ActionEdit, StatusVetted, false},

		{StatusApproved, ActionDelete, StatusApproved, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var conflict *StateConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.from, conflict.Current)
		})
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	actions := []Action{ActionVet, ActionApprove, ActionReject, ActionEdit}
	for _, s := range []Status{StatusApproved, StatusRejected} {
		assert.True(t, s.Terminal())
		for _, a := range actions {
			_, err := Next(s, a)
			assert.Error(t, err, "%s from %s", a, s)
		}
	}
}

func TestAuthorize_UserCannotReview(t *testing.T) {
	user := Actor{ID: 7, Role: RoleUser}
	for _, st := range Statuses {
		own := Subject{OwnerID: 7, Status: st}
		for _, a := range []Action{ActionVet, ActionApprove, ActionReject} {
			err := Authorize(user, a, own)
			var authErr *AuthorizationError
			assert.ErrorAs(t, err, &authErr, "%s on own %s report", a, st)
		}
	}
}

func TestAuthorize_Matrix(t *testing.T) {
	user := Actor{ID: 1, Role: RoleUser}
	other := Actor{ID: 2, Role: RoleUser}
	sup := Actor{ID: 3, Role: RoleSupervisor}
	admin := Actor{ID: 4, Role: RoleAdmin}
	super := Actor{ID: 5, Role: RoleSuperAdmin}

	pending := Subject{OwnerID: 1, Status: StatusPending}
	vetted := Subject{OwnerID: 1, Status: StatusVetted}

	allowed := []struct {
		actor  Actor
		action Action
		subj   Subject
	}{
		{user, ActionSubmit, Subject{}},
		{user, ActionView, pending},
		{sup, ActionView, pending},
		{user, ActionEdit, pending},
		{sup, ActionVet, pending},
		{admin, ActionVet, pending},
		{super, ActionVet, pending},
		{admin, ActionApprove, vetted},
		{super, ActionApprove, vetted},
		{sup, ActionReject, pending},
		{admin, ActionReject, pending},
		{admin, ActionReject, vetted},
		{user, ActionDelete, pending},
		{admin, ActionDelete, Subject{OwnerID: 1, Status: StatusApproved}},
	}
	for _, c := range allowed {
		assert.NoError(t, Authorize(c.actor, c.action, c.subj), "%s %s", c.actor.Role, c.action)
	}

	denied := []struct {
		actor  Actor
		action Action
		subj   Subject
	}{
		{sup, ActionSubmit, Subject{}},
		{admin, ActionSubmit, Subject{}},
		{other, ActionView, pending},
		{other, ActionEdit, pending},
		{sup, ActionEdit, pending},
		{sup, ActionApprove, vetted},
		{sup, ActionReject, vetted},
		{other, ActionDelete, pending},
		{sup, ActionDelete, pending},
	}
	for _, c := range denied {
		err := Authorize(c.actor, c.action, c.subj)
		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr, "%s %s", c.actor.Role, c.action)
	}
}

func TestCheck_RejectApprovedIsStateConflictForAnyReviewer(t *testing.T) {
	approved := Subject{OwnerID: 1, Status: StatusApproved}
	for _, role := range VetterRoles {
		_, err := Check(Actor{ID: 9, Role: role}, ActionReject, approved)
		var conflict *StateConflictError
		require.ErrorAs(t, err, &conflict, "role %s", role)
		assert.Equal(t, StatusApproved, conflict.Current)
	}
}

func TestCheck_OwnerDeleteAfterPendingIsStateConflict(t *testing.T) {
	_, err := Check(Actor{ID: 1, Role: RoleUser}, ActionDelete, Subject{OwnerID: 1, Status: StatusVetted})
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, StatusVetted, conflict.Current)
}

func TestRejectionGate(t *testing.T) {
	assert.Equal(t, GateVet, RejectionGate(StatusPending))
	assert.Equal(t, GateApproval, RejectionGate(StatusVetted))
	assert.Equal(t, GateNone, RejectionGate(StatusApproved))
}

func TestVisibleOwner(t *testing.T) {
	id, restricted := VisibleOwner(Actor{ID: 42, Role: RoleUser})
	assert.True(t, restricted)
	assert.Equal(t, int64(42), id)

	for _, role := range VetterRoles {
		_, restricted := VisibleOwner(Actor{ID: 1, Role: role})
		assert.False(t, restricted, role)
	}
}

func TestValidation(t *testing.T) {
	assert.NoError(t, Validation(nil))
	assert.NoError(t, Validation(map[string]string{}))

	err := Validation(map[string]string{"b": "bad", "a": "missing"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Validation failed (a: missing; b: bad)", err.Error())
}
