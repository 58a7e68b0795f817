package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redas-backend/internal/ctxkeys"
	"redas-backend/internal/models"
	"redas-backend/internal/repository"
	"redas-backend/internal/workflow"
)

type lookupFunc func(ctx context.Context, id int64) (*models.User, error)

func (f lookupFunc) GetByID(ctx context.Context, id int64) (*models.User, error) { return f(ctx, id) }

func withActor(a workflow.Actor) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(ctxkeys.WithActor(req.Context(), a))
}

func TestCurrentRole_UsesStoredRole(t *testing.T) {
	users := lookupFunc(func(_ context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Role: workflow.RoleUser}, nil
	})
	var got workflow.Actor
	h := CurrentRole(users, zap.NewNop())(echoActor(t, &got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withActor(workflow.Actor{ID: 3, Role: workflow.RoleAdmin}))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, workflow.Actor{ID: 3, Role: workflow.RoleUser}, got)
}

func TestCurrentRole_DemotionUpdatesLoggedRole(t *testing.T) {
	users := lookupFunc(func(_ context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Role: workflow.RoleSupervisor}, nil
	})
	h := CurrentRole(users, zap.NewNop())(RequireRole(workflow.ApproverRoles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	ctx, slot := ctxkeys.WithActorSlot(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctxkeys.WithActor(ctx, workflow.Actor{ID: 3, Role: workflow.RoleAdmin}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, workflow.RoleSupervisor, slot.Role)
}

func TestCurrentRole_Failures(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"deleted user": {repository.ErrUserNotFound, http.StatusUnauthorized},
		"store down":   {errors.New("connection refused"), http.StatusInternalServerError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			users := lookupFunc(func(context.Context, int64) (*models.User, error) { return nil, tc.err })
			h := CurrentRole(users, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, withActor(workflow.Actor{ID: 3, Role: workflow.RoleAdmin}))
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	CurrentRole(nil, zap.NewNop())(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
