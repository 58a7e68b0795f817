package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/models"
	"redas-backend/internal/repository"
	"redas-backend/internal/workflow"
)

// UserManagementHandler provides admin-only user listing and role changes.
type UserManagementHandler struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewUserManagementHandler(users repository.UserRepository, log *zap.Logger) *UserManagementHandler {
	return &UserManagementHandler{users: users, log: log}
}

// elevated roles can only be granted or changed by a super_admin.
func elevated(r workflow.Role) bool {
	return r == workflow.RoleAdmin || r == workflow.RoleSuperAdmin
}

// List returns users visible to the current admin.
// admin sees submitters and supervisors; super_admin sees all.
func (h *UserManagementHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var roles []workflow.Role
	if actor.Role != workflow.RoleSuperAdmin {
		roles = []workflow.Role{workflow.RoleUser, workflow.RoleSupervisor}
	}

	users, err := h.users.List(ctx, roles)
	if err != nil {
		h.log.Error("list users", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []models.User{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": users})
}

// UpdateRole changes a user's role with hierarchical restrictions.
func (h *UserManagementHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	targetID, ok := parseID(w, r)
	if !ok {
		return
	}
	if targetID == actor.ID {
		JSONError(w, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	var req models.UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	target, err := h.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			JSONError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error("get user", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	if actor.Role != workflow.RoleSuperAdmin {
		if elevated(req.Role) {
			JSONError(w, http.StatusForbidden, "Only super_admin can assign admin or super_admin roles")
			return
		}
		if elevated(target.Role) {
			JSONError(w, http.StatusForbidden, "Cannot modify admin or super_admin users")
			return
		}
	}

	user, err := h.users.UpdateRole(ctx, targetID, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			JSONError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error("update role", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	h.log.Info("user role updated",
		zap.Int64("user_id", user.ID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(user.Role)),
		zap.Int64("actor_id", actor.ID))

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    user,
		"message": "Role updated successfully",
	})
}
