package models

import (
	"net/mail"
	"strings"
	"time"

	"redas-backend/internal/workflow"
)

// User is an authenticated account. The role decides which report
// actions the user may perform.
type User struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // Never expose in JSON responses
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Role         workflow.Role `json:"role"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Summary returns the public slice embedded in report responses.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

// Actor returns the workflow view of the user.
func (u *User) Actor() workflow.Actor {
	return workflow.Actor{ID: u.ID, Role: u.Role}
}

// RegisterRequest contains the fields needed to create a new account.
// All new accounts get the "user" role; elevated roles are granted by admins.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate checks that all required registration fields are present.
func (r *RegisterRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errors["email"] = "Email is not valid"
	}
	if len(r.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	}
	if strings.TrimSpace(r.FirstName) == "" {
		errors["first_name"] = "First name is required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		errors["last_name"] = "Last name is required"
	}

	return errors
}

// UpdateRoleRequest is used by admins to change a user's role.
type UpdateRoleRequest struct {
	Role workflow.Role `json:"role"`
}

// Validate checks that the role is one of the allowed values.
func (r *UpdateRoleRequest) Validate() map[string]string {
	errors := map[string]string{}
	if !r.Role.Valid() {
		errors["role"] = "Role must be 'user', 'supervisor', 'admin', or 'super_admin'"
	}
	return errors
}

// LoginRequest contains the credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that login credentials are present.
func (r *LoginRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

// AuthResponse is sent back after successful login/registration.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
