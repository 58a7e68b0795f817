// Package handlers exposes the HTTP API. Handlers decode requests, call the
// service or repositories, and map typed errors onto status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"redas-backend/internal/ctxkeys"
	"redas-backend/internal/workflow"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func validationFailed(w http.ResponseWriter, details map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":   "Validation failed",
		"details": details,
	})
}

// writeServiceError maps workflow errors onto responses. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, fallback string) {
	var (
		verr *workflow.ValidationError
		aerr *workflow.AuthorizationError
		cerr *workflow.StateConflictError
	)
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   verr.Message,
			"details": verr.Fields,
		})
	case errors.As(err, &aerr):
		JSONError(w, http.StatusForbidden, aerr.Error())
	case errors.As(err, &cerr):
		JSON(w, http.StatusConflict, map[string]interface{}{
			"error":  cerr.Error(),
			"status": cerr.Current,
		})
	case errors.Is(err, workflow.ErrNotFound):
		JSONError(w, http.StatusNotFound, "Report not found")
	default:
		log.Error(fallback, zap.Error(err))
		JSONError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads the body into v, answering 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// parseID reads the {id} URL parameter, answering 400 when it is not a
// positive integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

// actorFrom returns the authenticated actor. Routes using it sit behind
// middleware.Auth, so a missing actor is answered with 401.
func actorFrom(w http.ResponseWriter, r *http.Request) (workflow.Actor, bool) {
	actor, ok := ctxkeys.Actor(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "Authentication required")
	}
	return actor, ok
}
