package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"redas-backend/internal/ctxkeys"
	"redas-backend/internal/workflow"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func echoActor(t *testing.T, got *workflow.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ctxkeys.Actor(r.Context())
		require.True(t, ok)
		*got = a
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuth_InjectsActor(t *testing.T) {
	var got workflow.Actor
	h := Auth("secret")(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "secret", jwt.MapClaims{
		"userId": 42,
		"role":   "supervisor",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, workflow.Actor{ID: 42, Role: workflow.RoleSupervisor}, got)
}

func TestAuth_Rejects(t *testing.T) {
	h := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	exp := time.Now().Add(time.Hour).Unix()

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage":        "Bearer not-a-jwt",
		"no user id":     "Bearer " + sign(t, "secret", jwt.MapClaims{"role": "user", "exp": exp}),
		"string user id": "Bearer " + sign(t, "secret", jwt.MapClaims{"userId": "7", "role": "user", "exp": exp}),
		"unknown role":   "Bearer " + sign(t, "secret", jwt.MapClaims{"userId": 7, "role": "owner", "exp": exp}),
		"wrong secret":   "Bearer " + sign(t, "other", jwt.MapClaims{"userId": 7, "role": "user", "exp": exp}),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(workflow.ApproverRoles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[workflow.Role]int{
		workflow.RoleUser:       http.StatusForbidden,
		workflow.RoleSupervisor: http.StatusForbidden,
		workflow.RoleAdmin:      http.StatusOK,
		workflow.RoleSuperAdmin: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(ctxkeys.WithActor(req.Context(), workflow.Actor{ID: 1, Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPerMinute_LimitsPerClient(t *testing.T) {
	h := PerMinute(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(ip string, actor *workflow.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip
		if actor != nil {
			req = req.WithContext(ctxkeys.WithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1", nil))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2", nil))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3", nil))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1", nil))

	// Authenticated callers are keyed by user, not address.
	alice := &workflow.Actor{ID: 5, Role: workflow.RoleUser}
	assert.Equal(t, http.StatusOK, call("10.0.0.1:4", alice))
}

func TestPerMinute_ZeroDisables(t *testing.T) {
	h := PerMinute(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", extractIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractIP(req))
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mw := RequestLogger(zap.New(core))

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/api/reports", entries[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusNotFound, entries[1].ContextMap()["status"])
	assert.NotContains(t, entries[0].ContextMap(), "user_id")
}

func TestRequestLogger_RecordsAuthenticatedUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "secret", jwt.MapClaims{
		"userId": 9,
		"role":   "admin",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, 9, fields["user_id"])
	assert.Equal(t, "admin", fields["role"])
}
