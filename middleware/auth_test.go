package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

func protected(t *testing.T, roles ...Role) http.Handler {
	t.Helper()
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		w.Header().Set("X-User", id)
		w.WriteHeader(http.StatusNoContent)
	})
	var h http.Handler = final
	if len(roles) > 0 {
		h = RequireRoles(roles...)(h)
	}
	return Authenticate(testSecret)(h)
}

func TestAuthenticate(t *testing.T) {
	valid, err := IssueToken(testSecret, "user-7", RolePlayer, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "user-7", RolePlayer, -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "user-7", RolePlayer, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(t).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "user-7", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	player, err := IssueToken(testSecret, "p1", RolePlayer, time.Hour)
	require.NoError(t, err)
	organizer, err := IssueToken(testSecret, "o1", RoleOrganizer, time.Hour)
	require.NoError(t, err)

	h := protected(t, RoleOrganizer, RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+player)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+organizer)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNumericUserIDClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("X-User"))
}

func TestOperatorKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("op-key"), bcrypt.MinCost)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		hash   []byte
		key    string
		status int
	}{
		{"correct key", hash, "op-key", http.StatusOK},
		{"wrong key", hash, "nope", http.StatusForbidden},
		{"missing key", hash, "", http.StatusUnauthorized},
		{"not configured", nil, "op-key", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set(OperatorKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			OperatorKey(tt.hash)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
