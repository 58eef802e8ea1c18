package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_Register(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth", "", credentialsRequest{Email: "New@Example.com", Password: testPassword})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, jsonContentType, rec.Header().Get("Content-Type"))
	user := decodeBodyAs[accountResponse](t, rec).User
	require.NotNil(t, user)
	assert.Equal(t, "new@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "password", "The hash never leaves the server")
}

func TestAuth_RegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantTag    string
	}{
		{name: "duplicate email", body: credentialsRequest{Email: "TAKEN@example.com", Password: testPassword}, wantStatus: http.StatusConflict, wantTag: tagEmailTaken},
		{name: "short password", body: credentialsRequest{Email: "short@example.com", Password: "short"}, wantStatus: http.StatusBadRequest, wantTag: tagInvalidRequest},
		{name: "long password", body: credentialsRequest{Email: "long@example.com", Password: strings.Repeat("p", 80)}, wantStatus: http.StatusBadRequest, wantTag: tagInvalidRequest},
		{name: "missing email", body: credentialsRequest{Password: testPassword}, wantStatus: http.StatusBadRequest, wantTag: tagInvalidRequest},
		{name: "invalid email", body: credentialsRequest{Email: "nobody", Password: testPassword}, wantStatus: http.StatusBadRequest, wantTag: tagInvalidRequest},
		{name: "invalid json", body: `{"email":`, wantStatus: http.StatusBadRequest, wantTag: tagInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth", "", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantTag, decodeBodyAs[errorResponse](t, rec).Error.Tag)
		})
	}
}

func TestAuth_SignIn(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "signin@example.com")

	rec := env.do(t, http.MethodPost, "/auth/sign_in", "", credentialsRequest{Email: "signin@example.com", Password: testPassword})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBodyAs[signInResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, resp.ExpiresAt.IsZero())
	require.NotNil(t, resp.User)
	assert.Equal(t, account.ID, resp.User.ID)

	synced := env.do(t, http.MethodPost, "/items/sync", resp.Token, map[string]any{})
	assert.Equal(t, http.StatusOK, synced.Code)
}

func TestAuth_SignInInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "real@example.com")

	tests := []struct {
		name string
		body credentialsRequest
	}{
		{name: "wrong password", body: credentialsRequest{Email: "real@example.com", Password: "wrong-password"}},
		{name: "unknown email", body: credentialsRequest{Email: "ghost@example.com", Password: testPassword}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/sign_in", "", tt.body)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":{"message":"Invalid login credentials.","tag":"invalid-auth"}}`, rec.Body.String())
		})
	}
}

// TestAuth_SignOut tests that signing out revokes only the current session.
func TestAuth_SignOut(t *testing.T) {
	// ARRANGE: Two sessions for the same account
	env := newTestEnv(t)
	_, token := env.signUp(t, "signout@example.com")
	other := env.signIn(t, "signout@example.com")

	// ACT
	rec := env.do(t, http.MethodPost, "/auth/sign_out", token, nil)

	// ASSERT
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/items/sync", token, map[string]any{}).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/items/sync", other, map[string]any{}).Code, "Other sessions stay signed in")
}

func TestAuth_SignOutAll(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp(t, "everywhere@example.com")
	other := env.signIn(t, "everywhere@example.com")

	rec := env.do(t, http.MethodPost, "/auth/sign_out_all", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, tok := range []string{token, other} {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/items/sync", tok, map[string]any{}).Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
