package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watukazi/authv1/apiclient"
	"github.com/watukazi/authv1/credstore"
)

func newTestController(t *testing.T, baseURL string) (*Controller, *credstore.Store) {
	t.Helper()
	store := credstore.New(
		credstore.NewFileScope(filepath.Join(t.TempDir(), "credentials.json")),
		credstore.NewMemScope(),
	)
	return New(store, apiclient.New(baseURL)), store
}

func TestLoginRememberMe(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1", "role": "client"})

	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	assert.True(t, ctrl.IsAuthenticated())
	assert.Equal(t, "u1", ctrl.User().ID)
	creds, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, token, creds.AccessToken)
	assert.Equal(t, credstore.Durable, creds.Scope)
}

func TestLoginWithoutRememberMeStaysEphemeral(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1"})

	require.NoError(t, ctrl.Login(token, "refresh-1", false))

	creds, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, credstore.Ephemeral, creds.Scope)
}

func TestLoginEmptyTokenFails(t *testing.T) {
	ctrl, store := newTestController(t, "")
	err := ctrl.Login("", "refresh-1", true)
	var tokenErr *InvalidTokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.False(t, ctrl.IsAuthenticated())
	_, ok := store.Read()
	assert.False(t, ok)
}

func TestLoginBadTokenLeavesNoPartialState(t *testing.T) {
	ctrl, store := newTestController(t, "")
	good := testToken(t, map[string]interface{}{"sub": "u1"})
	require.NoError(t, ctrl.Login(good, "refresh-1", true))

	err := ctrl.Login("not-a-jwt", "refresh-2", true)
	var tokenErr *InvalidTokenError
	require.ErrorAs(t, err, &tokenErr)
	// the failed login logged us out entirely, including the earlier session
	assert.False(t, ctrl.IsAuthenticated())
	_, ok := store.Read()
	assert.False(t, ok)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1"})
	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	ctrl.Logout()
	ctrl.Logout()

	assert.False(t, ctrl.IsAuthenticated())
	assert.Nil(t, ctrl.User())
	_, ok := store.Read()
	assert.False(t, ok)
}

func TestInitRestoresStoredSession(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "42"})
	store.Write(token, "refresh-1", "", credstore.Durable)

	ctrl.Init()

	assert.True(t, ctrl.IsAuthenticated())
	assert.Equal(t, "42", ctrl.User().ID)
	assert.Equal(t, token, ctrl.AccessToken())
}

func TestInitDiscardsGarbageToken(t *testing.T) {
	ctrl, store := newTestController(t, "")
	store.Write("not-a-jwt", "refresh-1", "", credstore.Durable)

	ctrl.Init()

	assert.False(t, ctrl.IsAuthenticated())
	_, ok := store.Read()
	assert.False(t, ok)
}

func TestInitMigratesLegacyKeysFirst(t *testing.T) {
	durable := credstore.NewFileScope(filepath.Join(t.TempDir(), "credentials.json"))
	store := credstore.New(durable, credstore.NewMemScope())
	ctrl := New(store, apiclient.New(""))
	token := testToken(t, map[string]interface{}{"sub": "u1"})
	durable.Set("token", token)

	ctrl.Init()

	assert.True(t, ctrl.IsAuthenticated())
	assert.Empty(t, durable.Get("token"))
	assert.Equal(t, token, durable.Get(credstore.KeyAuthToken))
}

func TestInitPrefersPersistedUserRecord(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1", "name": "Asha"})
	stored, err := json.Marshal(&UserProfile{ID: "u1", Name: "Asha M.", Email: "asha@example.com"})
	require.NoError(t, err)
	store.Write(token, "refresh-1", string(stored), credstore.Durable)

	ctrl.Init()

	require.True(t, ctrl.IsAuthenticated())
	assert.Equal(t, "Asha M.", ctrl.User().Name)
	assert.Equal(t, "asha@example.com", ctrl.User().Email)
}

func TestUpdateUserMergesAndPersists(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1", "name": "Asha"})
	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	ctrl.UpdateUser(map[string]interface{}{"fullName": "Asha M."})

	assert.Equal(t, "Asha M.", ctrl.User().Name)
	creds, ok := store.Read()
	require.True(t, ok)
	assert.Contains(t, creds.UserData, "Asha M.")
}

func TestUpdateUserWithoutSessionIsBestEffort(t *testing.T) {
	ctrl, _ := newTestController(t, "")
	// must not panic or create state
	ctrl.UpdateUser(map[string]interface{}{"fullName": "Nobody"})
	assert.False(t, ctrl.IsAuthenticated())
}

func TestRefreshUserProfile(t *testing.T) {
	token := testToken(t, map[string]interface{}{"sub": "u1"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/profile", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "u1",
			"fullName": "Asha M.",
			"rating": 4.9,
		})
	}))
	defer server.Close()

	ctrl, _ := newTestController(t, server.URL)
	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	require.NoError(t, ctrl.RefreshUserProfile(context.Background()))
	assert.Equal(t, "Asha M.", ctrl.User().Name)
	assert.Equal(t, 4.9, ctrl.User().Extra["rating"])
}

func TestRefreshUserProfileSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	ctrl, _ := newTestController(t, server.URL)
	token := testToken(t, map[string]interface{}{"sub": "u1"})
	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	err := ctrl.RefreshUserProfile(context.Background())
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	// the controller itself does not log out; that's the caller's decision
	assert.True(t, ctrl.IsAuthenticated())
}

func TestRefreshUserProfileRequiresSession(t *testing.T) {
	ctrl, _ := newTestController(t, "")
	err := ctrl.RefreshUserProfile(context.Background())
	var tokenErr *InvalidTokenError
	assert.ErrorAs(t, err, &tokenErr)
}

func TestCloseKeepsStorage(t *testing.T) {
	ctrl, store := newTestController(t, "")
	token := testToken(t, map[string]interface{}{"sub": "u1"})
	require.NoError(t, ctrl.Login(token, "refresh-1", true))

	ctrl.Close()

	assert.False(t, ctrl.IsAuthenticated())
	_, ok := store.Read()
	assert.True(t, ok)

	ctrl.Init()
	assert.True(t, ctrl.IsAuthenticated())
}
