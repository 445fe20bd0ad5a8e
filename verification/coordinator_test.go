package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watukazi/authv1/apiclient"
	"github.com/watukazi/authv1/credstore"
)

type otpServer struct {
	*httptest.Server
	sendCalls int64
	verifyCalls int64
	sendToken string // verificationToken returned by send-otp; empty omits it
	verifyStatus int
	lastAuthHeader atomic.Value
}

func newOTPServer(t *testing.T) *otpServer {
	t.Helper()
	s := &otpServer{verifyStatus: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/send-otp":
			atomic.AddInt64(&s.sendCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"message": "New verification code sent!",
				"verificationToken": s.sendToken,
			})
		case "/auth/verify-otp":
			atomic.AddInt64(&s.verifyCalls, 1)
			s.lastAuthHeader.Store(r.Header.Get("Authorization"))
			if s.verifyStatus != http.StatusOK {
				http.Error(w, "Verification unsuccessful.", s.verifyStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestCoordinator(t *testing.T, baseURL string) (*Coordinator, *credstore.Store, *time.Time) {
	t.Helper()
	store := credstore.New(
		credstore.NewFileScope(filepath.Join(t.TempDir(), "credentials.json")),
		credstore.NewMemScope(),
	)
	coord := New(store, apiclient.New(baseURL))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	coord.now = func() time.Time { return now }
	return coord, store, &now
}

func TestSetVerificationInfoPersists(t *testing.T) {
	coord, store, _ := newTestCoordinator(t, "")

	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))

	assert.Equal(t, "+255700000000", coord.Identifier())
	assert.Equal(t, TypePhone, coord.VerificationType())
	phone, email, _ := store.ReadVerification()
	assert.Equal(t, "+255700000000", phone)
	assert.Empty(t, email)
}

func TestSetVerificationInfoRejectsBadInput(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, "")
	assert.ErrorIs(t, coord.SetVerificationInfo(Info{}), ErrNoIdentifier)
	assert.Error(t, coord.SetVerificationInfo(Info{Phone: "+255700000000", Email: "a@b.com"}))
}

func TestResendStoresTokenAndIdentifier(t *testing.T) {
	server := newOTPServer(t)
	server.sendToken = "vt-from-server"
	coord, store, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))

	require.NoError(t, coord.ResendOTP(context.Background()))

	phone, _, token := store.ReadVerification()
	assert.Equal(t, "+255700000000", phone)
	assert.Equal(t, "vt-from-server", token)
	assert.Equal(t, int64(1), atomic.LoadInt64(&server.sendCalls))
}

func TestResendSynthesizesPlaceholderToken(t *testing.T) {
	server := newOTPServer(t) // send-otp answers without a token
	coord, store, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))

	require.NoError(t, coord.ResendOTP(context.Background()))

	_, _, token := store.ReadVerification()
	require.NotEmpty(t, token)
	assert.True(t, strings.HasPrefix(token, placeholderPrefix))

	// a placeholder token must not be sent as a bearer credential
	require.NoError(t, coord.VerifyOTP(context.Background(), "123456"))
	assert.Equal(t, "", server.lastAuthHeader.Load())
}

func TestResendDuringCooldownIssuesNoRequest(t *testing.T) {
	server := newOTPServer(t)
	coord, _, now := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))
	require.NoError(t, coord.ResendOTP(context.Background()))

	*now = now.Add(30 * time.Second)
	err := coord.ResendOTP(context.Background())

	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Equal(t, int64(1), atomic.LoadInt64(&server.sendCalls))
	assert.Equal(t, 30*time.Second, coord.CooldownRemaining())

	*now = now.Add(31 * time.Second)
	require.NoError(t, coord.ResendOTP(context.Background()))
	assert.Equal(t, int64(2), atomic.LoadInt64(&server.sendCalls))
}

func TestFailedSendDoesNotStartCooldown(t *testing.T) {
	calls := int64(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "gateway sad", http.StatusBadGateway)
	}))
	defer server.Close()
	coord, _, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))

	err := coord.ResendOTP(context.Background())
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, coord.CooldownRemaining())

	// retry goes straight through, no cooldown from the failure
	err = coord.ResendOTP(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestResendWithoutIdentifier(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, "")
	assert.ErrorIs(t, coord.ResendOTP(context.Background()), ErrNoIdentifier)
}

func TestVerifyRejectsShortCodeBeforeNetwork(t *testing.T) {
	server := newOTPServer(t)
	coord, _, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))

	for _, code := range []string{"", "123", "1234567", "12345a"} {
		assert.ErrorIs(t, coord.VerifyOTP(context.Background(), code), ErrInvalidCode)
	}
	assert.Zero(t, atomic.LoadInt64(&server.verifyCalls))
}

func TestVerifySuccessClearsPersistedKeys(t *testing.T) {
	server := newOTPServer(t)
	server.sendToken = "vt-1"
	coord, store, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))
	require.NoError(t, coord.ResendOTP(context.Background()))

	require.NoError(t, coord.VerifyOTP(context.Background(), "123456"))

	assert.True(t, coord.IsVerified())
	phone, email, token := store.ReadVerification()
	assert.Empty(t, phone)
	assert.Empty(t, email)
	assert.Empty(t, token)
	assert.Equal(t, "Bearer vt-1", server.lastAuthHeader.Load())
}

func TestVerifyFailureKeepsPendingIdentifier(t *testing.T) {
	server := newOTPServer(t)
	server.verifyStatus = http.StatusBadRequest
	coord, store, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Phone: "+255700000000"}))
	require.NoError(t, coord.ResendOTP(context.Background()))

	err := coord.VerifyOTP(context.Background(), "999999")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, coord.IsVerified())
	assert.Equal(t, "+255700000000", coord.Identifier())
	phone, _, _ := store.ReadVerification()
	assert.Equal(t, "+255700000000", phone)
}

func TestClearVerification(t *testing.T) {
	server := newOTPServer(t)
	coord, store, _ := newTestCoordinator(t, server.URL)
	require.NoError(t, coord.SetVerificationInfo(Info{Email: "user@example.com"}))
	require.NoError(t, coord.ResendOTP(context.Background()))

	coord.ClearVerification()

	assert.Empty(t, coord.Identifier())
	assert.False(t, coord.IsVerified())
	phone, email, token := store.ReadVerification()
	assert.Empty(t, phone)
	assert.Empty(t, email)
	assert.Empty(t, token)
}

func TestRestoreResumesPendingAttempt(t *testing.T) {
	store := credstore.New(
		credstore.NewFileScope(filepath.Join(t.TempDir(), "credentials.json")),
		credstore.NewMemScope(),
	)
	store.SaveVerificationInfo("", "user@example.com")
	store.SetVerificationToken("vt-1")

	coord := New(store, apiclient.New(""))
	coord.Restore()

	assert.Equal(t, "user@example.com", coord.Identifier())
	assert.Equal(t, TypeEmail, coord.VerificationType())
	assert.False(t, coord.IsVerified())
}
