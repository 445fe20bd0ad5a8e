package session

import (
	"context"
	"log"
	"sync"

	"github.com/watukazi/authv1/apiclient"
	"github.com/watukazi/authv1/credstore"
)

// InvalidTokenError is returned by Login when the access token is empty or
// its payload cannot be decoded. The controller has already logged out by
// the time the caller sees it.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

// Controller is the stateful façade the application asks "am I logged in,
// and as whom". It owns the in-memory session and keeps the credential store
// in sync with it. Construct one with New, call Init once at startup, and
// pass it to whatever needs authentication state.
type Controller struct {
	store *credstore.Store
	api *apiclient.Client

	mu sync.Mutex
	user *UserProfile
	accessToken string
	refreshToken string
	scope credstore.ScopeKind
}

func New(store *credstore.Store, api *apiclient.Client) *Controller {
	return &Controller{store: store, api: api}
}

// Init migrates legacy storage keys and restores a persisted session. A
// stored token that no longer decodes forces a full logout so no garbage
// entry survives to the next run.
func (c *Controller) Init() {
	c.store.MigrateLegacyKeys()
	creds, ok := c.store.Read()
	if !ok {
		return
	}
	profile, err := DecodeUserProfile(creds.AccessToken)
	if err != nil {
		log.Println("session: discarding stored credentials:", err)
		c.Logout()
		return
	}
	// Profile updates made after login live in the persisted user record;
	// layer them over the token's claims.
	if stored := unmarshalProfile(creds.UserData); stored != nil && stored.ID == profile.ID {
		profile = stored
	}
	c.mu.Lock()
	c.user = profile
	c.accessToken = creds.AccessToken
	c.refreshToken = creds.RefreshToken
	c.scope = creds.Scope
	c.mu.Unlock()
}

// Close drops the in-memory session without touching storage. A later Init
// restores it.
func (c *Controller) Close() {
	c.mu.Lock()
	c.user = nil
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()
}

// Login decodes the access token, sets the in-memory session and persists it
// in the scope chosen by rememberMe. On any failure the controller logs out
// first, so there is never partial state.
func (c *Controller) Login(accessToken, refreshToken string, rememberMe bool) error {
	if accessToken == "" {
		c.Logout()
		return &InvalidTokenError{Reason: "empty access token"}
	}
	profile, err := DecodeUserProfile(accessToken)
	if err != nil {
		c.Logout()
		return &InvalidTokenError{Reason: err.Error()}
	}
	scope := credstore.Ephemeral
	if rememberMe {
		scope = credstore.Durable
	}
	c.mu.Lock()
	c.user = profile
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.scope = scope
	c.mu.Unlock()
	c.store.Write(accessToken, refreshToken, profile.marshal(), scope)
	return nil
}

// Logout always succeeds and never leaves anything behind in either scope.
// Calling it twice is the same as calling it once.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.user = nil
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()
	c.store.Clear()
}

// UpdateUser merges partial fields into the in-memory and persisted user
// record. Best effort: with no session to merge into it logs and returns.
func (c *Controller) UpdateUser(partial map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		log.Println("session: no user record to update")
		return
	}
	c.user.Merge(partial)
	c.store.SetUserData(c.user.marshal(), c.scope)
}

// RefreshUserProfile reads the profile endpoint with the current access
// token and merges the response into the user record. A non-2xx response is
// returned to the caller, who decides whether it warrants a logout.
func (c *Controller) RefreshUserProfile(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		return &InvalidTokenError{Reason: "not authenticated"}
	}
	profile, err := c.api.GetProfile(ctx, token)
	if err != nil {
		return err
	}
	c.UpdateUser(profile)
	return nil
}

func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil && c.accessToken != ""
}

// User returns a copy of the current profile, or nil when logged out.
func (c *Controller) User() *UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	copied := *c.user
	if c.user.Extra != nil {
		copied.Extra = make(map[string]interface{}, len(c.user.Extra))
		for k, v := range c.user.Extra {
			copied.Extra[k] = v
		}
	}
	return &copied
}

func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}
