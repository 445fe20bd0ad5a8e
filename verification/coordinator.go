package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/watukazi/authv1/apiclient"
	"github.com/watukazi/authv1/credstore"
)

// ResendCooldown is how long after a successful send a new one is refused.
const ResendCooldown = 60 * time.Second

// placeholderPrefix marks verification tokens synthesized locally because
// the OTP service answered without one. The verify call drops the
// Authorization header for these and relies on identifier+code alone.
const placeholderPrefix = "local-"

var ErrNoIdentifier = errors.New("verification: no identifier set")
var ErrInvalidCode = errors.New("verification: code must be exactly 6 digits")
var ErrCooldownActive = errors.New("verification: please wait before requesting another code")
var ErrSendInFlight = errors.New("verification: a code request is already in progress")

// Type of the pending attempt, derived from which identifier was supplied.
const (
	TypePhone = "phone"
	TypeEmail = "email"
)

// Info carries the identifier from the sign-up flow. Exactly one of the two
// fields must be set.
type Info struct {
	Phone string
	Email string
}

// Coordinator tracks one pending OTP verification at a time: an identifier,
// the verification token from the last send, and whether the attempt has
// been confirmed. State is mirrored into the credential store's durable
// scope so an interrupted sign-up can resume after a restart.
type Coordinator struct {
	store *credstore.Store
	api *apiclient.Client
	now func() time.Time

	mu sync.Mutex
	identifier string
	verificationType string
	token string
	verified bool
	inFlight bool
	lastSentAt time.Time
}

func New(store *credstore.Store, api *apiclient.Client) *Coordinator {
	return &Coordinator{store: store, api: api, now: time.Now}
}

// Restore picks up a pending attempt persisted by an earlier run.
func (c *Coordinator) Restore() {
	phone, email, token := c.store.ReadVerification()
	c.mu.Lock()
	defer c.mu.Unlock()
	if phone != "" {
		c.identifier = phone
		c.verificationType = TypePhone
	} else if email != "" {
		c.identifier = email
		c.verificationType = TypeEmail
	} else {
		return
	}
	c.token = token
	c.verified = false
}

// SetVerificationInfo starts a fresh attempt for the given identifier,
// replacing any previous one.
func (c *Coordinator) SetVerificationInfo(info Info) error {
	if info.Phone == "" && info.Email == "" {
		return ErrNoIdentifier
	}
	if info.Phone != "" && info.Email != "" {
		return errors.New("verification: set either a phone or an email, not both")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if info.Phone != "" {
		c.identifier = info.Phone
		c.verificationType = TypePhone
	} else {
		c.identifier = info.Email
		c.verificationType = TypeEmail
	}
	c.token = ""
	c.verified = false
	c.lastSentAt = time.Time{}
	c.store.SaveVerificationInfo(info.Phone, info.Email)
	return nil
}

// ResendOTP asks the service for a (new) code. A send is refused while the
// cooldown from the previous successful send is running, or while another
// send is still in flight. The cooldown only starts once a send succeeds, so
// a failed request can be retried immediately.
func (c *Coordinator) ResendOTP(ctx context.Context) error {
	c.mu.Lock()
	if c.identifier == "" {
		c.mu.Unlock()
		return ErrNoIdentifier
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	if !c.lastSentAt.IsZero() && c.now().Sub(c.lastSentAt) < ResendCooldown {
		c.mu.Unlock()
		return ErrCooldownActive
	}
	c.inFlight = true
	identifier := c.identifier
	c.mu.Unlock()

	result, err := c.api.SendOTP(ctx, identifier)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return err
	}
	token := result.VerificationToken
	if token == "" {
		// The OTP service does not always return a token; synthesize one so
		// the flow can continue.
		token = placeholderPrefix + uuid.NewString()
	}
	c.token = token
	c.lastSentAt = c.now()
	c.store.SetVerificationToken(token)
	return nil
}

// VerifyOTP submits the code. Anything other than six digits is rejected
// before a request goes out. Success flips the verified flag and clears the
// persisted keys; failure keeps the pending identifier so the user can retry
// with a fresh code.
func (c *Coordinator) VerifyOTP(ctx context.Context, code string) error {
	if !validCode(code) {
		return ErrInvalidCode
	}
	c.mu.Lock()
	identifier := c.identifier
	token := c.token
	c.mu.Unlock()
	if identifier == "" {
		return ErrNoIdentifier
	}
	bearer := token
	if strings.HasPrefix(token, placeholderPrefix) {
		bearer = ""
	}
	if err := c.api.VerifyOTP(ctx, identifier, code, bearer); err != nil {
		return err
	}
	c.mu.Lock()
	c.verified = true
	c.token = ""
	c.mu.Unlock()
	c.store.ClearVerification()
	return nil
}

// ClearVerification abandons the pending attempt entirely.
func (c *Coordinator) ClearVerification() {
	c.mu.Lock()
	c.identifier = ""
	c.verificationType = ""
	c.token = ""
	c.verified = false
	c.inFlight = false
	c.lastSentAt = time.Time{}
	c.mu.Unlock()
	c.store.ClearVerification()
}

func (c *Coordinator) Identifier() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identifier
}

func (c *Coordinator) VerificationType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verificationType
}

func (c *Coordinator) IsVerified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// CooldownRemaining is how long until the next send is allowed; zero when a
// send is allowed now.
func (c *Coordinator) CooldownRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSentAt.IsZero() {
		return 0
	}
	remaining := ResendCooldown - c.now().Sub(c.lastSentAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
