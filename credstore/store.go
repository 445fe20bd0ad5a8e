package credstore

// Canonical storage keys. Earlier clients wrote under a handful of aliases;
// MigrateLegacyKeys folds those into the canonical names once at startup, and
// routine reads never look at aliases again.
const (
	KeyAuthToken = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyUserData = "userData"

	KeyVerificationPhone = "verificationPhone"
	KeyVerificationEmail = "verificationEmail"
	KeyVerificationToken = "verificationToken"
)

var legacyTokenAliases = []string{"token"}
var legacyUserAliases = []string{"user"}

var credentialKeys = []string{KeyAuthToken, KeyRefreshToken, KeyUserData}
var verificationKeys = []string{KeyVerificationPhone, KeyVerificationEmail, KeyVerificationToken}

// ScopeKind selects where credentials are written. Durable survives future
// runs; Ephemeral lasts for the current process only. The "remember me" flag
// at login picks between them.
type ScopeKind int

const (
	Durable ScopeKind = iota
	Ephemeral
)

// Credentials is what Read hands back: the persisted tokens plus the raw
// user record JSON, and the scope they were found in.
type Credentials struct {
	AccessToken string
	RefreshToken string
	UserData string
	Scope ScopeKind
}

// Store is the single place authentication material is read and written.
// At most one scope holds credentials at a time: writing to one clears the
// other.
type Store struct {
	durable Scope
	ephemeral Scope
}

func New(durable, ephemeral Scope) *Store {
	return &Store{durable: durable, ephemeral: ephemeral}
}

func (s *Store) scope(kind ScopeKind) Scope {
	if kind == Durable {
		return s.durable
	}
	return s.ephemeral
}

func (s *Store) other(kind ScopeKind) Scope {
	if kind == Durable {
		return s.ephemeral
	}
	return s.durable
}

// Read scans the durable scope first, then the ephemeral scope, and returns
// the first scope holding a non-empty access token.
func (s *Store) Read() (Credentials, bool) {
	for _, kind := range []ScopeKind{Durable, Ephemeral} {
		sc := s.scope(kind)
		token := sc.Get(KeyAuthToken)
		if token == "" {
			continue
		}
		return Credentials{
			AccessToken: token,
			RefreshToken: sc.Get(KeyRefreshToken),
			UserData: sc.Get(KeyUserData),
			Scope: kind,
		}, true
	}
	return Credentials{}, false
}

// Write persists all three credential fields into the chosen scope and clears
// the same keys from the other scope, so a stale session can never linger
// next to a fresh one.
func (s *Store) Write(accessToken, refreshToken, userData string, kind ScopeKind) {
	sc := s.scope(kind)
	sc.Set(KeyAuthToken, accessToken)
	sc.Set(KeyRefreshToken, refreshToken)
	sc.Set(KeyUserData, userData)
	oth := s.other(kind)
	for _, key := range credentialKeys {
		oth.Delete(key)
	}
}

// SetUserData rewrites only the persisted user record in the given scope.
func (s *Store) SetUserData(userData string, kind ScopeKind) {
	s.scope(kind).Set(KeyUserData, userData)
}

// Clear removes every credential key from both scopes. Safe to call when
// nothing is stored.
func (s *Store) Clear() {
	for _, sc := range []Scope{s.durable, s.ephemeral} {
		for _, key := range credentialKeys {
			sc.Delete(key)
		}
	}
}

// MigrateLegacyKeys runs once at startup. If a scope has no canonical token
// but does have one under a legacy alias, the alias value is rewritten
// canonically; aliases are removed from both scopes either way.
func (s *Store) MigrateLegacyKeys() {
	for _, sc := range []Scope{s.durable, s.ephemeral} {
		if sc.Get(KeyAuthToken) == "" {
			for _, alias := range legacyTokenAliases {
				if v := sc.Get(alias); v != "" {
					sc.Set(KeyAuthToken, v)
					break
				}
			}
		}
		if sc.Get(KeyUserData) == "" {
			for _, alias := range legacyUserAliases {
				if v := sc.Get(alias); v != "" {
					sc.Set(KeyUserData, v)
					break
				}
			}
		}
		for _, alias := range legacyTokenAliases {
			sc.Delete(alias)
		}
		for _, alias := range legacyUserAliases {
			sc.Delete(alias)
		}
	}
}

// Verification state lives in the durable scope so a pending attempt
// survives a restart mid-signup.

func (s *Store) SaveVerificationInfo(phone, email string) {
	if phone != "" {
		s.durable.Set(KeyVerificationPhone, phone)
		s.durable.Delete(KeyVerificationEmail)
	} else {
		s.durable.Set(KeyVerificationEmail, email)
		s.durable.Delete(KeyVerificationPhone)
	}
	s.durable.Delete(KeyVerificationToken)
}

func (s *Store) SetVerificationToken(token string) {
	s.durable.Set(KeyVerificationToken, token)
}

func (s *Store) ReadVerification() (phone, email, token string) {
	return s.durable.Get(KeyVerificationPhone),
		s.durable.Get(KeyVerificationEmail),
		s.durable.Get(KeyVerificationToken)
}

func (s *Store) ClearVerification() {
	for _, key := range verificationKeys {
		s.durable.Delete(key)
	}
}
