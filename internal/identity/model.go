package identity

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMethod tags the identity space an externally-facing identifier lives in.
type AuthMethod string

const (
	// AuthMethodLocal marks accounts keyed directly by the internal identifier.
	AuthMethodLocal AuthMethod = "local"
	// AuthMethodGoogle marks accounts issued by Google sign-in.
	AuthMethodGoogle AuthMethod = "google"
	// AuthMethodDiscord marks accounts issued by Discord OAuth.
	AuthMethodDiscord AuthMethod = "discord"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidAuthMethod indicates a value outside the closed auth method set.
	ErrInvalidAuthMethod = errors.New("identity: invalid auth method")
	// ErrInvalidInternalID indicates an internal identifier that is empty or exceeds storage bounds.
	ErrInvalidInternalID = errors.New("identity: invalid internal id")
	// ErrUserNotFound indicates the lookup service holds no user for the requested internal id.
	ErrUserNotFound = errors.New("identity: user not found")
)

// ParseAuthMethod validates raw input against the closed auth method set.
func ParseAuthMethod(rawInput string) (AuthMethod, error) {
	switch AuthMethod(strings.ToLower(strings.TrimSpace(rawInput))) {
	case AuthMethodLocal:
		return AuthMethodLocal, nil
	case AuthMethodGoogle:
		return AuthMethodGoogle, nil
	case AuthMethodDiscord:
		return AuthMethodDiscord, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAuthMethod, rawInput)
	}
}

// String returns the wire tag for the auth method.
func (m AuthMethod) String() string {
	return string(m)
}

// IsLocal reports whether the method refers to the internal identifier space.
func (m AuthMethod) IsLocal() bool {
	return m == AuthMethodLocal
}

// ExternalProviders lists every auth method backed by an external provider.
func ExternalProviders() []AuthMethod {
	return []AuthMethod{AuthMethodGoogle, AuthMethodDiscord}
}

// InternalID represents a validated internal user identifier.
type InternalID string

// NewInternalID validates raw input and returns an InternalID.
func NewInternalID(rawInput string) (InternalID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidInternalID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidInternalID, maxIdentifierLength)
	}
	return InternalID(trimmed), nil
}

// String returns the underlying string identifier.
func (id InternalID) String() string {
	return string(id)
}

// LinkedAccount binds one provider-issued account to its owning user.
// ProviderAccountID is unique within a provider, not globally.
type LinkedAccount struct {
	Provider          AuthMethod
	ProviderAccountID string
	UserID            string
}

// User is a local account record together with its linked external accounts.
// LinkedAccounts preserves creation order; the first element is the account
// used at signup and is authoritative for projection.
type User struct {
	InternalID     string
	DisplayName    string
	LinkedAccounts []LinkedAccount
}

// Descriptor is the canonical identity presented to downstream consumers.
// Computed on demand, never persisted.
type Descriptor struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	AuthMethod  AuthMethod `json:"auth_method"`
}
