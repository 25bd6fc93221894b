package auth

import (
	"fmt"
	"net/http"
	"time"
)

const (
	// StateCookieName is the name of the OIDC state cookie.
	StateCookieName = "l2vpn_oidc_state"
	// StateCookieMaxAge is how long a login attempt may take, in seconds.
	StateCookieMaxAge = 5 * 60
)

// StateData holds the state and nonce for an OIDC login, plus where to
// send the user afterwards.
type StateData struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	ReturnTo  string    `json:"return_to,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StateStore keeps the OIDC state and nonce in an encrypted cookie.
type StateStore struct {
	sealer *sealer
}

// NewStateStore creates a state store. key must be 32 bytes.
func NewStateStore(key []byte, secure bool) (*StateStore, error) {
	s, err := newSealer(key, secure)
	if err != nil {
		return nil, err
	}
	return &StateStore{sealer: s}, nil
}

// Generate creates a state/nonce pair and sets the cookie.
func (ss *StateStore) Generate(w http.ResponseWriter, returnTo string) (*StateData, error) {
	state, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	data := &StateData{
		State:     state,
		Nonce:     nonce,
		ReturnTo:  returnTo,
		ExpiresAt: time.Now().Add(StateCookieMaxAge * time.Second),
	}
	if err := ss.sealer.write(w, StateCookieName, data, StateCookieMaxAge); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate checks the callback's state against the cookie.
func (ss *StateStore) Validate(r *http.Request, state string) (*StateData, error) {
	var data StateData
	if err := ss.sealer.read(r, StateCookieName, &data); err != nil {
		return nil, err
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, fmt.Errorf("state expired")
	}
	if !ConstantTimeCompare(data.State, state) {
		return nil, fmt.Errorf("state mismatch")
	}
	return &data, nil
}

// Clear clears the state cookie.
func (ss *StateStore) Clear(w http.ResponseWriter) {
	ss.sealer.clear(w, StateCookieName)
}
