package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProviderType identifies how a user signed in.
type ProviderType string

const (
	ProviderLocal  ProviderType = "local"
	ProviderGoogle ProviderType = "google"
	ProviderKakao  ProviderType = "kakao"
)

// ID is a user identifier. The API returns numeric ids for local accounts and
// string ids for some social accounts, so both JSON forms are accepted and the
// value is kept in its textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids back as numbers so a cached profile keeps the
// server's shape.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Profile is the cached user record returned by /auth/login, /auth/profile and
// the OAuth callback. Fields the client doesn't model are kept in Extra so the
// record round-trips through storage unchanged.
type Profile struct {
	ID       ID           `json:"id"`                 // Unique identifier for the user
	Name     string       `json:"name,omitempty"`     // Display name
	Email    string       `json:"email,omitempty"`    // User's email address
	LoginID  string       `json:"loginId,omitempty"`  // Local login id (absent for social accounts)
	Provider ProviderType `json:"provider,omitempty"` // How the user signed up

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = map[string]struct{}{
	"id": {}, "name": {}, "email": {}, "loginId": {}, "provider": {},
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range knownFields {
		delete(all, k)
	}
	if len(all) > 0 {
		base.Extra = all
	}

	*p = Profile(base)
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	known, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Extra)+len(knownFields))
	for k, v := range p.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Validate checks the fields the session layer depends on.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is missing")
	}
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("profile id is required")
	}
	return nil
}

// DisplayName returns the best available label for the user.
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return ""
	case p.Name != "":
		return p.Name
	case p.LoginID != "":
		return p.LoginID
	case p.Email != "":
		return p.Email
	default:
		return string(p.ID)
	}
}

// Parse decodes and validates a JSON profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
