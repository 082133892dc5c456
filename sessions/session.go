package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jrsteele09/prompting-recipe/users"
)

// State is the session controller's lifecycle state.
//
//	Unauthenticated -> Restoring       stored tokens found at startup
//	Restoring       -> Authenticated   profile refetch succeeded
//	Restoring       -> Unauthenticated nothing stored, or refetch failed
//	Authenticated   -> Refreshing      an authorised request was rejected
//	Refreshing      -> Authenticated   refresh succeeded
//	Refreshing      -> Unauthenticated refresh failed, or logout
//	Authenticated   -> Unauthenticated logout
//
// Unauthenticated and Authenticated are stable. Restoring and Refreshing are
// transient and resolve to one of the stable states.
type State int

const (
	Unauthenticated State = iota
	Restoring
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transient reports whether the state blocks dependent UI until it resolves.
func (s State) Transient() bool {
	return s == Restoring || s == Refreshing
}

var transitions = map[State]map[State]bool{
	Unauthenticated: {
		Unauthenticated: true, // error updates, repeated logout
		Restoring:       true,
		Authenticated:   true, // login, OAuth callback
	},
	Restoring: {
		Restoring:       true,
		Authenticated:   true,
		Unauthenticated: true,
		Refreshing:      true, // profile refetch hit an expired access token
	},
	Authenticated: {
		Authenticated:   true, // profile refetch, re-login, error updates
		Refreshing:      true,
		Unauthenticated: true,
	},
	Refreshing: {
		Refreshing:      true, // error updates
		Authenticated:   true,
		Unauthenticated: true,
		Restoring:       true, // refresh finished while the startup restore is still waiting
	},
}

// CanTransition reports whether the controller may move from one state to another.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

var (
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrInconsistent      = errors.New("inconsistent session snapshot")
)

// Snapshot is the read-only session view handed to the UI layer. It never
// carries the refresh token. User is shared between snapshots and must be
// replaced, never modified in place.
type Snapshot struct {
	State        State          `json:"state"`
	AccessToken  string         `json:"-"`
	AccessExpiry time.Time      `json:"accessExpiry,omitzero"`
	User         *users.Profile `json:"user"`
	IsLoading    bool           `json:"isLoading"`
	Error        string         `json:"error,omitempty"`
	// Epoch increments every time a session begins or ends. Work started in
	// one epoch must not be applied in another.
	Epoch uint64 `json:"-"`
}

// IsAuthenticated is true iff both an access token and a user are present.
func (s Snapshot) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

// MarshalJSON adds the derived isAuthenticated flag.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	return marshalWithAuthenticated(plain(s), s.IsAuthenticated())
}

// Validate checks the snapshot against its state.
func (s Snapshot) Validate() error {
	switch s.State {
	case Unauthenticated:
		if s.AccessToken != "" || s.User != nil {
			return fmt.Errorf("%w: %s snapshot holds credentials", ErrInconsistent, s.State)
		}
	case Authenticated, Refreshing:
		if !s.IsAuthenticated() {
			return fmt.Errorf("%w: %s snapshot without access token and user", ErrInconsistent, s.State)
		}
	case Restoring:
		// Optimistic: cached credentials may or may not be present yet.
	default:
		return fmt.Errorf("%w: unknown state %d", ErrInconsistent, int(s.State))
	}
	if s.IsLoading && s.State != Restoring {
		return fmt.Errorf("%w: loading outside of restore", ErrInconsistent)
	}
	return nil
}

func marshalWithAuthenticated(v any, authenticated bool) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["isAuthenticated"] = json.RawMessage(strconv.FormatBool(authenticated))
	return json.Marshal(fields)
}
