package domain

import "fmt"

// SessionId is a non-empty opaque string naming a remote execution session.
type SessionId struct {
	value string
}

// NewSessionId validates and constructs a SessionId.
func NewSessionId(value string) (SessionId, error) {
	if value == "" {
		return SessionId{}, fmt.Errorf("session id: must not be empty")
	}
	return SessionId{value: value}, nil
}

// String returns the session id's textual form.
func (s SessionId) String() string {
	return s.value
}
