package registry

import "time"

// Session is an active pairing of exactly two distinct connections.
// Once ended it is never reactivated; a re-match creates a new session
// with a fresh id.
type Session struct {
	ID        string
	A, B      string // participant connection ids, unordered
	CreatedAt time.Time
	Ended     bool
}

// Has reports whether the given connection id is a participant.
func (s *Session) Has(connID string) bool {
	return s.A == connID || s.B == connID
}

// Other returns the partner of the given participant. ok is false when
// connID is not a participant at all.
func (s *Session) Other(connID string) (string, bool) {
	switch connID {
	case s.A:
		return s.B, true
	case s.B:
		return s.A, true
	default:
		return "", false
	}
}

// Participants returns both connection ids.
func (s *Session) Participants() (string, string) {
	return s.A, s.B
}
