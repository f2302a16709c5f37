package authgate

import "time"

// Session binds a duplex connection to the token and identity of its
// last successful login. It belongs to exactly one connection and is
// not safe for concurrent use. The binding is never re-validated on its
// own: every protected call re-verifies the bound token.
type Session struct {
	token    string
	identity Identity
	boundAt  time.Time
}

// NewSession returns an unauthenticated session
func NewSession() *Session {
	return &Session{}
}

// Bind attaches token and identity to the session
func (s *Session) Bind(token string, identity Identity) {
	s.token = token
	s.identity = identity
	s.boundAt = time.Now()
}

// Token returns the bound access token, if any
func (s *Session) Token() string {
	return s.token
}

// Identity returns the identity bound at login
func (s *Session) Identity() Identity {
	return s.identity
}

// BoundAt is when the current binding was made
func (s *Session) BoundAt() time.Time {
	return s.boundAt
}

// IsAuthenticated reports whether a login is bound
func (s *Session) IsAuthenticated() bool {
	return s.token != "" && s.identity != nil
}

// Clear drops the binding
func (s *Session) Clear() {
	s.token = ""
	s.identity = nil
	s.boundAt = time.Time{}
}

// Params builds call params carrying the bound token
func (s *Session) Params(query map[string]string) *Params {
	return &Params{
		Provider:    ProviderSocket,
		AccessToken: s.token,
		Query:       query,
	}
}
