package session

import "sync"

// Store holds the current credentials.
//
// Reads never block on network activity. Callers that suspend (waiting on
// I/O or on the refresh gate) must read again after resuming rather than
// reuse a value captured before the wait.
type Store struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	profile      *Profile
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// SetCredentials overwrites the access token. The refresh token and profile
// are only replaced when a non-empty value is supplied.
func (s *Store) SetCredentials(accessToken, refreshToken string, profile *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	if profile != nil {
		s.profile = profile.Clone()
	}
}

// SetProfile replaces only the profile.
func (s *Store) SetProfile(profile *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile.Clone()
}

// Replace overwrites all fields with sess, used when restoring persisted state.
func (s *Store) Replace(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = sess.AccessToken
	s.refreshToken = sess.RefreshToken
	s.profile = sess.Profile.Clone()
}

// Clear resets every field.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.profile = nil
}

// AccessToken returns the stored access token.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Profile returns a copy of the stored profile.
func (s *Store) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// Snapshot returns a consistent copy of all fields.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		Profile:      s.profile.Clone(),
	}
}
