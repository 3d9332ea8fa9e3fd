package session

// Profile is the user record kept alongside the tokens.
type Profile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

// Clone returns a copy of p, or nil when p is nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Session is a point-in-time view of the credential store.
type Session struct {
	AccessToken  string
	RefreshToken string
	Profile      *Profile
}

// Empty reports whether no field is set.
func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.Profile == nil
}

// Authenticated reports whether an access token is present.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}
