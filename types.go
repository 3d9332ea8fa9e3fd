package authclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/authclient/session"
)

// Profile is the user record held by the session.
type Profile = session.Profile

// Request describes one backend call. It is replayed verbatim when the
// coordinator retries after a refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent as-is when it is an io.Reader or []byte and JSON-encoded
	// otherwise. A reader is drained once, before the first attempt, so a
	// retry sends the same bytes.
	Body any
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return fmt.Errorf("%w: method required", ErrInvalidRequest)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("%w: path must start with /", ErrInvalidRequest)
	}
	return nil
}

// replayable returns r with a reader body buffered into memory.
func (r Request) replayable() (Request, error) {
	reader, ok := r.Body.(io.Reader)
	if !ok {
		return r, nil
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return r, fmt.Errorf("%w: read body: %w", ErrInvalidRequest, err)
	}
	r.Body = raw
	return r, nil
}

// Response is a successful (2xx) backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := decodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// LoginResult is the body of a successful POST /auth/login.
type LoginResult struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Gender       string `json:"gender"`
	Image        string `json:"image"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Profile picks the user fields out of the login body.
func (r LoginResult) Profile() Profile {
	return Profile{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		Image:     r.Image,
	}
}

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ExpiresInMins int    `json:"expiresInMins,omitempty"`
}

type refreshRequest struct {
	RefreshToken  string `json:"refreshToken"`
	ExpiresInMins int    `json:"expiresInMins,omitempty"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func decodeJSON(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty body")
	}
	return json.Unmarshal(data, v)
}
