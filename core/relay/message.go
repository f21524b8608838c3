// Package relay implements the message relay core: a connection registry
// with snapshot broadcast, per-connection lifecycle management, the ingress
// path (validate, persist, publish), and the singleton fan-out loop that
// drains the relay queue into the registry.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxBodyLength caps the chat message body.
	MaxBodyLength = 2000

	// MaxUsernameLength caps the display name.
	MaxUsernameLength = 64
)

// Identity is the opaque authenticated-identity record supplied by the
// external auth collaborator. The relay never validates it, only attaches it.
type Identity struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Message is a persisted chat message. The ID is assigned exactly once at
// ingress, before persistence or publication; the struct is immutable after
// construction.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	GithubURL string    `json:"github_url,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbound is a single client frame. Clients never set id or created_at.
type Inbound struct {
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	GithubURL string `json:"github_url"`
	Body      string `json:"body"`
}

// NewMessage constructs a Message from an inbound frame, stamping the server
// identifier and creation time. A resolved identity overrides any
// client-supplied author fields; anonymous connections fall back to them.
func NewMessage(ident *Identity, in Inbound) Message {
	msg := Message{
		ID:        uuid.New(),
		Username:  in.Username,
		Avatar:    in.Avatar,
		GithubURL: in.GithubURL,
		Body:      in.Body,
		CreatedAt: time.Now().UTC(),
	}
	if ident != nil {
		msg.Username = ident.Login
		msg.Avatar = ident.AvatarURL
		msg.GithubURL = ident.HTMLURL
	}
	return msg
}

// ParseInbound decodes and validates one raw client frame.
func ParseInbound(payload []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := in.Validate(); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return in, nil
}

// Validate checks field constraints that apply regardless of identity:
// the body must be present and bounded, the username bounded when supplied.
func (in Inbound) Validate() error {
	if in.Body == "" {
		return ErrEmptyBody
	}
	if len(in.Body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	if len(in.Username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// validateAuthor runs after identity attachment: every persisted message
// must carry an author name.
func validateAuthor(msg Message) error {
	if msg.Username == "" {
		return ErrMissingUsername
	}
	if len(msg.Username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}
