package domain

import "time"

const (
	GrantPassword = "password"

	TokenTypeBearer = "Bearer"
)

// Token is an issued access token. Role is a snapshot taken at issue time.
type Token struct {
	Value     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ClientID  string    `json:"client_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Identity returns the identity bound to the token.
func (t *Token) Identity() Identity {
	return Identity{UserID: t.UserID, Username: t.Username, Role: t.Role}
}

// Client is an OAuth-style calling application.
type Client struct {
	ID            string
	SecretHash    string
	AllowedGrants []string
}

// AllowsGrant reports whether the client may use the given grant type.
func (c *Client) AllowsGrant(grant string) bool {
	for _, g := range c.AllowedGrants {
		if g == grant {
			return true
		}
	}
	return false
}

// Session binds an identity to a server-side record keyed by an opaque id.
type Session struct {
	ID        string    `json:"-"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}
