package auth

import "time"

// expiresSoonLead is how far ahead of the expiry ExpiresSoon looks.
const expiresSoonLead = 5 * time.Minute

// Credentials are the tokens issued by a successful authorization-code
// exchange. A Credentials value is never mutated after construction; a
// refresh produces a new instance.
type Credentials struct {
	// AccessToken is the bearer credential used to call the API.
	AccessToken string `json:"access_token"`
	// RefreshToken can obtain a new access token without re-prompting the
	// user. Empty when the provider did not grant offline access.
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is the absolute expiry of the access token. Nil means the
	// token does not expire.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewCredentials constructs credentials holding only an access token.
// Such credentials are treated as never expiring.
func NewCredentials(accessToken string) *Credentials {
	return &Credentials{AccessToken: accessToken}
}

// IsExpired reports whether the access token has expired. Credentials
// without an expiry never expire.
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*c.ExpiresAt)
}

// ExpiresSoon reports whether the access token expires within the next
// five minutes, the window in which callers should refresh preemptively.
func (c *Credentials) ExpiresSoon() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !time.Now().Add(expiresSoonLead).Before(*c.ExpiresAt)
}

// CanRefresh reports whether a refresh token is available.
func (c *Credentials) CanRefresh() bool {
	return c.RefreshToken != ""
}
