// Package oauth implements the WHOOP OAuth 2.0 authorization-code flow: building
// the authorize URL, receiving the code on a loopback callback, and exchanging
// codes and refresh tokens at the token endpoint.
package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// AuthURL is the WHOOP authorization endpoint.
	AuthURL = "https://api.prod.whoop.com/oauth/oauth2/auth"

	// TokenURL is the WHOOP token endpoint.
	TokenURL = "https://api.prod.whoop.com/oauth/oauth2/token"

	// DefaultRedirectURI must be registered for the WHOOP app.
	DefaultRedirectURI = "http://127.0.0.1:8123/callback"

	// DefaultCallbackTimeout bounds how long WaitForCode waits for the browser.
	DefaultCallbackTimeout = 120 * time.Second
)

// Scopes requested by the CLI. "offline" is what makes WHOOP issue a refresh token.
var Scopes = []string{
	"offline",
	"read:profile",
	"read:body_measurement",
	"read:cycles",
	"read:recovery",
	"read:sleep",
}

// DefaultScope is Scopes joined with spaces.
var DefaultScope = strings.Join(Scopes, " ")

// GenerateState returns 16 random bytes, hex encoded.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// AuthorizeParams are the inputs of AuthorizeURL.
type AuthorizeParams struct {
	AuthURL     string // defaults to AuthURL
	ClientID    string
	RedirectURI string
	State       string
	Scope       string // omitted when empty
}

// AuthorizeURL builds the URL the user opens to grant access.
func AuthorizeURL(p AuthorizeParams) (string, error) {
	base := p.AuthURL
	if base == "" {
		base = AuthURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("state", p.State)
	if p.Scope != "" {
		q.Set("scope", p.Scope)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
