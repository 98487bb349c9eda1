// Package credentials holds the OAuth client credential and the stores that
// persist it between CLI invocations.
package credentials

import (
	"context"
	"strings"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
)

// Credential is the OAuth state of a WHOOP login. Empty strings mean absent.
type Credential struct {
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// document is the on-disk / in-Redis layout.
type document struct {
	OAuth *Credential `json:"oauth,omitempty"`
}

// Store persists a Credential.
type Store interface {
	// Load returns the stored credential, or a zero Credential when nothing is stored.
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	// Clear removes everything the store holds.
	Clear(ctx context.Context) error
	// Location describes where the credential lives (file path or redis key).
	Location() string
}

// Validate reports a configuration error unless the refresh token and client
// credentials are all present.
func (c Credential) Validate() error {
	if c.RefreshToken == "" || c.ClientID == "" || c.ClientSecret == "" {
		return apierror.Configuration("Missing OAuth configuration. Run `whoop login` first.")
	}
	return nil
}

// LoggedIn reports whether both tokens are present.
func (c Credential) LoggedIn() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Mask hides the middle of a secret, keeping 4 leading and 2 trailing characters.
func Mask(value string) string {
	return MaskN(value, 4, 2)
}

// MaskN hides the middle of value, keeping keepStart leading and keepEnd trailing characters.
func MaskN(value string, keepStart, keepEnd int) string {
	if value == "" {
		return "(not set)"
	}
	runes := []rune(value)
	if len(runes) <= keepStart+keepEnd {
		return strings.Repeat("*", len(runes))
	}
	middle := strings.Repeat("*", len(runes)-keepStart-keepEnd)
	return string(runes[:keepStart]) + middle + string(runes[len(runes)-keepEnd:])
}
