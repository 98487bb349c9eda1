package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Token is a successful token endpoint response. An empty RefreshToken means
// the endpoint did not rotate it.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Config holds Exchanger configuration.
type Config struct {
	// TokenURL defaults to TokenURL.
	TokenURL string

	// HTTPClient defaults to an *http.Client with a 30s timeout.
	HTTPClient HTTPDoer
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		TokenURL:   TokenURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Exchanger talks to the token endpoint.
type Exchanger struct {
	tokenURL string
	http     HTTPDoer
	logger   zerolog.Logger
}

// NewExchanger creates an Exchanger, filling unset Config fields with defaults.
func NewExchanger(cfg Config) (*Exchanger, error) {
	def := DefaultConfig()
	if cfg.TokenURL == "" {
		cfg.TokenURL = def.TokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	if _, err := url.ParseRequestURI(cfg.TokenURL); err != nil {
		return nil, fmt.Errorf("invalid token url %q: %w", cfg.TokenURL, err)
	}

	return &Exchanger{
		tokenURL: cfg.TokenURL,
		http:     cfg.HTTPClient,
		logger:   log.With().Str("component", "oauth").Logger(),
	}, nil
}

// ExchangeCode trades an authorization code for tokens.
func (e *Exchanger) ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) (*Token, error) {
	return e.fetchToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"redirect_uri":  {redirectURI},
	})
}

// Refresh trades a refresh token for a new access token.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*Token, error) {
	return e.fetchToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})
}

func (e *Exchanger) fetchToken(ctx context.Context, form url.Values) (*Token, error) {
	grant := form.Get("grant_type")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, apierror.TokenExchange(0, e.tokenURL, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, "read response body", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		e.logger.Warn().Str("grant_type", grant).Int("status", resp.StatusCode).Msg("Token endpoint returned non-JSON body")
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, "expected JSON response", nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Warn().Str("grant_type", grant).Int("status", resp.StatusCode).Msg("Token request rejected")
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, compactJSON(body), nil)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, "response is missing required access_token", nil)
	}
	if access, ok := obj["access_token"].(string); !ok || access == "" {
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, "response is missing required access_token", nil)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, apierror.TokenExchange(resp.StatusCode, e.tokenURL, "decode token response", err)
	}

	e.logger.Debug().
		Str("grant_type", grant).
		Bool("refresh_token_rotated", tok.RefreshToken != "").
		Int("expires_in", tok.ExpiresIn).
		Msg("Token exchange succeeded")

	return &tok, nil
}

func compactJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}
