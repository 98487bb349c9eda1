// Package token keeps a WHOOP access token usable: it hands out the stored token,
// refreshes it on demand, and collapses concurrent refreshes into one call to
// the token endpoint.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
	"github.com/Sternrassler/whoop-cli/pkg/credentials"
	"github.com/Sternrassler/whoop-cli/pkg/logging"
	"github.com/Sternrassler/whoop-cli/pkg/metrics"
	"github.com/Sternrassler/whoop-cli/pkg/oauth"
)

var (
	refreshesTotal = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "whoop_token_refreshes_total",
			Help: "Refresh-token exchanges by result",
		},
		[]string{"result"}, // success, failure, persist_failure
	)

	refreshSharedTotal = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "whoop_token_refresh_shared_total",
			Help: "Callers that joined an in-flight refresh instead of starting one",
		},
	)
)

const refreshKey = "refresh"

// Refresher exchanges a refresh token for a new access token.
// *oauth.Exchanger satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*oauth.Token, error)
}

// PersistFunc stores the credential after a successful refresh.
type PersistFunc func(ctx context.Context, cred credentials.Credential) error

// Config configures a Manager.
type Config struct {
	Refresher Refresher

	// Persist is called after every successful refresh. Optional.
	Persist PersistFunc
}

// Manager owns the mutable credential for the lifetime of one operation.
type Manager struct {
	mu        sync.Mutex
	cred      *credentials.Credential
	refresher Refresher
	persist   PersistFunc
	group     singleflight.Group
	logger    zerolog.Logger
}

// NewManager creates a Manager for cred. The Manager updates cred in place.
func NewManager(cred *credentials.Credential, cfg Config) (*Manager, error) {
	if cred == nil {
		return nil, errors.New("credential is required")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("refresher is required")
	}
	return &Manager{
		cred:      cred,
		refresher: cfg.Refresher,
		persist:   cfg.Persist,
		logger:    logging.NewLogger("token"),
	}, nil
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() credentials.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cred
}

// EnsureAccessToken returns the stored access token, refreshing only when none is set.
func (m *Manager) EnsureAccessToken(ctx context.Context) (string, error) {
	cred := m.Credential()
	if err := cred.Validate(); err != nil {
		return "", err
	}
	if cred.AccessToken != "" {
		return cred.AccessToken, nil
	}

	m.logger.Debug().Msg("No access token stored, refreshing")
	return m.refreshShared(ctx, func(string) bool { return true })
}

// ForceRefresh exchanges the refresh token regardless of the stored access token.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	return m.refreshShared(ctx, func(string) bool { return false })
}

// RefreshRejected is called after the API rejected the token `rejected`. When
// another caller already replaced it, the newer token is returned without a
// network call.
func (m *Manager) RefreshRejected(ctx context.Context, rejected string) (string, error) {
	if err := m.Credential().Validate(); err != nil {
		return "", err
	}
	return m.refreshShared(ctx, func(current string) bool { return current != rejected })
}

// refreshShared joins or starts the single in-flight refresh. reuse decides,
// inside the flight, whether the current access token can be returned as is.
func (m *Manager) refreshShared(ctx context.Context, reuse func(current string) bool) (string, error) {
	leader := false
	v, err, shared := m.group.Do(refreshKey, func() (any, error) {
		leader = true
		if current := m.Credential().AccessToken; current != "" && reuse(current) {
			return current, nil
		}
		return m.refresh(ctx)
	})
	if shared && !leader {
		refreshSharedTotal.Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	cred := m.Credential()
	if err := cred.Validate(); err != nil {
		return "", err
	}

	tok, err := m.refresher.Refresh(ctx, cred.RefreshToken, cred.ClientID, cred.ClientSecret)
	if err != nil {
		refreshesTotal.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Msg("Token refresh failed")
		return "", err
	}
	if tok == nil || tok.AccessToken == "" {
		refreshesTotal.WithLabelValues("failure").Inc()
		m.logger.Warn().Msg("Token refresh returned no access token")
		return "", apierror.TokenExchange(0, oauth.TokenURL, "Token refresh succeeded but no access token was returned.", nil)
	}

	m.mu.Lock()
	m.cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		m.cred.RefreshToken = tok.RefreshToken
	}
	updated := *m.cred
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist(ctx, updated); err != nil {
			refreshesTotal.WithLabelValues("persist_failure").Inc()
			m.logger.Error().Err(err).Msg("Failed to persist refreshed credential")
			return "", fmt.Errorf("persist refreshed credential: %w", err)
		}
	}

	refreshesTotal.WithLabelValues("success").Inc()
	m.logger.Info().
		Bool("refresh_token_rotated", tok.RefreshToken != "").
		Msg("Access token refreshed")

	return tok.AccessToken, nil
}
