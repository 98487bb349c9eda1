package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
	"github.com/Sternrassler/whoop-cli/pkg/credentials"
	"github.com/Sternrassler/whoop-cli/pkg/oauth"
)

type fakeRefresher struct {
	mu        sync.Mutex
	calls     int
	delay     time.Duration
	token     oauth.Token
	err       error
	refreshed []string
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*oauth.Token, error) {
	f.mu.Lock()
	f.calls++
	f.refreshed = append(f.refreshed, refreshToken)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	tok := f.token
	return &tok, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func completeCredential() *credentials.Credential {
	return &credentials.Credential{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-1",
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, Config{Refresher: &fakeRefresher{}})
	assert.Error(t, err)

	_, err = NewManager(completeCredential(), Config{})
	assert.Error(t, err)
}

func TestEnsureAccessToken_UsesStoredToken(t *testing.T) {
	cred := completeCredential()
	cred.AccessToken = "stored"
	refresher := &fakeRefresher{}

	m, err := NewManager(cred, Config{Refresher: refresher})
	require.NoError(t, err)

	tok, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
	assert.Equal(t, 0, refresher.Calls())
}

func TestEnsureAccessToken_RefreshesAndPersists(t *testing.T) {
	cred := completeCredential()
	refresher := &fakeRefresher{token: oauth.Token{AccessToken: "new-access", RefreshToken: "refresh-2"}}

	var persisted []credentials.Credential
	m, err := NewManager(cred, Config{
		Refresher: refresher,
		Persist: func(_ context.Context, c credentials.Credential) error {
			persisted = append(persisted, c)
			return nil
		},
	})
	require.NoError(t, err)

	tok, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.Equal(t, []string{"refresh-1"}, refresher.refreshed)

	// credential is updated in place
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "refresh-2", cred.RefreshToken)

	require.Len(t, persisted, 1)
	assert.Equal(t, *cred, persisted[0])
}

func TestEnsureAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	refresher := &fakeRefresher{
		delay: 50 * time.Millisecond,
		token: oauth.Token{AccessToken: "new-access"},
	}
	m, err := NewManager(completeCredential(), Config{Refresher: refresher})
	require.NoError(t, err)

	before := testutil.ToFloat64(refreshesTotal.WithLabelValues("success"))

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.EnsureAccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.Calls(), "exactly one token endpoint call")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i])
	}
	assert.Equal(t, before+1, testutil.ToFloat64(refreshesTotal.WithLabelValues("success")))
}

func TestForceRefresh_RetainsRefreshTokenWhenOmitted(t *testing.T) {
	cred := completeCredential()
	cred.AccessToken = "old-access"
	refresher := &fakeRefresher{token: oauth.Token{AccessToken: "new-access"}}

	m, err := NewManager(cred, Config{Refresher: refresher})
	require.NoError(t, err)

	tok, err := m.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.Equal(t, "refresh-1", m.Credential().RefreshToken)
	assert.Equal(t, 1, refresher.Calls())
}

func TestForceRefresh_PersistFailureIsFatal(t *testing.T) {
	persistErr := errors.New("disk full")
	m, err := NewManager(completeCredential(), Config{
		Refresher: &fakeRefresher{token: oauth.Token{AccessToken: "new-access"}},
		Persist: func(context.Context, credentials.Credential) error {
			return persistErr
		},
	})
	require.NoError(t, err)

	_, err = m.ForceRefresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, persistErr)
}

func TestForceRefresh_ExchangeFailure(t *testing.T) {
	exchangeErr := apierror.TokenExchange(400, oauth.TokenURL, `{"error":"invalid_grant"}`, nil)
	cred := completeCredential()
	cred.AccessToken = "old"

	m, err := NewManager(cred, Config{Refresher: &fakeRefresher{err: exchangeErr}})
	require.NoError(t, err)

	before := testutil.ToFloat64(refreshesTotal.WithLabelValues("failure"))

	_, err = m.ForceRefresh(context.Background())
	assert.Equal(t, apierror.KindTokenExchange, apierror.KindOf(err))
	assert.Equal(t, "old", m.Credential().AccessToken, "credential untouched on failure")
	assert.Equal(t, before+1, testutil.ToFloat64(refreshesTotal.WithLabelValues("failure")))
}

func TestEnsureAccessToken_EmptyRefreshedTokenIsError(t *testing.T) {
	var persisted int
	refresher := &fakeRefresher{token: oauth.Token{AccessToken: "", RefreshToken: "refresh-2"}}
	m, err := NewManager(completeCredential(), Config{
		Refresher: refresher,
		Persist: func(context.Context, credentials.Credential) error {
			persisted++
			return nil
		},
	})
	require.NoError(t, err)

	tok, err := m.EnsureAccessToken(context.Background())
	require.Error(t, err)
	assert.Empty(t, tok)
	assert.Equal(t, apierror.KindTokenExchange, apierror.KindOf(err))
	assert.Contains(t, err.Error(), "no access token was returned")
	assert.Equal(t, 1, refresher.Calls())
	assert.Equal(t, 0, persisted)
	assert.Equal(t, "refresh-1", m.Credential().RefreshToken, "credential untouched")
}

func TestMissingConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cred credentials.Credential
	}{
		{"no refresh token", credentials.Credential{ClientID: "id", ClientSecret: "s", AccessToken: "a"}},
		{"no client id", credentials.Credential{ClientSecret: "s", RefreshToken: "r"}},
		{"no client secret", credentials.Credential{ClientID: "id", RefreshToken: "r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{token: oauth.Token{AccessToken: "x"}}
			cred := tt.cred
			m, err := NewManager(&cred, Config{Refresher: refresher})
			require.NoError(t, err)

			_, err = m.EnsureAccessToken(context.Background())
			assert.Equal(t, apierror.KindConfiguration, apierror.KindOf(err))

			_, err = m.ForceRefresh(context.Background())
			assert.Equal(t, apierror.KindConfiguration, apierror.KindOf(err))

			_, err = m.RefreshRejected(context.Background(), "a")
			assert.Equal(t, apierror.KindConfiguration, apierror.KindOf(err))

			assert.Equal(t, 0, refresher.Calls())
		})
	}
}

func TestRefreshRejected(t *testing.T) {
	cred := completeCredential()
	cred.AccessToken = "current"
	refresher := &fakeRefresher{token: oauth.Token{AccessToken: "fresh"}}

	m, err := NewManager(cred, Config{Refresher: refresher})
	require.NoError(t, err)

	// an older token was rejected; the stored one is already newer
	tok, err := m.RefreshRejected(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "current", tok)
	assert.Equal(t, 0, refresher.Calls())

	// the stored token itself was rejected
	tok, err = m.RefreshRejected(context.Background(), "current")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, refresher.Calls())
}
