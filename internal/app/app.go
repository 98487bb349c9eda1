// Package app wires the WHOOP packages together for the CLI: it selects the
// credential store, builds the token exchanger, and assembles a Session
// (token manager, API client, service) per command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
	"github.com/Sternrassler/whoop-cli/pkg/client"
	"github.com/Sternrassler/whoop-cli/pkg/credentials"
	"github.com/Sternrassler/whoop-cli/pkg/logging"
	"github.com/Sternrassler/whoop-cli/pkg/oauth"
	"github.com/Sternrassler/whoop-cli/pkg/token"
	"github.com/Sternrassler/whoop-cli/pkg/whoop"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvConfigPath  = "WHOOP_CONFIG_PATH"
	EnvStoreURL    = "WHOOP_STORE_URL"
	EnvRedisKey    = "WHOOP_REDIS_KEY"
	EnvAPIBaseURL  = "WHOOP_API_BASE_URL"
	EnvTokenURL    = "WHOOP_TOKEN_URL"
	EnvAuthURL     = "WHOOP_AUTH_URL"
	EnvRedirectURI = "WHOOP_REDIRECT_URI"
)

// ErrNotLoggedIn is returned by NewSession when the stored credential cannot
// refresh tokens.
var ErrNotLoggedIn error = apierror.Configuration("Missing login credentials. Run `whoop login` first.")

// Config holds the process configuration.
type Config struct {
	// ConfigPath is the credential file, used unless StoreURL names Redis.
	ConfigPath string

	// StoreURL selects a Redis credential store when it starts with redis:// or rediss://.
	StoreURL string

	// RedisKey is the key holding the credential document in Redis.
	RedisKey string

	APIBaseURL  string
	TokenURL    string
	AuthURL     string
	RedirectURI string

	UserAgent string

	// HTTPClient is shared by the token exchanger and the API client.
	HTTPClient *http.Client
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		ConfigPath:  credentials.DefaultConfigPath(),
		RedisKey:    credentials.DefaultRedisKey,
		APIBaseURL:  client.DefaultBaseURL,
		TokenURL:    oauth.TokenURL,
		AuthURL:     oauth.AuthURL,
		RedirectURI: oauth.DefaultRedirectURI,
		UserAgent:   "whoop-cli",
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ConfigFromEnv overlays the WHOOP_* variables on DefaultConfig.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.ConfigPath, EnvConfigPath)
	set(&cfg.StoreURL, EnvStoreURL)
	set(&cfg.RedisKey, EnvRedisKey)
	set(&cfg.APIBaseURL, EnvAPIBaseURL)
	set(&cfg.TokenURL, EnvTokenURL)
	set(&cfg.AuthURL, EnvAuthURL)
	set(&cfg.RedirectURI, EnvRedirectURI)
	return cfg
}

// App holds the long-lived collaborators of one CLI invocation.
type App struct {
	cfg       Config
	store     credentials.Store
	exchanger *oauth.Exchanger
	logger    zerolog.Logger
}

// New opens the credential store and builds the token exchanger.
func New(cfg Config) (*App, error) {
	def := DefaultConfig()
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = def.RedirectURI
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = def.AuthURL
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	exchanger, err := oauth.NewExchanger(oauth.Config{
		TokenURL:   cfg.TokenURL,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create token exchanger: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     store,
		exchanger: exchanger,
		logger:    logging.NewLogger("app"),
	}, nil
}

// OpenStore returns the Redis store when cfg.StoreURL is a redis URL and the
// file store otherwise.
func OpenStore(cfg Config) (credentials.Store, error) {
	if strings.HasPrefix(cfg.StoreURL, "redis://") || strings.HasPrefix(cfg.StoreURL, "rediss://") {
		store, err := credentials.NewRedisStoreFromURL(cfg.StoreURL, cfg.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("open redis credential store: %w", err)
		}
		return store, nil
	}
	if cfg.StoreURL != "" {
		return nil, fmt.Errorf("unsupported %s %q, expected a redis:// url", EnvStoreURL, cfg.StoreURL)
	}
	if cfg.ConfigPath == "" {
		return nil, errors.New("cannot determine config path, set " + EnvConfigPath)
	}
	return credentials.NewFileStore(cfg.ConfigPath), nil
}

// Store returns the credential store.
func (a *App) Store() credentials.Store {
	return a.store
}

// Config returns the effective configuration.
func (a *App) Config() Config {
	return a.cfg
}

// Close releases the store connection, if any.
func (a *App) Close() error {
	return closeStore(a.store)
}

func closeStore(store credentials.Store) error {
	if c, ok := store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Session is the per-command object graph around one loaded credential.
type Session struct {
	Tokens  *token.Manager
	Client  *client.Client
	Service *whoop.Service
}

// NewSession loads the stored credential and wires a token manager that saves
// every refresh back to the store.
func (a *App) NewSession(ctx context.Context) (*Session, error) {
	cred, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred.ClientID == "" || cred.ClientSecret == "" || cred.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	tokens, err := token.NewManager(&cred, token.Config{
		Refresher: a.exchanger,
		Persist:   a.store.Save,
	})
	if err != nil {
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	api, err := client.New(tokens, client.Config{
		BaseURL:    a.cfg.APIBaseURL,
		HTTPClient: a.cfg.HTTPClient,
		UserAgent:  a.cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	a.logger.Debug().Str("store", a.store.Location()).Msg("Session ready")

	return &Session{
		Tokens:  tokens,
		Client:  api,
		Service: whoop.NewService(api, whoop.DefaultConfig()),
	}, nil
}
