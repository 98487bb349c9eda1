package whoop

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/whoop-cli/pkg/client"
	"github.com/Sternrassler/whoop-cli/pkg/fanout"
	"github.com/Sternrassler/whoop-cli/pkg/logging"
	"github.com/Sternrassler/whoop-cli/pkg/pagination"
)

// DefaultLimit is the number of records fetched when the caller does not ask for more.
const DefaultLimit = 1

// API is the subset of *client.Client the service uses.
type API interface {
	Get(ctx context.Context, path string, query url.Values) (any, error)
	GetOptionalObject(ctx context.Context, path string) (client.Object, error)
	GetOptionalRecord(ctx context.Context, path string) (client.Object, error)
}

// Paths lists the API endpoints. CycleRecovery and CycleSleep are format
// strings taking the cycle id.
type Paths struct {
	Profile         string
	BodyMeasurement string
	Cycles          string
	Recoveries      string
	Sleeps          string
	CycleRecovery   string
	CycleSleep      string
}

// DefaultPaths returns the WHOOP developer API v2 endpoints.
func DefaultPaths() Paths {
	return Paths{
		Profile:         "/developer/v2/user/profile/basic",
		BodyMeasurement: "/developer/v2/user/measurement/body",
		Cycles:          "/developer/v2/cycle",
		Recoveries:      "/developer/v2/recovery",
		Sleeps:          "/developer/v2/activity/sleep",
		CycleRecovery:   "/developer/v2/cycle/%s/recovery",
		CycleSleep:      "/developer/v2/cycle/%s/sleep",
	}
}

// Config configures a Service.
type Config struct {
	Paths Paths

	// Concurrency bounds the per-cycle detail requests.
	Concurrency int

	// PageSize caps each collection request.
	PageSize int
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Paths:       DefaultPaths(),
		Concurrency: fanout.DefaultConcurrency,
		PageSize:    pagination.DefaultPageSize,
	}
}

// Service fetches the payloads behind each data command.
type Service struct {
	api     API
	pages   *pagination.Fetcher
	paths   Paths
	workers int
	logger  zerolog.Logger
}

// NewService creates a Service. Zero Config fields take their defaults.
func NewService(api API, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Paths == (Paths{}) {
		cfg.Paths = def.Paths
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Service{
		api:     api,
		pages:   pagination.NewFetcher(api, pagination.Config{PageSize: cfg.PageSize}),
		paths:   cfg.Paths,
		workers: cfg.Concurrency,
		logger:  logging.NewLogger("whoop"),
	}
}

// Overview fetches the profile and the latest `limit` cycles concurrently, then
// attaches each cycle's recovery and sleep.
func (s *Service) Overview(ctx context.Context, limit int) (*OverviewPayload, error) {
	var (
		profile client.Object
		cycles  []client.Object
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.api.GetOptionalObject(gctx, s.paths.Profile)
		return err
	})
	g.Go(func() error {
		var err error
		cycles, err = s.pages.ListUpTo(gctx, s.paths.Cycles, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries, err := s.enrichCycles(ctx, cycles)
	if err != nil {
		return nil, err
	}

	return &OverviewPayload{Profile: profile, Cycles: entries}, nil
}

// Recovery fetches the latest `limit` recovery records.
func (s *Service) Recovery(ctx context.Context, limit int) (*RecoveryPayload, error) {
	records, err := s.pages.ListUpTo(ctx, s.paths.Recoveries, limit)
	if err != nil {
		return nil, err
	}
	return &RecoveryPayload{Recoveries: records}, nil
}

// Sleep fetches the latest `limit` sleep records.
func (s *Service) Sleep(ctx context.Context, limit int) (*SleepPayload, error) {
	records, err := s.pages.ListUpTo(ctx, s.paths.Sleeps, limit)
	if err != nil {
		return nil, err
	}
	return &SleepPayload{Sleeps: records}, nil
}

// User fetches the profile and the body measurement concurrently.
func (s *Service) User(ctx context.Context) (*UserPayload, error) {
	var payload UserPayload

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payload.Profile, err = s.api.GetOptionalObject(gctx, s.paths.Profile)
		return err
	})
	g.Go(func() error {
		var err error
		payload.BodyMeasurement, err = s.api.GetOptionalRecord(gctx, s.paths.BodyMeasurement)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &payload, nil
}

// enrichCycles fetches recovery and sleep for every cycle, at most s.workers
// cycles at a time. Cycles without a usable id get neither, without a request.
func (s *Service) enrichCycles(ctx context.Context, cycles []client.Object) ([]CycleEntry, error) {
	return fanout.Map(ctx, cycles, s.workers, func(ctx context.Context, cycle client.Object, _ int) (CycleEntry, error) {
		entry := CycleEntry{Cycle: cycle}

		id, ok := CycleID(cycle)
		if !ok {
			s.logger.Debug().Msg("Cycle without id, skipping details")
			return entry, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			entry.Recovery, err = s.api.GetOptionalObject(gctx, fmt.Sprintf(s.paths.CycleRecovery, url.PathEscape(id)))
			return err
		})
		g.Go(func() error {
			var err error
			entry.Sleep, err = s.api.GetOptionalObject(gctx, fmt.Sprintf(s.paths.CycleSleep, url.PathEscape(id)))
			return err
		})
		if err := g.Wait(); err != nil {
			return CycleEntry{}, err
		}
		return entry, nil
	})
}

// CycleID reads a cycle's id, accepting a string or a number.
func CycleID(cycle client.Object) (string, bool) {
	if cycle == nil {
		return "", false
	}
	return client.StringID(cycle, "id")
}
