package pagination

import (
	"context"
	"net/url"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
	"github.com/Sternrassler/whoop-cli/pkg/client"
	"github.com/Sternrassler/whoop-cli/pkg/metrics"
)

var pagesFetchedTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "whoop_pages_fetched_total",
	Help: "Collection pages fetched by endpoint",
}, []string{"endpoint"})

// DefaultPageSize is the largest page WHOOP serves.
const DefaultPageSize = 25

// Config holds fetcher configuration
type Config struct {
	// PageSize caps the limit sent with each request
	PageSize int
}

// DefaultConfig returns the WHOOP page size
func DefaultConfig() Config {
	return Config{PageSize: DefaultPageSize}
}

// Getter is the part of client.Client the fetcher needs
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (any, error)
}

// Page is one decoded collection response. An empty NextToken means no further pages.
type Page struct {
	Records   []client.Object
	NextToken string
}

// Fetcher walks collections through a Getter
type Fetcher struct {
	getter Getter
	config Config
}

// NewFetcher creates a new fetcher
func NewFetcher(getter Getter, config Config) *Fetcher {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	return &Fetcher{getter: getter, config: config}
}

// ListUpTo returns at most limit records of the collection at path, in server order.
// A limit of zero or less returns an empty slice without any request.
func (f *Fetcher) ListUpTo(ctx context.Context, path string, limit int) ([]client.Object, error) {
	records := make([]client.Object, 0, max(limit, 0))
	if limit <= 0 {
		return records, nil
	}

	endpoint := metrics.EndpointLabel(path)
	cursor := ""
	pages := 0

	for len(records) < limit {
		remaining := limit - len(records)
		query := url.Values{"limit": {strconv.Itoa(min(f.config.PageSize, remaining))}}
		if cursor != "" {
			query.Set("nextToken", cursor)
		}

		payload, err := f.getter.Get(ctx, path, query)
		if err != nil {
			return nil, err
		}
		page, err := ExtractPage(payload, path)
		if err != nil {
			return nil, err
		}
		pages++
		pagesFetchedTotal.WithLabelValues(endpoint).Inc()

		records = append(records, page.Records...)

		if len(page.Records) == 0 || page.NextToken == "" {
			break
		}
		if page.NextToken == cursor {
			log.Debug().
				Str("endpoint", path).
				Str("cursor", cursor).
				Int("pages", pages).
				Msg("Repeated pagination cursor, stopping")
			break
		}
		cursor = page.NextToken
	}

	if len(records) > limit {
		records = records[:limit]
	}

	log.Debug().
		Str("endpoint", path).
		Int("pages", pages).
		Int("records", len(records)).
		Int("limit", limit).
		Msg("Collection fetched")

	return records, nil
}

// ExtractPage decodes a collection body: an object with a "records" array of
// objects and an optional string cursor under "nextToken" or "next_token".
func ExtractPage(payload any, path string) (Page, error) {
	obj, ok := client.AsObject(payload)
	if !ok {
		return Page{}, apierror.Shape(path, "collection response is not an object")
	}
	records, err := client.Records(obj, path)
	if err != nil {
		return Page{}, err
	}
	next, err := client.NextToken(obj, path)
	if err != nil {
		return Page{}, err
	}
	return Page{Records: records, NextToken: next}, nil
}
