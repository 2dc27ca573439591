package orphan

// Package orphan finds and deletes test data left behind by earlier runs
// that never reached their cleanup, e.g. because the process crashed.
// Resources are recognized purely by naming convention: anything whose
// name does not carry a test-data prefix is left alone.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/perfgo/testkeeper/api"
	"github.com/perfgo/testkeeper/metrics"
	"github.com/perfgo/testkeeper/model"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultPrefix marks resources created by the E2E suite.
const DefaultPrefix = "e2e_test_"

// Kind describes how to list and delete one kind of resource.
type Kind struct {
	// Name of the kind, used in logs and error messages (e.g. "users")
	Name string
	// Listing endpoint
	ListPath string
	// Endpoint individual resources are deleted from
	DeletePath string
	// Query parameter used to narrow the listing server-side; the prefix
	// is used as its value
	FilterParam string
	// Tracker category of the same resources
	Category model.Category
}

// DefaultKinds are scanned when no kinds are configured.
var DefaultKinds = []Kind{
	{Name: "users", ListPath: "/api/v1/users", DeletePath: "/api/v1/users", FilterParam: "keyword", Category: model.CategoryUser},
	{Name: "datasources", ListPath: "/api/v1/datasources", DeletePath: "/api/v1/datasources", FilterParam: "name", Category: model.CategoryDatasource},
}

// Client lists and deletes resources. *api.Client implements it.
type Client interface {
	List(ctx context.Context, path string, query url.Values) ([]api.Item, error)
	Delete(ctx context.Context, endpoint, id string) error
}

// Options controls an orphan sweep.
type Options struct {
	// Log what would be deleted without calling the API
	DryRun bool
	// Restrict the sweep to these kinds; all known kinds when empty
	Kinds []string
	// Reports resources owned by a live run; they are skipped
	Exclude func(category model.Category, id string) bool
}

// Scanner finds resources matching the test-data naming convention.
type Scanner struct {
	logger   zerolog.Logger
	client   Client
	kinds    []Kind
	prefixes []string
	match    func(name string) bool
	metrics  *metrics.Metrics
}

// Option is a function that configures a Scanner.
type Option func(*Scanner)

// WithKinds replaces the scanned kinds.
func WithKinds(kinds ...Kind) Option {
	return func(s *Scanner) {
		s.kinds = kinds
	}
}

// WithPrefixes replaces the test-data name prefixes.
func WithPrefixes(prefixes ...string) Option {
	return func(s *Scanner) {
		s.prefixes = lo.Compact(prefixes)
	}
}

// WithMatcher replaces the prefix check with an arbitrary predicate.
func WithMatcher(match func(name string) bool) Option {
	return func(s *Scanner) {
		s.match = match
	}
}

// WithMetrics counts every processed orphan.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// NewScanner creates a scanner using the given API client.
func NewScanner(logger zerolog.Logger, client Client, opts ...Option) *Scanner {
	s := &Scanner{
		logger:   logger,
		client:   client,
		kinds:    DefaultKinds,
		prefixes: []string{DefaultPrefix},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.match == nil {
		s.match = s.hasPrefix
	}

	return s
}

func (s *Scanner) hasPrefix(name string) bool {
	return lo.SomeBy(s.prefixes, func(prefix string) bool {
		return strings.HasPrefix(name, prefix)
	})
}

// Kinds returns the names of the scanned kinds.
func (s *Scanner) Kinds() []string {
	return lo.Map(s.kinds, func(k Kind, _ int) string { return k.Name })
}

func (s *Scanner) kind(name string) (Kind, bool) {
	return lo.Find(s.kinds, func(k Kind) bool { return k.Name == name })
}

// FindOrphans lists resources of a kind and returns those whose name
// matches the test-data convention.
func (s *Scanner) FindOrphans(ctx context.Context, kindName string) ([]api.Item, error) {
	kind, ok := s.kind(kindName)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q (known: %s)", kindName, strings.Join(s.Kinds(), ", "))
	}

	query := url.Values{}
	if kind.FilterParam != "" && len(s.prefixes) == 1 {
		query.Set(kind.FilterParam, s.prefixes[0])
	}

	items, err := s.client.List(ctx, kind.ListPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Name, err)
	}

	orphans := lo.Filter(items, func(item api.Item, _ int) bool {
		return item.ID != "" && s.match(item.Name)
	})

	s.logger.Debug().
		Str("kind", kind.Name).
		Int("listed", len(items)).
		Int("orphans", len(orphans)).
		Msg("Scanned for orphaned test data")

	return orphans, nil
}

// CleanupOrphaned finds orphans of every selected kind and deletes them
// directly, bypassing any tracker. Resources matched by opts.Exclude are
// left for their owner. A failed listing is recorded as one failure for
// that kind and the sweep continues with the next kind.
func (s *Scanner) CleanupOrphaned(ctx context.Context, opts Options) model.CleanupResult {
	result := model.NewCleanupResult()

	names := opts.Kinds
	if len(names) == 0 {
		names = s.Kinds()
	}

	for _, name := range names {
		kind, ok := s.kind(name)
		if !ok {
			result.RecordFailure(name, "", errors.New("unknown resource kind"))
			continue
		}

		orphans, err := s.FindOrphans(ctx, name)
		if err != nil {
			s.logger.Warn().Err(err).Str("kind", name).Msg("Failed to scan for orphaned test data")
			result.RecordFailure(name, "", err)
			s.metrics.Observe(metrics.SourceOrphan, name, metrics.OutcomeFailed)
			continue
		}

		if len(orphans) > 0 {
			s.logger.Info().
				Str("kind", name).
				Int("count", len(orphans)).
				Bool("dry_run", opts.DryRun).
				Msg("Found orphaned test data")
		}

		for _, orphan := range orphans {
			id := string(orphan.ID)

			if opts.Exclude != nil && opts.Exclude(kind.Category, id) {
				s.logger.Debug().
					Str("kind", name).
					Str("id", id).
					Str("name", orphan.Name).
					Msg("Skipping resource tracked by the current run")
				continue
			}

			if opts.DryRun {
				s.logger.Info().
					Str("kind", name).
					Str("id", id).
					Str("name", orphan.Name).
					Msg("Would delete orphaned resource")
				result.RecordCleaned()
				s.metrics.Observe(metrics.SourceOrphan, name, metrics.OutcomeDryRun)
				continue
			}

			if err := s.client.Delete(ctx, kind.DeletePath, id); err != nil {
				s.logger.Warn().
					Err(err).
					Str("kind", name).
					Str("id", id).
					Str("name", orphan.Name).
					Msg("Failed to delete orphaned resource")
				result.RecordFailure(name, id, err)
				s.metrics.Observe(metrics.SourceOrphan, name, metrics.OutcomeFailed)
				continue
			}

			result.RecordCleaned()
			s.metrics.Observe(metrics.SourceOrphan, name, metrics.OutcomeCleaned)
			s.logger.Debug().
				Str("kind", name).
				Str("id", id).
				Str("name", orphan.Name).
				Msg("Deleted orphaned resource")
		}
	}

	return result
}
