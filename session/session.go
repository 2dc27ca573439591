package session

// Package session wires one test run together: an API client, the
// in-memory tracker, the persisted state, the cleanup executor and the
// orphan scanner. A test creates a Run up front, records everything it
// creates through Track and calls Teardown at the end.

import (
	"context"
	"net/http"
	"time"

	"github.com/perfgo/testkeeper/api"
	"github.com/perfgo/testkeeper/cleanup"
	"github.com/perfgo/testkeeper/config"
	"github.com/perfgo/testkeeper/metrics"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/orphan"
	"github.com/perfgo/testkeeper/state"
	"github.com/perfgo/testkeeper/tracker"
	"github.com/rs/zerolog"
)

// Run is the context of a single test run. It is owned by one control
// flow; parallel workers each create their own Run with a distinct state
// path.
type Run struct {
	logger   zerolog.Logger
	cfg      *config.Config
	client   *api.Client
	tracker  *tracker.Tracker
	gateway  *state.Gateway
	executor *cleanup.Executor
	scanner  *orphan.Scanner
}

type options struct {
	testID     string
	testName   string
	git        *model.Git
	startTime  time.Time
	metrics    *metrics.Metrics
	httpClient *http.Client
	now        func() time.Time
}

// Option is a function that configures a Run.
type Option func(*options)

// WithTestID sets the run id. A random UUID is used otherwise.
func WithTestID(id string) Option {
	return func(o *options) {
		o.testID = id
	}
}

// WithTestName overrides the test name from the configuration.
func WithTestName(name string) Option {
	return func(o *options) {
		o.testName = name
	}
}

// WithGitInfo records the git commit in the state header.
func WithGitInfo(git *model.Git) Option {
	return func(o *options) {
		o.git = git
	}
}

// WithStartTime keeps the start time of an earlier run whose state is
// resumed.
func WithStartTime(start time.Time) Option {
	return func(o *options) {
		o.startTime = start
	}
}

// WithMetrics counts cleanup outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHTTPClient replaces the HTTP client used to talk to the platform.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClock sets the time source of the tracker and the state.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New builds a Run from the configuration.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Run, error) {
	o := options{testName: cfg.TestName}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithToken(cfg.APIToken),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	// applied last so the configured timeout also covers a supplied client
	clientOpts = append(clientOpts, api.WithTimeout(cfg.Timeout))

	client, err := api.New(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	var trackerOpts []tracker.Option
	gatewayOpts := []state.Option{state.WithBaseURL(cfg.BaseURL)}
	if o.now != nil {
		trackerOpts = append(trackerOpts, tracker.WithClock(o.now))
		gatewayOpts = append(gatewayOpts, state.WithClock(o.now))
	}
	if o.git != nil {
		gatewayOpts = append(gatewayOpts, state.WithGitInfo(o.git))
	}
	if !o.startTime.IsZero() {
		gatewayOpts = append(gatewayOpts, state.WithStartTime(o.startTime))
	}

	r := &Run{
		logger:  logger,
		cfg:     cfg,
		client:  client,
		tracker: tracker.New(logger, trackerOpts...),
		gateway: state.New(logger, o.testID, o.testName, cfg.StatePath, cfg.GuidePath, gatewayOpts...),
	}

	r.executor = cleanup.NewExecutor(logger, r.tracker, client,
		cleanup.WithEndpoints(cfg.EndpointOverrides()),
		cleanup.WithMetrics(o.metrics),
		cleanup.WithCleanedHook(func(item *model.TrackedResource) {
			r.gateway.MarkCleaned(item.Category, item.ID)
		}),
	)

	r.scanner = orphan.NewScanner(logger, client,
		orphan.WithPrefixes(cfg.Prefixes...),
		orphan.WithMetrics(o.metrics),
	)

	return r, nil
}

func (r *Run) Client() *api.Client { return r.client }

func (r *Run) Tracker() *tracker.Tracker { return r.tracker }

func (r *Run) Gateway() *state.Gateway { return r.gateway }

func (r *Run) Executor() *cleanup.Executor { return r.executor }

func (r *Run) Scanner() *orphan.Scanner { return r.scanner }

// Track records a created resource in the tracker and in the persisted
// state under key. A record without an id is tracked under a temporary
// one until UpdateID is called.
func (r *Run) Track(key string, res model.Resource) *model.TrackedResource {
	item := r.tracker.Track(res.Category(), res, res.Base().ID)
	r.gateway.Track(key, res)
	return item
}

// UpdateID replaces the temporary id of a tracked resource with the one
// assigned by the backend, in memory and on disk.
func (r *Run) UpdateID(item *model.TrackedResource, realID string) bool {
	if !r.tracker.UpdateItemID(item.Category, item.ID, realID) {
		return false
	}
	if res, ok := item.Payload.(model.Resource); ok {
		res.Base().ID = realID
		_ = r.gateway.SaveState()
	}
	return true
}

// Resume loads the state left behind by an earlier run at the configured
// path and tracks every record that has an id and is not cleaned yet, so
// that Teardown removes it. It returns the number of records tracked.
func (r *Run) Resume() int {
	if !r.gateway.LoadState() {
		return 0
	}

	n := 0
	for _, e := range r.gateway.State().Entries() {
		base := e.Resource.Base()
		if base.ID == "" || base.Cleaned {
			continue
		}
		r.tracker.Track(e.Resource.Category(), e.Resource, base.ID)
		n++
	}

	r.logger.Info().
		Str("path", r.gateway.StatePath()).
		Int("resources", n).
		Msg("Resumed pending resources")
	return n
}

// TeardownOptions controls Teardown.
type TeardownOptions struct {
	// Report deletions without calling the API
	DryRun bool
	// Also remove prefixed test data the tracker does not know about
	Orphans bool
	// Restrict the tracked sweep to these categories
	Categories []model.Category
	// Write the verification guide next to the state
	Guide bool
}

// tracked returns a predicate matching the uncleaned items of the tracker,
// taken as a snapshot.
func (r *Run) tracked() func(model.Category, string) bool {
	owned := map[model.Category]map[string]bool{}
	for _, item := range r.tracker.Items() {
		if item.Cleaned {
			continue
		}
		if owned[item.Category] == nil {
			owned[item.Category] = map[string]bool{}
		}
		owned[item.Category][item.ID] = true
	}
	return func(category model.Category, id string) bool {
		return owned[category][id]
	}
}

// Teardown optionally sweeps orphans, skipping what this run tracks, then
// deletes the tracked resources, stamps the run as completed and returns
// the combined result. Persistence errors are logged and do not change the
// result.
func (r *Run) Teardown(ctx context.Context, opts TeardownOptions) model.CleanupResult {
	result := model.NewCleanupResult()

	if opts.Orphans {
		result.Add(r.scanner.CleanupOrphaned(ctx, orphan.Options{
			DryRun:  opts.DryRun,
			Exclude: r.tracked(),
		}))
	}
	result.Add(r.executor.CleanupAll(ctx, opts.Categories, cleanup.Options{DryRun: opts.DryRun}))

	_ = r.gateway.CompleteTest()

	if opts.Guide && r.gateway.GuidePath() != "" {
		if err := r.gateway.WriteVerificationGuide(r.executor.Endpoint); err != nil {
			r.logger.Warn().Err(err).Str("path", r.gateway.GuidePath()).Msg("Failed to write verification guide")
		}
	}

	return result
}
