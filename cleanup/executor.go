package cleanup

// Package cleanup deletes the resources recorded by a tracker through the
// platform API. Cleanup is best-effort: a failed delete is recorded and the
// sweep continues with the remaining items. Nothing is retried.

import (
	"context"

	"github.com/perfgo/testkeeper/metrics"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/tracker"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultEndpoints maps a category to the collection endpoint its resources
// are deleted from.
var DefaultEndpoints = map[model.Category]string{
	model.CategoryDatasource:  "/api/v1/datasources",
	model.CategoryUser:        "/api/v1/users",
	model.CategoryWorkflow:    "/api/v1/workflows",
	model.CategoryModel:       "/api/v1/models",
	model.CategoryDataset:     "/api/v1/datasets",
	model.CategoryQualityRule: "/api/v1/quality/rules",
}

// Deleter deletes a single resource. *api.Client implements it.
type Deleter interface {
	Delete(ctx context.Context, endpoint, id string) error
}

// Options controls a cleanup sweep.
type Options struct {
	// Report what would be deleted without calling the API
	DryRun bool
}

// Executor runs cleanup sweeps over a tracker.
type Executor struct {
	logger    zerolog.Logger
	tracker   *tracker.Tracker
	deleter   Deleter
	endpoints map[model.Category]string
	metrics   *metrics.Metrics
	onCleaned func(*model.TrackedResource)
}

// Option is a function that configures an Executor.
type Option func(*Executor)

// WithEndpoints adds or overrides category endpoints.
func WithEndpoints(endpoints map[model.Category]string) Option {
	return func(e *Executor) {
		e.endpoints = lo.Assign(e.endpoints, endpoints)
	}
}

// ResolveEndpoints returns DefaultEndpoints with the overrides applied.
func ResolveEndpoints(overrides map[model.Category]string) map[model.Category]string {
	return lo.Assign(DefaultEndpoints, overrides)
}

// WithMetrics counts every processed item.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithCleanedHook registers a function called after each successful delete.
func WithCleanedHook(fn func(*model.TrackedResource)) Option {
	return func(e *Executor) {
		e.onCleaned = fn
	}
}

// NewExecutor creates an executor for the given tracker.
func NewExecutor(logger zerolog.Logger, t *tracker.Tracker, deleter Deleter, opts ...Option) *Executor {
	e := &Executor{
		logger:    logger,
		tracker:   t,
		deleter:   deleter,
		endpoints: lo.Assign(DefaultEndpoints),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Endpoint returns the delete endpoint registered for a category.
func (e *Executor) Endpoint(category model.Category) (string, bool) {
	endpoint, ok := e.endpoints[category]
	return endpoint, ok
}

// CleanupCategory deletes every uncleaned item of a category. Successfully
// deleted items are marked cleaned; failures are collected in the result.
// A dry run counts the items it would delete and leaves them untouched.
// A category without a registered endpoint is skipped with a warning.
func (e *Executor) CleanupCategory(ctx context.Context, category model.Category, opts Options) model.CleanupResult {
	result := model.NewCleanupResult()

	endpoint, ok := e.endpoints[category]
	if !ok {
		e.logger.Warn().
			Str("category", string(category)).
			Msg("No delete endpoint registered for category, skipping")
		return result
	}

	pending := e.tracker.Pending(category)
	if len(pending) == 0 {
		return result
	}

	e.logger.Info().
		Str("category", string(category)).
		Int("items", len(pending)).
		Bool("dry_run", opts.DryRun).
		Msg("Cleaning up category")

	for _, item := range pending {
		if opts.DryRun {
			e.logger.Info().
				Str("category", string(category)).
				Str("id", item.ID).
				Str("endpoint", endpoint).
				Msg("Would delete resource")
			result.RecordCleaned()
			e.metrics.Observe(metrics.SourceTracker, string(category), metrics.OutcomeDryRun)
			continue
		}

		if err := e.deleter.Delete(ctx, endpoint, item.ID); err != nil {
			e.logger.Warn().
				Err(err).
				Str("category", string(category)).
				Str("id", item.ID).
				Msg("Failed to delete resource")
			result.RecordFailure(string(category), item.ID, err)
			e.metrics.Observe(metrics.SourceTracker, string(category), metrics.OutcomeFailed)
			continue
		}

		item.Cleaned = true
		result.RecordCleaned()
		e.metrics.Observe(metrics.SourceTracker, string(category), metrics.OutcomeCleaned)
		if e.onCleaned != nil {
			e.onCleaned(item)
		}
		e.logger.Debug().
			Str("category", string(category)).
			Str("id", item.ID).
			Msg("Deleted resource")
	}

	return result
}

// CleanupAll cleans the given categories, or every category with tracked
// items when none are given, and sums the results. When every delete
// succeeded and this was not a dry run the tracker is reset; otherwise its
// state is kept so a later sweep can retry the failed items.
func (e *Executor) CleanupAll(ctx context.Context, categories []model.Category, opts Options) model.CleanupResult {
	if len(categories) == 0 {
		categories = e.tracker.Categories()
	}

	total := model.NewCleanupResult()
	for _, category := range lo.Uniq(categories) {
		total.Add(e.CleanupCategory(ctx, category, opts))
	}

	if total.Success && !opts.DryRun {
		e.tracker.Reset()
	}

	e.logger.Info().
		Int("cleaned", total.Cleaned).
		Int("failed", total.Failed).
		Bool("dry_run", opts.DryRun).
		Msg("Cleanup finished")

	return total
}
