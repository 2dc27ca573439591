package state

// Package state keeps the on-disk audit trail of a test run: every tracked
// resource is written to a JSON snapshot right away, so the data a run
// created can still be found and removed after a crash.
//
// A state file belongs to a single process. Concurrent writers to the same
// path are not coordinated and the last write wins, so parallel workers
// must use distinct paths.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/perfgo/testkeeper/model"
	"github.com/rs/zerolog"
)

// Gateway owns the snapshot of one test run and persists it after every
// mutation. Write failures are logged and returned but never abort the
// caller's test.
type Gateway struct {
	logger    zerolog.Logger
	statePath string
	guidePath string
	now       func() time.Time
	state     *model.TestRunState
	lastErr   error
}

// Option is a function that configures a Gateway.
type Option func(*Gateway)

// WithBaseURL records the base URL of the platform under test.
func WithBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		g.state.TestInfo.BaseURL = baseURL
	}
}

// WithGitInfo records the git commit the run was started from.
func WithGitInfo(git *model.Git) Option {
	return func(g *Gateway) {
		g.state.TestInfo.Git = git
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
		g.state.TestInfo.StartTime = now()
	}
}

// WithStartTime overrides the start time of the header. Apply it after
// WithClock.
func WithStartTime(start time.Time) Option {
	return func(g *Gateway) {
		g.state.TestInfo.StartTime = start
	}
}

// New creates a gateway with an empty snapshot and a fresh header. An empty
// testID is replaced with a random UUID.
func New(logger zerolog.Logger, testID, testName, statePath, guidePath string, opts ...Option) *Gateway {
	if testID == "" {
		testID = uuid.NewString()
	}

	g := &Gateway{
		logger:    logger,
		statePath: statePath,
		guidePath: guidePath,
		now:       time.Now,
	}
	g.state = model.NewTestRunState(model.TestInfo{
		TestID:    testID,
		TestName:  testName,
		StartTime: g.now(),
	})

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Open creates a gateway over an existing snapshot, keeping its header.
func Open(logger zerolog.Logger, statePath, guidePath string) (*Gateway, error) {
	s, err := ReadFile(statePath)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		logger:    logger,
		statePath: statePath,
		guidePath: guidePath,
		now:       time.Now,
		state:     s,
	}, nil
}

// StatePath returns the path of the snapshot file.
func (g *Gateway) StatePath() string {
	return g.statePath
}

// GuidePath returns the path of the verification guide.
func (g *Gateway) GuidePath() string {
	return g.guidePath
}

// State returns the current snapshot.
func (g *Gateway) State() *model.TestRunState {
	return g.state
}

// LastError returns the error of the most recent failed write, if the
// latest write failed.
func (g *Gateway) LastError() error {
	return g.lastErr
}

// LoadState reads a previous snapshot from the state path. Its resource
// collections replace the current ones while the header of this run is
// kept. It reports whether a snapshot was loaded.
func (g *Gateway) LoadState() bool {
	loaded, err := ReadFile(g.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			g.logger.Debug().Str("path", g.statePath).Msg("No previous state to load")
		} else {
			g.logger.Warn().Err(err).Str("path", g.statePath).Msg("Failed to load previous state")
		}
		return false
	}

	loaded.TestInfo = g.state.TestInfo
	g.state = loaded

	g.logger.Info().
		Str("path", g.statePath).
		Int("resources", len(loaded.Entries())).
		Msg("Loaded previous state")
	return true
}

// ReadFile parses a snapshot file.
func ReadFile(path string) (*model.TestRunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s model.TestRunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	s.EnsureCollections()

	return &s, nil
}

// SaveState overwrites the state file with the whole snapshot.
func (g *Gateway) SaveState() error {
	err := g.writeState()
	g.lastErr = err
	if err != nil {
		g.logger.Error().Err(err).Str("path", g.statePath).Msg("Failed to save state")
		return err
	}
	g.logger.Debug().Str("path", g.statePath).Msg("Saved state")
	return nil
}

func (g *Gateway) writeState() error {
	data, err := json.MarshalIndent(g.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(g.statePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	if err := os.WriteFile(g.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// CompleteTest stamps the end time and duration and saves the snapshot.
func (g *Gateway) CompleteTest() error {
	end := g.now()
	g.state.TestInfo.EndTime = &end
	g.state.TestInfo.DurationMs = end.Sub(g.state.TestInfo.StartTime).Milliseconds()

	g.logger.Info().
		Str("test_id", g.state.TestInfo.TestID).
		Dur("duration", g.state.TestInfo.Elapsed()).
		Msg("Test completed")

	return g.SaveState()
}

// Track stores a record under key in the collection of its category, fills
// in CreatedAt when missing and saves the snapshot. A failed save is logged
// and available through LastError; it is not returned.
func (g *Gateway) Track(key string, r model.Resource) {
	base := r.Base()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = g.now()
	}

	var collection string
	switch rec := r.(type) {
	case *model.UserRecord:
		collection = model.CollectionUsers
		g.state.Users[key] = rec
	case *model.DatasourceRecord:
		collection = model.CollectionDatasources
		g.state.Datasources[key] = rec
	case *model.DatasetRecord:
		collection = model.CollectionDatasets
		g.state.Datasets[key] = rec
	case *model.WorkflowRecord:
		collection = model.CollectionWorkflows
		g.state.Workflows[key] = rec
	case *model.ModelRecord:
		collection = model.CollectionModels
		g.state.Models[key] = rec
	case *model.QualityRuleRecord:
		collection = model.CollectionQualityRules
		g.state.QualityRules[key] = rec
	default:
		g.logger.Warn().
			Str("category", string(r.Category())).
			Str("key", key).
			Msg("No state collection for resource type, not persisted")
		return
	}

	_ = g.SaveState()

	g.logger.Info().
		Str("collection", collection).
		Str("key", key).
		Str("id", base.ID).
		Str("name", base.Name).
		Msg("Tracked test data")
}

func (g *Gateway) TrackUser(key string, rec *model.UserRecord) { g.Track(key, rec) }

func (g *Gateway) TrackDatasource(key string, rec *model.DatasourceRecord) { g.Track(key, rec) }

func (g *Gateway) TrackDataset(key string, rec *model.DatasetRecord) { g.Track(key, rec) }

func (g *Gateway) TrackWorkflow(key string, rec *model.WorkflowRecord) { g.Track(key, rec) }

func (g *Gateway) TrackModel(key string, rec *model.ModelRecord) { g.Track(key, rec) }

func (g *Gateway) TrackQualityRule(key string, rec *model.QualityRuleRecord) { g.Track(key, rec) }

// MarkCleaned flags every record of the category with the given id as
// cleaned and saves the snapshot when anything changed.
func (g *Gateway) MarkCleaned(category model.Category, id string) bool {
	changed := false
	for _, e := range g.state.Entries() {
		base := e.Resource.Base()
		if e.Resource.Category() == category && base.ID == id && !base.Cleaned {
			base.Cleaned = true
			changed = true
		}
	}
	if changed {
		_ = g.SaveState()
	}
	return changed
}
