package model

import (
	"sort"
	"time"
)

// TestInfo is the header of a persisted test run snapshot.
type TestInfo struct {
	// Identifier of the test run
	TestID string `json:"testId"`
	// Human readable name of the test
	TestName string `json:"testName"`
	// Timestamp when the run started
	StartTime time.Time `json:"startTime"`
	// Timestamp when the run completed
	EndTime *time.Time `json:"endTime,omitempty"`
	// Duration of the run in milliseconds, set together with EndTime
	DurationMs int64 `json:"durationMs,omitempty"`
	// Base URL of the platform under test
	BaseURL string `json:"baseUrl,omitempty"`
	// Git information
	Git *Git `json:"git,omitempty"`
}

// Elapsed returns the recorded duration of the run.
func (i TestInfo) Elapsed() time.Duration {
	return time.Duration(i.DurationMs) * time.Millisecond
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// Collection names as they appear in the persisted state file.
const (
	CollectionUsers        = "users"
	CollectionDatasources  = "datasources"
	CollectionDatasets     = "datasets"
	CollectionWorkflows    = "workflows"
	CollectionModels       = "models"
	CollectionQualityRules = "qualityRules"
)

// TestRunState is the full snapshot written to disk after every mutation.
type TestRunState struct {
	TestInfo     TestInfo                      `json:"testInfo"`
	Users        map[string]*UserRecord        `json:"users"`
	Datasources  map[string]*DatasourceRecord  `json:"datasources"`
	Datasets     map[string]*DatasetRecord     `json:"datasets"`
	Workflows    map[string]*WorkflowRecord    `json:"workflows"`
	Models       map[string]*ModelRecord       `json:"models"`
	QualityRules map[string]*QualityRuleRecord `json:"qualityRules"`
}

// NewTestRunState returns a state with the given header and empty collections.
func NewTestRunState(info TestInfo) *TestRunState {
	s := &TestRunState{TestInfo: info}
	s.EnsureCollections()
	return s
}

// EnsureCollections replaces nil collections with empty maps, so that they
// are written as {} and can be assigned to.
func (s *TestRunState) EnsureCollections() {
	if s.Users == nil {
		s.Users = map[string]*UserRecord{}
	}
	if s.Datasources == nil {
		s.Datasources = map[string]*DatasourceRecord{}
	}
	if s.Datasets == nil {
		s.Datasets = map[string]*DatasetRecord{}
	}
	if s.Workflows == nil {
		s.Workflows = map[string]*WorkflowRecord{}
	}
	if s.Models == nil {
		s.Models = map[string]*ModelRecord{}
	}
	if s.QualityRules == nil {
		s.QualityRules = map[string]*QualityRuleRecord{}
	}
}

// Entry is a single record of a TestRunState together with its location.
type Entry struct {
	Collection string
	Key        string
	Resource   Resource
}

// Entries flattens all collections, ordered by collection and then by key.
// Null records are skipped.
func (s *TestRunState) Entries() []Entry {
	var entries []Entry
	entries = appendEntries(entries, CollectionUsers, s.Users)
	entries = appendEntries(entries, CollectionDatasources, s.Datasources)
	entries = appendEntries(entries, CollectionDatasets, s.Datasets)
	entries = appendEntries(entries, CollectionWorkflows, s.Workflows)
	entries = appendEntries(entries, CollectionModels, s.Models)
	entries = appendEntries(entries, CollectionQualityRules, s.QualityRules)
	return entries
}

func appendEntries[T any, P interface {
	*T
	Resource
}](entries []Entry, collection string, m map[string]P) []Entry {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		entries = append(entries, Entry{Collection: collection, Key: k, Resource: m[k]})
	}
	return entries
}

// Counts returns the number of records per collection.
func (s *TestRunState) Counts() map[string]int {
	return map[string]int{
		CollectionUsers:        len(s.Users),
		CollectionDatasources:  len(s.Datasources),
		CollectionDatasets:     len(s.Datasets),
		CollectionWorkflows:    len(s.Workflows),
		CollectionModels:       len(s.Models),
		CollectionQualityRules: len(s.QualityRules),
	}
}
