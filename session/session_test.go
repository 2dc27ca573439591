package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/perfgo/testkeeper/config"
	"github.com/perfgo/testkeeper/metrics"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu      sync.Mutex
	deletes []string
	fail    map[string]int
}

func newFakePlatform(t *testing.T) (*fakePlatform, *httptest.Server) {
	p := &fakePlatform{fail: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/api/v1/users":
				_, _ = w.Write([]byte(`{"data":{"list":[{"id":99,"username":"e2e_test_orphan"},{"id":1,"username":"admin"}]}}`))
			default:
				_, _ = w.Write([]byte(`[]`))
			}
		case http.MethodDelete:
			p.mu.Lock()
			p.deletes = append(p.deletes, r.URL.Path)
			p.mu.Unlock()
			if code, ok := p.fail[r.URL.Path]; ok {
				w.WriteHeader(code)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePlatform) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deletes...)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.APIToken = "token"
	cfg.StatePath = filepath.Join(dir, "state.json")
	cfg.GuidePath = filepath.Join(dir, "VERIFICATION.md")
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestRun_TrackAndTeardown(t *testing.T) {
	platform, srv := newFakePlatform(t)
	cfg := testConfig(t, srv.URL)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	run, err := New(cfg, zerolog.Nop(), WithTestID("run-1"), WithTestName("datasource flow"), WithMetrics(m), WithClock(fixedClock))
	require.NoError(t, err)

	run.Track("alice", &model.UserRecord{ResourceBase: model.ResourceBase{ID: "11", Name: "e2e_test_alice"}})
	run.Track("mysql", &model.DatasourceRecord{ResourceBase: model.ResourceBase{ID: "21", Name: "e2e_test_mysql"}, Type: "mysql"})
	pending := run.Track("pg", &model.DatasourceRecord{ResourceBase: model.ResourceBase{Name: "e2e_test_pg"}, Type: "postgres"})
	assert.Regexp(t, `^datasource_1709294400000_\d{1,4}$`, pending.ID)
	require.True(t, run.UpdateID(pending, "22"))
	assert.Equal(t, "22", run.Gateway().State().Datasources["pg"].ID)

	result := run.Teardown(context.Background(), TeardownOptions{Orphans: true, Guide: true})

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Cleaned)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{
		"/api/v1/users/99",
		"/api/v1/users/11",
		"/api/v1/datasources/21",
		"/api/v1/datasources/22",
	}, platform.calls())
	assert.Zero(t, run.Tracker().Stats().Total)

	saved, err := state.ReadFile(cfg.StatePath)
	require.NoError(t, err)
	assert.Equal(t, "run-1", saved.TestInfo.TestID)
	assert.Equal(t, "datasource flow", saved.TestInfo.TestName)
	assert.Equal(t, srv.URL, saved.TestInfo.BaseURL)
	require.NotNil(t, saved.TestInfo.EndTime)
	for _, e := range saved.Entries() {
		assert.True(t, e.Resource.Base().Cleaned, e.Key)
	}
	assert.FileExists(t, cfg.GuidePath)

	expected := `
# HELP testkeeper_cleanup_items_total Number of test resources processed by cleanup, by source, category and outcome.
# TYPE testkeeper_cleanup_items_total counter
testkeeper_cleanup_items_total{category="datasource",outcome="cleaned",source="tracker"} 2
testkeeper_cleanup_items_total{category="user",outcome="cleaned",source="tracker"} 1
testkeeper_cleanup_items_total{category="users",outcome="cleaned",source="orphan"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "testkeeper_cleanup_items_total"))
}

func TestRun_TeardownOrphansSkipsTracked(t *testing.T) {
	var mu sync.Mutex
	live := map[string]string{"11": "e2e_test_alice", "99": "e2e_test_orphan"}
	var deletes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/users":
			var items []string
			for id, name := range live {
				items = append(items, `{"id":`+id+`,"username":"`+name+`"}`)
			}
			_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case r.Method == http.MethodDelete:
			deletes = append(deletes, r.URL.Path)
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
			if _, ok := live[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(live, id)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL)

	run, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	run.Track("alice", &model.UserRecord{ResourceBase: model.ResourceBase{ID: "11", Name: "e2e_test_alice"}})

	result := run.Teardown(context.Background(), TeardownOptions{Orphans: true})

	assert.True(t, result.Success, result.Errors)
	assert.Equal(t, 2, result.Cleaned)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{"/api/v1/users/99", "/api/v1/users/11"}, deletes)
	assert.Zero(t, run.Tracker().Stats().Total)

	saved, err := state.ReadFile(cfg.StatePath)
	require.NoError(t, err)
	assert.True(t, saved.Users["alice"].Cleaned)
}

func TestRun_TeardownPartialFailure(t *testing.T) {
	platform, srv := newFakePlatform(t)
	platform.fail["/api/v1/datasources/21"] = http.StatusConflict
	cfg := testConfig(t, srv.URL)

	run, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	run.Track("alice", &model.UserRecord{ResourceBase: model.ResourceBase{ID: "11"}})
	run.Track("mysql", &model.DatasourceRecord{ResourceBase: model.ResourceBase{ID: "21"}})

	result := run.Teardown(context.Background(), TeardownOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "datasource/21: ")
	assert.Equal(t, 2, run.Tracker().Stats().Total)
	assert.Equal(t, 1, run.Tracker().Stats().ByCategory[model.CategoryDatasource])

	saved, err := state.ReadFile(cfg.StatePath)
	require.NoError(t, err)
	assert.True(t, saved.Users["alice"].Cleaned)
	assert.False(t, saved.Datasources["mysql"].Cleaned)
	assert.NoFileExists(t, cfg.GuidePath)
}

func TestRun_Resume(t *testing.T) {
	platform, srv := newFakePlatform(t)
	cfg := testConfig(t, srv.URL)

	first, err := New(cfg, zerolog.Nop(), WithTestID("crashed"))
	require.NoError(t, err)
	first.Track("alice", &model.UserRecord{ResourceBase: model.ResourceBase{ID: "11"}})
	first.Track("done", &model.UserRecord{ResourceBase: model.ResourceBase{ID: "12", Cleaned: true}})
	first.Track("rule", &model.QualityRuleRecord{ResourceBase: model.ResourceBase{ID: "31"}, RuleType: "not_null"})
	first.Track("unsaved", &model.DatasetRecord{ResourceBase: model.ResourceBase{Name: "e2e_test_ds"}})

	second, err := New(cfg, zerolog.Nop(), WithTestID("sweeper"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Resume())
	assert.Equal(t, "sweeper", second.Gateway().State().TestInfo.TestID)

	dry := second.Teardown(context.Background(), TeardownOptions{DryRun: true})
	assert.True(t, dry.Success)
	assert.Equal(t, 2, dry.Cleaned)
	assert.Empty(t, platform.calls())
	assert.Equal(t, 2, second.Tracker().Stats().Total)

	swept := second.Teardown(context.Background(), TeardownOptions{})
	assert.True(t, swept.Success)
	assert.Equal(t, 2, swept.Cleaned)
	assert.ElementsMatch(t, []string{"/api/v1/users/11", "/api/v1/quality/rules/31"}, platform.calls())
}

func TestRun_ResumeWithoutState(t *testing.T) {
	_, srv := newFakePlatform(t)
	run, err := New(testConfig(t, srv.URL), zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, run.Resume())
}

func TestNew_InvalidBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "not a url"
	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
