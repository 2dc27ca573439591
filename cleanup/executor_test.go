package cleanup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/perfgo/testkeeper/api"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/tracker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deleteCall struct {
	endpoint string
	id       string
}

type fakeDeleter struct {
	calls []deleteCall
	fail  map[string]error
}

func (f *fakeDeleter) Delete(_ context.Context, endpoint, id string) error {
	f.calls = append(f.calls, deleteCall{endpoint: endpoint, id: id})
	return f.fail[id]
}

func newTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr := tracker.New(zerolog.Nop())
	tr.Track(model.CategoryUser, nil, "u-1")
	tr.Track(model.CategoryUser, nil, "u-2")
	tr.Track(model.CategoryDatasource, nil, "ds-1")
	return tr
}

func TestCleanupCategory_AllSucceed(t *testing.T) {
	tr := newTracker(t)
	d := &fakeDeleter{}
	e := NewExecutor(zerolog.Nop(), tr, d)

	result := e.CleanupCategory(context.Background(), model.CategoryUser, Options{})

	assert.Equal(t, model.CleanupResult{Success: true, Cleaned: 2, Failed: 0, Errors: []string{}}, result)
	assert.Equal(t, []deleteCall{
		{endpoint: "/api/v1/users", id: "u-1"},
		{endpoint: "/api/v1/users", id: "u-2"},
	}, d.calls)
	for _, item := range tr.Items(model.CategoryUser) {
		assert.True(t, item.Cleaned, item.ID)
	}
	assert.False(t, tr.Items(model.CategoryDatasource)[0].Cleaned)

	again := e.CleanupCategory(context.Background(), model.CategoryUser, Options{})
	assert.True(t, again.Success)
	assert.Zero(t, again.Cleaned)
	assert.Zero(t, again.Failed)
	assert.Len(t, d.calls, 2)
}

func TestCleanupCategory_PartialFailureContinues(t *testing.T) {
	tr := tracker.New(zerolog.Nop())
	tr.Track(model.CategoryDatasource, nil, "ds-1")
	tr.Track(model.CategoryDatasource, nil, "ds-2")
	tr.Track(model.CategoryDatasource, nil, "ds-3")
	d := &fakeDeleter{fail: map[string]error{"ds-2": errors.New("HTTP 500")}}
	e := NewExecutor(zerolog.Nop(), tr, d)

	result := e.CleanupCategory(context.Background(), model.CategoryDatasource, Options{})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Cleaned)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"datasource/ds-2: HTTP 500"}, result.Errors)
	assert.Len(t, d.calls, 3)

	pending := tr.Pending(model.CategoryDatasource)
	require.Len(t, pending, 1)
	assert.Equal(t, "ds-2", pending[0].ID)
	require.Error(t, result.Err())
	assert.Contains(t, result.Err().Error(), "datasource/ds-2")
}

func TestCleanupCategory_UnregisteredCategory(t *testing.T) {
	tr := tracker.New(zerolog.Nop())
	tr.Track("notebook", nil, "nb-1")
	d := &fakeDeleter{}
	e := NewExecutor(zerolog.Nop(), tr, d)

	result := e.CleanupCategory(context.Background(), "notebook", Options{})

	assert.True(t, result.Success)
	assert.Zero(t, result.Cleaned)
	assert.Empty(t, d.calls)
}

func TestCleanupCategory_CustomEndpoint(t *testing.T) {
	tr := tracker.New(zerolog.Nop())
	tr.Track("notebook", nil, "nb-1")
	d := &fakeDeleter{}
	e := NewExecutor(zerolog.Nop(), tr, d, WithEndpoints(map[model.Category]string{"notebook": "/api/v1/notebooks"}))

	result := e.CleanupCategory(context.Background(), "notebook", Options{})

	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, []deleteCall{{endpoint: "/api/v1/notebooks", id: "nb-1"}}, d.calls)
	_, ok := NewExecutor(zerolog.Nop(), tr, d).Endpoint("notebook")
	assert.False(t, ok, "overrides must not leak into DefaultEndpoints")
}

func TestCleanupAll_ResetsOnSuccess(t *testing.T) {
	tr := newTracker(t)
	var hooked []string
	e := NewExecutor(zerolog.Nop(), tr, &fakeDeleter{}, WithCleanedHook(func(item *model.TrackedResource) {
		hooked = append(hooked, item.ID)
	}))

	result := e.CleanupAll(context.Background(), nil, Options{})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Cleaned)
	assert.Equal(t, 0, tr.Stats().Total)
	assert.Equal(t, []string{"u-1", "u-2", "ds-1"}, hooked)
}

func TestCleanupAll_KeepsStateOnFailure(t *testing.T) {
	tr := newTracker(t)
	d := &fakeDeleter{fail: map[string]error{"ds-1": errors.New("timeout")}}
	e := NewExecutor(zerolog.Nop(), tr, d)
	before := tr.Stats().Total

	result := e.CleanupAll(context.Background(), nil, Options{})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Cleaned)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, before, tr.Stats().Total)
	assert.Equal(t, map[model.Category]int{model.CategoryDatasource: 1}, tr.Stats().ByCategory)

	// A retry only targets the item that failed.
	d.fail = nil
	d.calls = nil
	retry := e.CleanupAll(context.Background(), nil, Options{})
	assert.True(t, retry.Success)
	assert.Equal(t, 1, retry.Cleaned)
	assert.Equal(t, []deleteCall{{endpoint: "/api/v1/datasources", id: "ds-1"}}, d.calls)
	assert.Equal(t, 0, tr.Stats().Total)
}

func TestCleanupAll_SelectedCategories(t *testing.T) {
	tr := newTracker(t)
	d := &fakeDeleter{}
	e := NewExecutor(zerolog.Nop(), tr, d)

	result := e.CleanupAll(context.Background(), []model.Category{model.CategoryDatasource, model.CategoryDatasource}, Options{})

	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, []deleteCall{{endpoint: "/api/v1/datasources", id: "ds-1"}}, d.calls)
}

func TestCleanupAll_DryRunNeverCallsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	require.NoError(t, err)

	tr := newTracker(t)
	e := NewExecutor(zerolog.Nop(), tr, client)

	result := e.CleanupAll(context.Background(), nil, Options{DryRun: true})

	assert.Zero(t, calls.Load())
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Cleaned)
	assert.Equal(t, 3, tr.Stats().Total)
	assert.Len(t, tr.Pending(model.CategoryUser), 2)
}

func TestCleanupAll_AgainstAPI(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/v1/users/u-2" {
			http.Error(w, "not allowed", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := api.New(srv.URL, api.WithToken("t"))
	require.NoError(t, err)

	tr := newTracker(t)
	e := NewExecutor(zerolog.Nop(), tr, client)

	result := e.CleanupAll(context.Background(), nil, Options{})

	assert.Equal(t, []string{
		"DELETE /api/v1/users/u-1",
		"DELETE /api/v1/users/u-2",
		"DELETE /api/v1/datasources/ds-1",
	}, paths)
	assert.Equal(t, 2, result.Cleaned)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "user/u-2: ")
	assert.Contains(t, result.Errors[0], "HTTP 403")
}

func TestResolveEndpoints(t *testing.T) {
	got := ResolveEndpoints(map[model.Category]string{
		model.CategoryUser: "/api/v2/users",
		"report":           "/api/v1/reports",
	})
	assert.Equal(t, "/api/v2/users", got[model.CategoryUser])
	assert.Equal(t, "/api/v1/reports", got["report"])
	assert.Equal(t, "/api/v1/quality/rules", got[model.CategoryQualityRule])
	assert.Equal(t, "/api/v1/users", DefaultEndpoints[model.CategoryUser])
}
