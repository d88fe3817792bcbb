package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/inflight/internal/snapshot"
)

func TestHTTPServer_ListCounters(t *testing.T) {
	d := newTestDaemon(t)
	d.Registry().Counter("countedMethod").Add(2)
	srv := NewHTTPServer(d.Config(), d)

	rec := httptest.NewRecorder()
	srv.handleListCounters(rec, httptest.NewRequest(http.MethodGet, "/api/counters", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []CounterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)

	byName := map[string]int64{}
	for _, c := range got {
		byName[c.Name] = c.Count
	}
	assert.Equal(t, int64(2), byName["countedMethod"])
	assert.Equal(t, int64(0), byName["inflight.requests"])
}

func TestHTTPServer_GetCounter(t *testing.T) {
	d := newTestDaemon(t)
	d.Registry().Counter("countedMethod").Inc()
	srv := NewHTTPServer(d.Config(), d)

	req := httptest.NewRequest(http.MethodGet, "/api/counters/countedMethod", nil)
	req.SetPathValue("name", "countedMethod")
	rec := httptest.NewRecorder()
	srv.handleGetCounter(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got CounterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.Count)
	assert.Nil(t, got.Persisted, "no snapshot pass has run yet")
}

func TestHTTPServer_GetCounterIncludesPersistedValue(t *testing.T) {
	d := newTestDaemon(t)
	d.Registry().Counter("countedMethod").Add(4)
	d.takeSnapshot()
	srv := NewHTTPServer(d.Config(), d)

	req := httptest.NewRequest(http.MethodGet, "/api/counters/countedMethod", nil)
	req.SetPathValue("name", "countedMethod")
	rec := httptest.NewRecorder()
	srv.handleGetCounter(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got CounterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Persisted)
	assert.Equal(t, int64(4), *got.Persisted)
}

func TestHTTPServer_GetMissingCounter(t *testing.T) {
	d := newTestDaemon(t)
	srv := NewHTTPServer(d.Config(), d)

	req := httptest.NewRequest(http.MethodGet, "/api/counters/ghost", nil)
	req.SetPathValue("name", "ghost")
	rec := httptest.NewRecorder()
	srv.handleGetCounter(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var got struct {
		Error    string `json:"error"`
		Category string `json:"category"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t,
		fmt.Sprintf("No counter with name [ghost] found in registry [%s]", d.Registry()),
		got.Error)
	assert.Equal(t, "state", got.Category)
}

func TestHTTPServer_RemoveCounter(t *testing.T) {
	d := newTestDaemon(t)
	srv := NewHTTPServer(d.Config(), d)

	req := httptest.NewRequest(http.MethodDelete, "/api/counters/countedMethod", nil)
	req.SetPathValue("name", "countedMethod")
	rec := httptest.NewRecorder()
	srv.handleRemoveCounter(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, d.Registry().Has("countedMethod"))

	// Second delete: already gone.
	rec = httptest.NewRecorder()
	srv.handleRemoveCounter(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServer_Snapshots(t *testing.T) {
	d := newTestDaemon(t)
	d.Registry().Counter("countedMethod").Add(5)
	d.takeSnapshot()
	srv := NewHTTPServer(d.Config(), d)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots/countedMethod", nil)
	req.SetPathValue("name", "countedMethod")
	rec := httptest.NewRecorder()
	srv.handleSnapshots(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snaps []snapshot.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(5), snaps[0].Count)
}

func TestHTTPServer_Health(t *testing.T) {
	d := newTestDaemon(t)
	srv := NewHTTPServer(d.Config(), d)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "inflight-test", got["registry"])
	assert.Equal(t, float64(2), got["counters"])
}
