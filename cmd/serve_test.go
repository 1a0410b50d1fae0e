package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choroshape/internal/pipeline"
	"github.com/sells-group/choroshape/internal/store"
)

type stubRunner struct {
	got pipeline.Request
	res *pipeline.Result
	err error
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.got = req
	return s.res, s.err
}

type memStore struct {
	runs []store.Run
	last store.Filter
}

func (m *memStore) Record(_ context.Context, run *store.Run) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*store.Run, error) {
	for i := range m.runs {
		if m.runs[i].ID == id {
			return &m.runs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) List(_ context.Context, f store.Filter) ([]store.Run, error) {
	m.last = f
	return m.runs, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newRouter(&stubRunner{}, nil, t.TempDir()), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_CreateMap(t *testing.T) {
	runner := &stubRunner{res: &pipeline.Result{
		RunID:  "r1",
		Output: "out/Hispanic.png",
		Groups: []string{"50.0% or less", "50.1% or more"},
		Counts: []int{0, 3, 2},
	}}
	h := newRouter(runner, nil, t.TempDir())

	rec := do(t, h, http.MethodPost, "/maps", `{"data":"https://example.com/hispanic.csv","category_column":"hispanic","total_column":"total","state":"TX","geojson":"tx/hispanic.geojson"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "out/Hispanic.png", res.Output)
	assert.Equal(t, []int{0, 3, 2}, res.Counts)
	assert.Equal(t, "https://example.com/hispanic.csv", runner.got.Data)
	assert.Equal(t, "TX", runner.got.State)
	assert.True(t, filepath.IsAbs(runner.got.OutDir))
	assert.Equal(t, filepath.Join(runner.got.OutDir, "tx", "hispanic.geojson"), runner.got.GeoJSON)
}

func TestRouter_CreateMap_BadRequests(t *testing.T) {
	h := newRouter(&stubRunner{}, nil, t.TempDir())

	rec := do(t, h, http.MethodPost, "/maps", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")

	rec = do(t, h, http.MethodPost, "/maps", `{"data":"x.csv"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")
}

func TestRouter_CreateMap_RunError(t *testing.T) {
	h := newRouter(&stubRunner{err: errors.New("boundary: no counties")}, nil, t.TempDir())
	rec := do(t, h, http.MethodPost, "/maps", `{"data":"https://example.com/x.csv","total_column":"total"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no counties")
}

func TestRouter_CreateMap_RejectsFilesystemAccess(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"local data", `{"data":"/etc/passwd","total_column":"total"}`, "data must be an http(s) or ftp URL"},
		{"file url", `{"data":"file:///etc/passwd","total_column":"total"}`, "data must be"},
		{"local boundaries", `{"data":"https://example.com/x.csv","total_column":"t","boundaries":"counties.shp"}`, "boundaries must be"},
		{"local cities", `{"data":"https://example.com/x.csv","total_column":"t","cities":"cities.shp","city_name_field":"NAME"}`, "cities must be"},
		{"absolute out_dir", `{"data":"https://example.com/x.csv","total_column":"t","out_dir":"/tmp"}`, "out_dir must be a relative path"},
		{"escaping out_dir", `{"data":"https://example.com/x.csv","total_column":"t","out_dir":"../.."}`, "out_dir must be a relative path"},
		{"escaping geojson", `{"data":"https://example.com/x.csv","total_column":"t","geojson":"a/../../x.geojson"}`, "geojson must be"},
		{"absolute csv", `{"data":"https://example.com/x.csv","total_column":"t","csv":"/root/.bashrc"}`, "csv must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{res: &pipeline.Result{}}
			rec := do(t, newRouter(runner, nil, t.TempDir()), http.MethodPost, "/maps", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, runner.got.Data, "pipeline must not run")
		})
	}
}

func TestRouter_CreateMap_BuiltinCityLabels(t *testing.T) {
	runner := &stubRunner{res: &pipeline.Result{}}
	h := newRouter(runner, nil, t.TempDir())
	rec := do(t, h, http.MethodPost, "/maps", `{"data":"ftp://example.com/x.csv","total_column":"t","city_labels":"texas"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRouter_CreateMap_BodyTooLarge(t *testing.T) {
	body := `{"data":"https://example.com/x.csv","title":"` + strings.Repeat("a", maxRequestBytes) + `"}`
	rec := do(t, newRouter(&stubRunner{}, nil, t.TempDir()), http.MethodPost, "/maps", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_Runs(t *testing.T) {
	st := &memStore{runs: []store.Run{{ID: "r1", Category: "Hispanic", Format: "png", CreatedAt: time.Now()}}}
	h := newRouter(&stubRunner{}, st, t.TempDir())

	rec := do(t, h, http.MethodGet, "/runs?category=Hispanic&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, store.Filter{Category: "Hispanic", Limit: 5}, st.last)

	rec = do(t, h, http.MethodGet, "/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/runs/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"Hispanic"`)

	rec = do(t, h, http.MethodGet, "/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RunsWithoutStore(t *testing.T) {
	h := newRouter(&stubRunner{}, nil, t.TempDir())
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/runs", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/runs/r1", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	h := newRouter(&stubRunner{}, nil, t.TempDir())
	req := httptest.NewRequest(http.MethodOptions, "/maps", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
