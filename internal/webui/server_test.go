package webui

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socioprep/internal/logging"
	"socioprep/internal/pipeline"
	"socioprep/internal/table"
	"socioprep/pkg/records"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tb := table.New("merged", []string{"codigo", "reporting_year", "expected_years_school"})
	tb.Append(records.Record{"codigo": "USA_2005", "reporting_year": time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), "expected_years_school": 15.8})
	tb.Append(records.Record{"codigo": "TCD_2003", "reporting_year": int64(2003), "expected_years_school": nil})
	tb.Append(records.Record{"codigo": "TCD_2011", "reporting_year": int64(2011), "expected_years_school": 6.0})

	res := &pipeline.Result{Table: tb, Stats: pipeline.Stats{RunID: "r1", Job: "poverty_education", Final: 3}}
	srv := httptest.NewServer(NewServer(Config{}, res, logging.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDataset_Paging(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/api/dataset?limit=1&offset=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page DatasetPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Limit)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "TCD_2003", page.Rows[0]["codigo"])
	assert.Nil(t, page.Rows[0]["expected_years_school"])
	assert.Equal(t, []string{"codigo", "reporting_year", "expected_years_school"}, page.Columns)
}

func TestDataset_DatesAndDefaults(t *testing.T) {
	srv := newTestServer(t)
	var page DatasetPage
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/api/dataset").Body).Decode(&page))
	assert.Equal(t, DefaultLimit, page.Limit)
	assert.Len(t, page.Rows, 3)
	assert.Equal(t, "2005-01-01", page.Rows[0]["reporting_year"])

	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/api/dataset?offset=10").Body).Decode(&page))
	assert.Empty(t, page.Rows)
}

func TestDataset_BadParams(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/api/dataset?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "limit")
}

func TestDatasetCSV(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/api/dataset.csv")
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "codigo,reporting_year,expected_years_school\nUSA_2005,2005-01-01,15.8\nTCD_2003,2003,\nTCD_2011,2011,6\n", string(body))
}

func TestStatsAndIndex(t *testing.T) {
	srv := newTestServer(t)

	var st pipeline.Stats
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/api/stats").Body).Decode(&st))
	assert.Equal(t, "r1", st.RunID)
	assert.Equal(t, 3, st.Final)

	resp := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestRateLimit(t *testing.T) {
	res := &pipeline.Result{Table: table.New("merged", []string{"codigo"})}
	s := NewServer(Config{RateLimit: 0.001, Burst: 1}, res, logging.Discard())

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestDataset_InfinityIsNull(t *testing.T) {
	tb := table.New("merged", []string{"country_name", "gini"})
	tb.Append(records.Record{"country_name": "Chad", "gini": records.Infer("inf")})
	tb.Append(records.Record{"country_name": "USA", "gini": records.Infer("-Infinity")})
	srv := httptest.NewServer(NewServer(Config{}, &pipeline.Result{Table: tb}, logging.Discard()).Handler())
	t.Cleanup(srv.Close)

	resp := get(t, srv.URL+"/api/dataset")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page DatasetPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Rows, 2)
	assert.Nil(t, page.Rows[0]["gini"])
	assert.Nil(t, page.Rows[1]["gini"])
	assert.Equal(t, "Chad", page.Rows[0]["country_name"])
}
