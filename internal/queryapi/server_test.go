package queryapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.OpenSQLiteMaster(filepath.Join(t.TempDir(), "master.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	require.NoError(t, cat.InsertOrReplace("family-a.abcde", "deadbeefcafebabe01020304"))
	return &Server{Master: cat}
}

func TestHealthHandler(t *testing.T) {
	router := NewRouter(testServer(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsHandlerReportsEntryCount(t *testing.T) {
	router := NewRouter(testServer(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(1), body["master_entries"])
}

func TestScanHandlerRequiresSignature(t *testing.T) {
	router := NewRouter(testServer(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewBufferString(`{}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerFindsMatch(t *testing.T) {
	router := NewRouter(testServer(t))
	body, _ := json.Marshal(scanRequest{Signature: "deadbeefcafebabe01020304", Threshold: 0.5})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(1), resp["count"])
}

func TestSimilarityHandler(t *testing.T) {
	router := NewRouter(testServer(t))
	body, _ := json.Marshal(similarityRequest{A: "deadbeef", B: "deadbeef"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/similarity", bytes.NewReader(body))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1.0, resp["similarity"])
}
