package sim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSimulation(t *testing.T) *Simulation {
	t.Helper()
	net := lineNetwork(t, testConfig())
	step(net, 8)
	return NewSimulation(net, testConfig(), &bytes.Buffer{})
}

func TestGraphHandler_RealTopology(t *testing.T) {
	h := GraphHandlerFunc(testSimulation(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GraphResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Nodes, 3)
	assert.Contains(t, resp.Adjacency["a"], "b")
	assert.Contains(t, resp.Adjacency["b"], "c")
}

func TestGraphHandler_LocalView(t *testing.T) {
	h := GraphHandlerFunc(testSimulation(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graph?node=a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GraphResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Adjacency["a"], "b", "a's local view must include its own link")
}

func TestGraphHandler_UnknownNode(t *testing.T) {
	h := GraphHandlerFunc(testSimulation(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graph?node=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGraphHandler_MethodNotAllowed(t *testing.T) {
	h := GraphHandlerFunc(testSimulation(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/graph", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandlerFunc(testSimulation(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Greater(t, resp["ticks"], 0.0)

	head := httptest.NewRecorder()
	h(head, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Zero(t, head.Body.Len())
}
