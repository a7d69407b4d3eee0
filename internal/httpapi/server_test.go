package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/agent"
	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/retrieval"
	"github.com/fractalcore/agentmem/internal/volatile/volatiletest"
)

type stubCompletion struct{ reply string }

func (s *stubCompletion) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return s.reply, nil
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.UserID = "u1"
	cfg.GraphURI = "chromem://local"
	cfg.VolatileURL = "memory://local"

	graph := graphstore.NewStore(graphstoretest.New(), nil)
	retriever := retrieval.New(graph, nil, cfg.RetrievalWeights)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile:  volatiletest.New(),
		Graph:     graph,
		Retriever: retriever,
	})

	a, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		Graph:      graph,
		Completion: &stubCompletion{reply: "hello there"},
	})
	require.NoError(t, err)

	srv, err := NewServer(a, nil, Config{Host: "localhost", Port: 8080})
	require.NoError(t, err)
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleChat_RoundTrips(t *testing.T) {
	srv := setupTestServer(t)

	body, err := json.Marshal(chatRequest{Message: "hi there"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Response)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMS, int64(0))
}

func TestHandleChat_EmptyMessageIsRejected(t *testing.T) {
	srv := setupTestServer(t)

	body, _ := json.Marshal(chatRequest{Message: ""})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Code)
}

func TestHandleRememberAndStats(t *testing.T) {
	srv := setupTestServer(t)

	rememberBody, _ := json.Marshal(rememberRequest{Content: "remember this"})
	req := httptest.NewRequest(http.MethodPost, "/memory/remember", bytes.NewReader(rememberBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var remembered rememberResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &remembered))
	assert.NotEmpty(t, remembered.ID)

	statsReq := httptest.NewRequest(http.MethodGet, "/memory/stats", nil)
	statsRec := httptest.NewRecorder()
	srv.echo.ServeHTTP(statsRec, statsReq)
	require.Equal(t, http.StatusOK, statsRec.Code)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.L0Count)
}

func TestHandleMemoryLevel_ListsAndValidates(t *testing.T) {
	srv := setupTestServer(t)

	rememberBody, _ := json.Marshal(rememberRequest{Content: "an episode"})
	req := httptest.NewRequest(http.MethodPost, "/memory/remember", bytes.NewReader(rememberBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/memory/l0", nil)
	listRec := httptest.NewRecorder()
	srv.echo.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	var items []memoryItem
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "l0", items[0].Level)
	assert.NotNil(t, items[0].Connections)

	badReq := httptest.NewRequest(http.MethodGet, "/memory/l9", nil)
	badRec := httptest.NewRecorder()
	srv.echo.ServeHTTP(badRec, badReq)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestHandleConsolidate(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/memory/consolidate", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp consolidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.L0ToL1)
	require.NotNil(t, resp.L1ToL2)
}

func TestNewServer_RequiresAgent(t *testing.T) {
	_, err := NewServer(nil, nil, Config{})
	assert.Error(t, err)
}
