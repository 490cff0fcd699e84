package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/application/coordinator"
	"github.com/weftlabs/weft/internal/domain"
	brokermem "github.com/weftlabs/weft/pkg/adapters/broker/memory"
	"github.com/weftlabs/weft/pkg/adapters/metrics/noop"
	storagemem "github.com/weftlabs/weft/pkg/adapters/storage/memory"
)

type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, agentID string, inputs []domain.TaskInput) (any, error) {
	return agentID + "-out", nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	broker := brokermem.NewBroker(10 * time.Millisecond)
	t.Cleanup(func() { broker.Close() })

	coord := coordinator.New(
		broker,
		echoExecutor{},
		storagemem.NewRunStore(),
		noop.NewCollector(),
		zap.NewNop(),
		coordinator.Config{
			WorkerGroup:   "test-workers",
			MaxWorkers:    8,
			MaxAttempts:   3,
			RunTimeout:    10 * time.Second,
			ShutdownGrace: 2 * time.Second,
		},
	)

	return NewServer(&Config{Port: 0, Coordinator: coord, Logger: zap.NewNop()})
}

func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestWidthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/workflows/width", map[string]any{
		"nodes": []string{"1", "2", "3", "4"},
		"edges": []map[string]string{
			{"from": "1", "to": "2"},
			{"from": "1", "to": "3"},
			{"from": "2", "to": "4"},
			{"from": "3", "to": "4"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Width int `json:"width"`
		Nodes int `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Width)
	assert.Equal(t, 4, resp.Nodes)
}

func TestWidthEndpointRejectsCycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/workflows/width", map[string]any{
		"nodes": []string{"a", "b"},
		"edges": []map[string]string{{"from": "a", "to": "b"}, {"from": "b", "to": "a"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubmitRunAndFetchResult(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/runs", map[string]any{
		"workflow": map[string]any{
			"name":  "chain",
			"nodes": []string{"a", "b"},
			"edges": []map[string]string{{"from": "a", "to": "b"}},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var submit RunSubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submit))
	require.NotEmpty(t, submit.RunID)
	assert.Equal(t, 1, submit.Width)
	assert.Equal(t, "submitted", submit.Status)

	require.Eventually(t, func() bool {
		res := doJSON(s, http.MethodGet, "/api/v1/runs/"+submit.RunID+"/result", nil)
		return res.Code == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond)

	res := doJSON(s, http.MethodGet, "/api/v1/runs/"+submit.RunID+"/result", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var result struct {
		RunID   string         `json:"run_id"`
		Status  string         `json:"status"`
		Outputs map[string]any `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Equal(t, submit.RunID, result.RunID)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, map[string]any{"b": "b-out"}, result.Outputs)
}

func TestSubmitRunRejectsCyclicWorkflow(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/runs", map[string]any{
		"workflow": map[string]any{
			"nodes": []string{"a", "b"},
			"edges": []map[string]string{{"from": "a", "to": "b"}, {"from": "b", "to": "a"}},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "SUBMISSION_FAILED")
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/v1/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelUnknownRun(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/runs/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRunsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
}
