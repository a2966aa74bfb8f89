package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxmin/boxmin/internal/config"
	"github.com/boxmin/boxmin/internal/logging"
)

func testConfig() *config.Config {
	cfg := &config.Config{Environment: "test"}
	cfg.Optimization.Workers = 2
	cfg.Optimization.MaxRestarts = 5
	cfg.Optimization.MaxOuterIterations = 50
	cfg.Optimization.EpsilonInner = 1e-10
	cfg.Optimization.EpsilonOuter = 1e-6
	cfg.Optimization.TrustRadius = 2
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := logging.New(logging.ErrorLevel, io.Discard)
	srv := NewServer(testConfig(), logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getStatus(t *testing.T, ts *httptest.Server, id string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/v1/status/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func waitForTerminal(t *testing.T, ts *httptest.Server, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		status := getStatus(t, ts, id)
		switch status["status"] {
		case StatusCompleted, StatusFailed, StatusCancelled:
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestMinimizeLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/api/v1/minimize", MinimizeRequest{
		Objective:  "sphere",
		Dimensions: 2,
		TargetF:    1e-8,
		Seed:       3,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	id, ok := body["job_id"].(string)
	require.True(t, ok, "response must carry a job id: %v", body)

	status := waitForTerminal(t, ts, id)
	require.Equal(t, StatusCompleted, status["status"])

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "completed job must carry a result: %v", status)
	assert.Equal(t, true, result["converged"])
	assert.Less(t, result["f_best"].(float64), 1e-8)
	assert.Len(t, result["x_best"].([]interface{}), 2)
}

func TestMinimizeValidation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name    string
		req     MinimizeRequest
		wantMsg string
	}{
		{
			name:    "unknown objective",
			req:     MinimizeRequest{Objective: "rosenbrock", Dimensions: 2},
			wantMsg: "unknown objective",
		},
		{
			name:    "missing dimensions",
			req:     MinimizeRequest{Objective: "sphere"},
			wantMsg: "dimensions must be at least 1",
		},
		{
			name: "inverted bounds",
			req:  MinimizeRequest{Objective: "sphere", Dimensions: 1, Low: []float64{1}, High: []float64{-1}},
		},
		{
			name:    "center length mismatch",
			req:     MinimizeRequest{Objective: "shifted-sphere", Dimensions: 3, Center: []float64{1}},
			wantMsg: "component=server",
		},
		{
			name:    "domain dimension mismatch",
			req:     MinimizeRequest{Objective: "sphere", Dimensions: 3, Low: []float64{-1}, High: []float64{1}},
			wantMsg: "domain has 1 dimensions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/api/v1/minimize", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Contains(t, body, "error")
			if tt.wantMsg != "" {
				assert.Contains(t, body["error"].(string), tt.wantMsg)
			}
		})
	}
}

func TestStatusNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/status/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelRunningJob(t *testing.T) {
	_, ts := newTestServer(t)

	// A large multimodal job with no target keeps running until told
	// to stop.
	resp, body := postJSON(t, ts.URL+"/api/v1/minimize", MinimizeRequest{
		Objective:     "two-cosine",
		Dimensions:    40,
		ObjectiveSeed: 8,
		MaxRestarts:   1000000,
		Workers:       1,
		Seed:          5,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := body["job_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/minimize/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	status := waitForTerminal(t, ts, id)
	assert.Equal(t, StatusCancelled, status["status"])

	// A second cancellation of a terminal job is rejected.
	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, delResp.StatusCode)
}

func rpcCall(t *testing.T, ts *httptest.Server, method string, params interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	_, body := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  json.RawMessage(raw),
	})
	return body
}

func TestJSONRPC(t *testing.T) {
	_, ts := newTestServer(t)

	body := rpcCall(t, ts, "minimize.start", MinimizeRequest{
		Objective:  "sphere",
		Dimensions: 2,
		TargetF:    1e-8,
		Seed:       7,
	})
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok, "rpc start must succeed: %v", body)
	id := result["job_id"].(string)

	deadline := time.Now().Add(30 * time.Second)
	for {
		body = rpcCall(t, ts, "minimize.status", map[string]string{"job_id": id})
		result = body["result"].(map[string]interface{})
		if s := result["status"]; s == StatusCompleted || s == StatusFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rpc job %s did not finish: %v", id, result)
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, StatusCompleted, result["status"])

	body = rpcCall(t, ts, "minimize.status", map[string]string{"job_id": "nope"})
	require.Contains(t, body, "error")

	body = rpcCall(t, ts, "no.such.method", nil)
	rpcErr := body["error"].(map[string]interface{})
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestRPCInvalidVersion(t *testing.T) {
	_, ts := newTestServer(t)

	_, body := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
		"jsonrpc": "1.0",
		"id":      1,
		"method":  "minimize.start",
	})
	rpcErr, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32600), rpcErr["code"])
}
