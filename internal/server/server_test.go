package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewise/internal/actions"
	"homewise/internal/common/llm"
	"homewise/internal/common/llm/llmtest"
	"homewise/internal/common/logger"
	"homewise/internal/dashboard"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/prompt"
	"homewise/internal/repository"
	"homewise/internal/tools"
	"homewise/pkg/registry"
)

const (
	predictionJSON      = `{"taskName":"Replace Air Filter","nextMaintenanceDate":"2025-09-01","estimatedCost":45,"urgencyLevel":"Medium"}`
	recommendationsJSON = `{"costSavingTips":"Replace filters yourself.","recommendedServiceProviders":"Certified HVAC technicians.","estimatedRemainingLife":"8 years","criticalAttentionNeeded":"None"}`
	machineBody         = `{"name":"Carrier AC","category":"HVAC","brand":"Carrier","model":"Infinity 26","purchaseDate":"2019-05-20","warrantyExpiry":"2029-05-20","lastMaintenance":"2024-04-10","usageFrequency":"Daily","maintenanceHistory":[{"task":"Coil Cleaning","date":"2024-04-10","cost":120}]}`
)

type testServer struct {
	*httptest.Server
	model *llmtest.Stub
	down  atomic.Bool
}

func newTestServer(t *testing.T, answers map[string]string) *testServer {
	log := logger.NewTestLogger(t)
	ts := &testServer{}
	ts.model = llmtest.NewFuncStub(func(req llm.Request) (*llm.Response, error) {
		text, ok := answers[req.Name]
		if !ok {
			return nil, llm.ErrProviderFailed
		}
		return &llm.Response{Text: text}, nil
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := repository.WithCache(repository.NewMemoryStore(), rdb, time.Minute, log)

	renderer := prompt.MustNewRenderer()
	flows := actions.Flows{
		Predict:   predictivemaintenance.NewHandler(predictivemaintenance.LoadConfig(), ts.model, renderer, log),
		Recommend: maintenancerecommendations.NewHandler(maintenancerecommendations.LoadConfig(), ts.model, renderer, log),
		Chat:      chat.NewHandler(chat.LoadConfig(), ts.model, renderer, log),
	}
	toolRegistry := tools.NewDefaultRegistry(tools.NewStaticGeocoder(log))

	handler := NewMux(Deps{
		Actions:   actions.NewService(flows, store, store, nil, log),
		Dashboard: dashboard.NewService(store, store, log),
		Catalog:   registry.Build(toolRegistry, nil, time.Minute),
		Ready: func(ctx context.Context) error {
			if ts.down.Load() {
				return errors.New("database down")
			}
			return store.Ping(ctx)
		},
		Metrics:        promhttp.Handler(),
		AllowedOrigins: []string{"https://app.homewise.test"},
		Logger:         log,
	})
	ts.Server = httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type errorResponse struct {
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Fields  []string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorResponse {
	var out errorResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPredictiveMaintenanceEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]string{predictivemaintenance.TaskType: predictionJSON})

	resp, data := ts.do(t, http.MethodPost, "/api/actions/predictive-maintenance",
		`{"category":"HVAC","brand":"Carrier","model":"Infinity 26","lastMaintenance":"2024-04-10","purchaseDate":"2019-05-20","usageFrequency":"Daily","warrantyExpiry":"2029-05-20"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, predictionJSON, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestPredictiveMaintenanceEndpoint_Errors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		ts := newTestServer(t, map[string]string{predictivemaintenance.TaskType: predictionJSON})

		resp, data := ts.do(t, http.MethodPost, "/api/actions/predictive-maintenance", `{"category":"HVAC"}`)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, data)
		assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
		assert.Len(t, body.Error.Fields, 6)
		assert.Equal(t, 0, ts.model.Calls())
	})

	t.Run("model unavailable", func(t *testing.T) {
		ts := newTestServer(t, map[string]string{})

		resp, data := ts.do(t, http.MethodPost, "/api/actions/predictive-maintenance",
			`{"category":"HVAC","brand":"Carrier","model":"Infinity 26","lastMaintenance":"2024-04-10","purchaseDate":"2019-05-20","usageFrequency":"Daily","warrantyExpiry":"2029-05-20"}`)

		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		body := decodeError(t, data)
		assert.Equal(t, "MODEL_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "Failed to get predictive maintenance data.", body.Error.Message)
		assert.NotContains(t, string(data), "LLM_PROVIDER_FAILED")
	})

	t.Run("wrong method", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp, _ := ts.do(t, http.MethodGet, "/api/actions/predictive-maintenance", "")

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("body too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/actions/chat", strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
		rec := httptest.NewRecorder()

		_, err := readBody(rec, req)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 MiB")
	})
}

func TestRecommendationsAndChatEndpoints(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		maintenancerecommendations.TaskType: recommendationsJSON,
		chat.TaskType:                       "   ",
	})

	resp, data := ts.do(t, http.MethodPost, "/api/actions/recommendations",
		`{"machineType":"HVAC","brand":"Carrier","model":"Infinity 26","usageFrequency":"Daily","lastMaintenanceDate":"2024-04-10","purchaseDate":"2019-05-20","location":"Mountain View, CA"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, recommendationsJSON, string(data))
	assert.Equal(t, []string{tools.GeolocationToolName}, ts.model.LastRequest().Tools)

	resp, data = ts.do(t, http.MethodPost, "/api/actions/chat", `{"message":"How often should I descale my kettle?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"response":"I'm sorry, I couldn't generate a response."}`, string(data))
}

func TestMachineAndTaskEndpoints(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		predictivemaintenance.TaskType:      predictionJSON,
		maintenancerecommendations.TaskType: recommendationsJSON,
	})

	resp, data := ts.do(t, http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	resp, data = ts.do(t, http.MethodPost, "/api/machines", machineBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotEmpty(t, created.ID)

	resp, data = ts.do(t, http.MethodGet, "/api/machines/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"name":"Carrier AC"`)

	resp, data = ts.do(t, http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), created.ID)

	resp, data = ts.do(t, http.MethodGet, "/api/machines/unknown", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RESOURCE_NOT_FOUND", decodeError(t, data).Error.Code)

	resp, data = ts.do(t, http.MethodPost, "/api/machines/"+created.ID+"/predict", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.Contains(t, string(data), `"taskName":"Replace Air Filter"`)
	assert.Contains(t, ts.model.LastRequest().Prompt, "Task: Coil Cleaning, Date: 2024-04-10, Cost: 120")

	resp, data = ts.do(t, http.MethodPost, "/api/machines/"+created.ID+"/recommendations", `{"location":"Austin, TX"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = ts.do(t, http.MethodPost, "/api/tasks",
		`{"machineId":"`+created.ID+`","taskName":"Check Refrigerant","dueDate":"2099-01-01","urgencyLevel":"Low"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.do(t, http.MethodPost, "/api/tasks", `{"machineId":"nope","taskName":"X","dueDate":"soon","urgencyLevel":"Critical"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.GreaterOrEqual(t, len(decodeError(t, data).Error.Fields), 2)

	resp, data = ts.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &tasks))
	assert.Len(t, tasks, 2)

	resp, data = ts.do(t, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Check Refrigerant")

	resp, data = ts.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary dashboard.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 1, summary.TotalMachines)
	assert.Equal(t, 2, summary.PendingTaskCount)
	assert.Equal(t, "Carrier AC", summary.UpcomingTasks[0].MachineName)
}

func TestFlowsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := ts.do(t, http.MethodGet, "/api/flows", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalog registry.Catalog
	require.NoError(t, json.Unmarshal(data, &catalog))
	assert.Len(t, catalog.Flows(), 3)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"status":"healthy"`)

	resp, _ = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.down.Store(true)
	resp, data = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(data), "unavailable")

	resp, data = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "homewise_http_requests_total")
}

func TestCORS_WildcardNeverAllowsCredentials(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name    string
		origins []string
	}{
		{"empty list", nil},
		{"star", []string{"*"}},
		{"star among origins", []string{"https://app.homewise.test", " * "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, origin := range []string{"https://evil.test", "https://app.homewise.test", ""} {
				req := httptest.NewRequest(http.MethodGet, "/health", nil)
				if origin != "" {
					req.Header.Set("Origin", origin)
				}
				rec := httptest.NewRecorder()

				CORS(tt.origins)(ok).ServeHTTP(rec, req)

				assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), origin)
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), origin)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/actions/chat", nil)
		req.Header.Set("Origin", "https://app.homewise.test")
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "https://app.homewise.test", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
		req.Header.Set("Origin", "https://evil.test")
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/health", "")
		assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", bytes.NewReader(nil))
		req.Header.Set(RequestIDHeader, "req-42")
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
	})
}

func TestWriteError_ForeignError(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, errors.New("secret internals"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"Unexpected error"}}`, rec.Body.String())
}
