package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skathuria/modelgw/pkg/ai"
	"github.com/skathuria/modelgw/pkg/api"
	"github.com/skathuria/modelgw/pkg/backend"
	"github.com/skathuria/modelgw/pkg/backend/mock"
	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/cache"
	"github.com/skathuria/modelgw/pkg/config"
	"github.com/skathuria/modelgw/pkg/gateway"
	"github.com/skathuria/modelgw/pkg/ledger"
	"github.com/skathuria/modelgw/pkg/retry"
	"github.com/skathuria/modelgw/pkg/storage"
)

func newTestServer(t *testing.T, limits ledger.Limits, pricing map[string]ai.Pricing) *httptest.Server {
	t.Helper()

	breakers, err := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(breakers.Stop)

	if limits.DailyUSD == 0 {
		limits = ledger.Limits{DailyUSD: 1000, MonthlyUSD: 10000}
	}
	l, err := ledger.New(limits, nil)
	require.NoError(t, err)

	respCache, err := cache.NewMemory(100)
	require.NoError(t, err)

	router, err := gateway.NewRouter(gateway.RouterConfig{
		Adapters: []backend.Adapter{
			mock.New("gpt-large", mock.WithPayload("large answer"), mock.WithCost(0.01)),
			mock.New("gpt-small", mock.WithPayload("small answer"), mock.WithCost(0.001)),
		},
		Breakers: breakers,
		Retry:    retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Ledger:   l,
		Cache:    respCache,
		Pricing:  pricing,
		CacheTTL: time.Minute,
	})
	require.NoError(t, err)

	store := storage.NewMemoryStore(100)
	gw := gateway.New(router, store)

	cfgStore := config.NewStatic(&config.Config{
		Chains: map[string][]string{
			"chat": {"gpt-large", "gpt-small"},
		},
	})

	mux := http.NewServeMux()
	api.NewServer(gw, l, breakers, store, cfgStore).RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestGenerate_ByBackend(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{
		"prompt":  "hello",
		"backend": "gpt-small",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res gateway.GenerationResult
	decode(t, resp, &res)
	assert.Equal(t, "gpt-small", res.Backend)
	assert.Equal(t, []byte("small answer"), res.Payload)
}

func TestGenerate_ByIntentResolvesChain(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{
		"prompt": "hello",
		"intent": "chat",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res gateway.GenerationResult
	decode(t, resp, &res)
	assert.Equal(t, "gpt-large", res.Backend)
}

func TestGenerate_UnknownIntentRejected(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{
		"prompt": "hello",
		"intent": "nope",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerate_MissingBackendRejected(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{"prompt": "hello"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerate_CostLimitMapsTo429(t *testing.T) {
	ts := newTestServer(t,
		ledger.Limits{DailyUSD: 1, MonthlyUSD: 10},
		map[string]ai.Pricing{"gpt-large": {OutputPer1K: 1000}},
	)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{
		"prompt":  "hello",
		"backend": "gpt-large",
		"options": map[string]interface{}{"max_tokens": 100},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp, err := http.Get(ts.URL + "/v1/generate")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBatchGenerate(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp := postJSON(t, ts.URL+"/v1/generate/batch", map[string]interface{}{
		"requests": []map[string]interface{}{
			{"prompt": "one", "backend": "gpt-large"},
			{"prompt": "two", "backend": "gpt-small"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []gateway.GenerationResult `json:"results"`
		Count   int                        `json:"count"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Results, 2)
}

func TestAdminBudget(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{DailyUSD: 50, MonthlyUSD: 500}, nil)

	resp, err := http.Get(ts.URL + "/admin/budget")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rem ledger.Remaining
	decode(t, resp, &rem)
	assert.InDelta(t, 50, rem.DailyUSD, 1e-9)
	assert.InDelta(t, 500, rem.MonthlyUSD, 1e-9)
}

func TestAdminBreakers(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	// Generate once so the primary's breaker exists.
	resp := postJSON(t, ts.URL+"/v1/generate", map[string]interface{}{
		"prompt":  "hello",
		"backend": "gpt-large",
	})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/admin/breakers")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Breakers map[string]string `json:"breakers"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "closed", body.Breakers["gpt-large"])
}

func TestAdminHealth(t *testing.T) {
	ts := newTestServer(t, ledger.Limits{}, nil)

	resp, err := http.Get(ts.URL + "/admin/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["storage"])
}
