package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"energy-net/internal/api/handlers"
	"energy-net/internal/api/models"
	"energy-net/internal/config"
	"energy-net/internal/data"
	"energy-net/internal/episode"
	"energy-net/internal/session"
	"energy-net/internal/store"
	"energy-net/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu       sync.Mutex
	episodes map[string]*episode.Result
}

func (m *memStore) SaveEpisode(_ context.Context, res *episode.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	m.episodes[res.ID] = res
	return nil
}

func (m *memStore) LoadEpisode(_ context.Context, id string) (*episode.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return res, nil
}

func (m *memStore) ListEpisodes(_ context.Context, _ int) ([]store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Summary{}
	for id, res := range m.episodes {
		out = append(out, store.Summary{ID: id, Steps: res.Steps})
	}
	return out, nil
}

func newTestRouter(t *testing.T, st handlers.EpisodeStore) *gin.Engine {
	t.Helper()
	base, err := config.Load(filepath.Join("..", "..", "configs", "energy_net.yaml"))
	require.NoError(t, err)
	catalog, err := data.LoadCatalog(filepath.Join("..", "..", "data", "policies.json"))
	require.NoError(t, err)

	deps := &handlers.Deps{
		Base:      base,
		PresetDir: filepath.Join("..", "..", "configs", "pcs"),
		Catalog:   catalog,
		Engine:    episode.New(nil),
		Recorder:  telemetry.NewRecorder(),
		Store:     st,
	}
	return NewRouter(deps, session.NewStore(time.Hour, nil), nil, nil)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListings(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/options", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var opts models.OptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opts))
	assert.Contains(t, opts.PricingPolicies, "QUADRATIC")
	assert.Contains(t, opts.DemandPatterns, "SPIKES")
	assert.Contains(t, opts.RewardKinds, "cost")

	w = doJSON(t, r, http.MethodGet, "/api/v1/policies?side=pcs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "charge-max")
	assert.NotContains(t, w.Body.String(), "flat-40-30")

	w = doJSON(t, r, http.MethodGet, "/api/v1/pcs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var presets struct {
		Presets []models.PCSPresetInfo `json:"presets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presets))
	require.Len(t, presets.Presets, 1)
	assert.Equal(t, "default", presets.Presets[0].ID)
	assert.Equal(t, 2, presets.Presets[0].Units)
	assert.Equal(t, 100.0, presets.Presets[0].Specs.Capacity)

	w = doJSON(t, r, http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"oracle"`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimulate(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Config:  models.SimulationConfig{MaxSteps: 8},
		ISO:     models.PolicyRef{Name: "flat-40-30"},
		PCS:     &models.PolicyRef{Name: "charge-max"},
		Options: models.SimulateOptions{IncludeLedger: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.SimulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Summary.Steps)
	require.Len(t, resp.Ledger, 8)
	for _, row := range resp.Ledger {
		assert.Equal(t, 40.0, row.BuyPrice)
		assert.Equal(t, 30.0, row.SellPrice)
	}
	assert.Greater(t, resp.Summary.EnergyBought, 0.0)
	assert.Less(t, resp.Summary.TotalPCSReward, 0.0)
}

func TestSimulateRejectsBadInput(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name   string
		req    models.SimulateRequest
		status int
	}{
		{"unknown policy", models.SimulateRequest{ISO: models.PolicyRef{Name: "missing"}}, http.StatusBadRequest},
		{"wrong side", models.SimulateRequest{ISO: models.PolicyRef{Name: "charge-max"}}, http.StatusBadRequest},
		{"preset path", models.SimulateRequest{Config: models.SimulationConfig{PCSFile: "../secrets"}, ISO: models.PolicyRef{Name: "flat-40-30"}}, http.StatusBadRequest},
		{"too many steps", models.SimulateRequest{Config: models.SimulationConfig{MaxSteps: 10001}, ISO: models.PolicyRef{Name: "flat-40-30"}}, http.StatusBadRequest},
		{"bad pattern", models.SimulateRequest{Config: models.SimulationConfig{DemandPattern: "FLAT"}, ISO: models.PolicyRef{Name: "flat-40-30"}}, http.StatusBadRequest},
		{"persist without store", models.SimulateRequest{ISO: models.PolicyRef{Name: "flat-40-30"}, Options: models.SimulateOptions{Persist: true}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/simulate", tt.req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/simulate/abc/ledger", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPersistedLedger(t *testing.T) {
	st := &memStore{episodes: map[string]*episode.Result{}}
	r := newTestRouter(t, st)

	w := doJSON(t, r, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Config:  models.SimulationConfig{MaxSteps: 4},
		ISO:     models.PolicyRef{Name: "flat-40-30"},
		Options: models.SimulateOptions{Persist: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.SimulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Empty(t, resp.Ledger)

	w = doJSON(t, r, http.MethodGet, "/api/v1/simulate/"+resp.ID+"/ledger?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "step,time,clock"))

	w = doJSON(t, r, http.MethodGet, "/api/v1/simulate/missing/ledger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/episodes", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.ID)
}

func TestCompare(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/compare", models.CompareRequest{
		BaseConfig: models.SimulationConfig{MaxSteps: 6},
		Seed:       7,
		Variations: []models.Variation{
			{Name: "schedule", ISO: models.PolicyRef{Name: "flat-40-30"}, PCS: &models.PolicyRef{Name: "night-charge-evening-discharge"}},
			{Name: "charge", ISO: models.PolicyRef{Name: "flat-40-30"}, PCS: &models.PolicyRef{Name: "charge-max"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.CompareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Comparison, 2)
	assert.Equal(t, "pcs_reward", resp.Objective)
	// The schedule buys at half the rate, so it pays less.
	assert.Equal(t, "schedule", resp.Comparison[0].Name)
	assert.Equal(t, 1, resp.Comparison[0].Rank)
	assert.GreaterOrEqual(t, resp.Comparison[0].Score, resp.Comparison[1].Score)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", models.CompareRequest{
		Objective:  "profit",
		Variations: []models.Variation{{Name: "a", ISO: models.PolicyRef{Name: "flat-40-30"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRank(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/rank?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rankings, 2)
	assert.Equal(t, 1, resp.Rankings[0].Rank)
	assert.GreaterOrEqual(t, resp.Rankings[0].OracleProfit, resp.Rankings[1].OracleProfit)
	assert.Equal(t, 48, resp.Rankings[0].Count)

	w = doJSON(t, r, http.MethodGet, "/api/v1/rank?names=charge-max", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions", models.CreateSessionRequest{Config: models.SimulationConfig{MaxSteps: 2}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.AwaitingPCS)
	base := "/api/v1/sessions/" + sess.ID

	// PCS cannot act before prices are posted.
	w = doJSON(t, r, http.MethodPost, base+"/pcs", models.ActionRequest{Action: []float64{1}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/iso", models.ActionRequest{Action: []float64{40, 30}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.True(t, sess.AwaitingPCS)

	w = doJSON(t, r, http.MethodPost, base+"/iso", models.ActionRequest{Action: []float64{40, 30}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/pcs", models.ActionRequest{Action: []float64{5}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotNil(t, sess.Result)
	assert.Equal(t, 1, sess.Result.Info.Step)
	assert.Equal(t, 40.0, sess.Result.Info.BuyPrice)
	assert.False(t, sess.AwaitingPCS)

	w = doJSON(t, r, http.MethodPost, base+"/step", models.StepRequest{ISO: []float64{40, 30}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.True(t, sess.Result.Truncated)

	w = doJSON(t, r, http.MethodPost, base+"/step", models.StepRequest{ISO: []float64{40, 30}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, 0, sess.Step)

	w = doJSON(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamSimulation(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/simulate/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(models.SimulateRequest{
		Config: models.SimulationConfig{MaxSteps: 3},
		ISO:    models.PolicyRef{Name: "flat-40-30"},
	}))

	var steps int
	for {
		var msg handlers.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "summary" {
			require.NotNil(t, msg.Summary)
			assert.Equal(t, 3, msg.Summary.Steps)
			break
		}
		require.Equal(t, "step", msg.Type)
		steps++
		assert.Equal(t, steps, msg.Row.Step)
	}
	assert.Equal(t, 3, steps)
}
