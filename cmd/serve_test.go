package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/sir-sim/sim/batch"
)

func postSimulation(t *testing.T, h *SimulationHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.CreateSimulation(c))
	return rec
}

func newTestSimulationHandler() *SimulationHandler {
	return NewSimulationHandler(1_000_000, time.Minute)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := newTestSimulationHandler()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateSimulation_Success(t *testing.T) {
	// GIVEN a request overriding only the batch size
	h := newTestSimulationHandler()
	body := `{"num_runs":2,"num_agents":20,"num_steps":5}`

	// WHEN it is posted
	rec := postSimulation(t, h, body)

	// THEN the summaries come back without raw logs
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res batch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Summaries, 2)
	assert.Nil(t, res.AgentStates)
	assert.Equal(t, 0.1, res.Config.InfectionProb, "omitted fields keep defaults")
	assert.Equal(t, 20, res.Config.NumAgents)
}

func TestCreateSimulation_IncludeLogs(t *testing.T) {
	h := newTestSimulationHandler()
	rec := postSimulation(t, h, `{"num_runs":1,"num_agents":10,"num_steps":4,"include_logs":true}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res batch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.AgentStates, 40)
}

func TestCreateSimulation_SameConfigSameSummaries(t *testing.T) {
	h := newTestSimulationHandler()
	body := `{"seed":5,"num_runs":2,"num_agents":40,"num_steps":10}`

	var first, second batch.Result
	require.NoError(t, json.Unmarshal(postSimulation(t, h, body).Body.Bytes(), &first))
	require.NoError(t, json.Unmarshal(postSimulation(t, h, body).Body.Bytes(), &second))

	assert.Equal(t, first.Summaries, second.Summaries)
}

func TestCreateSimulation_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"malformed body", `{"num_agents":`, ""},
		{"invalid probability", `{"infection_prob":1.5}`, "infection_prob"},
		{"zero runs", `{"num_runs":0}`, "num_runs"},
		{"too large", `{"num_runs":10,"num_agents":10000,"num_steps":100}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postSimulation(t, newTestSimulationHandler(), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, resp["field"])
			}
		})
	}
}
