package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/persistence"
	"github.com/talgya/evacuation-ca/internal/scenario"
)

const corridor = `
name: corridor
config:
  max_steps: 100
profile:
  familiarity: 1
  max_speed: 1
  reaction_time: 0
  jitter: 0
rooms:
  - name: hall
    layout: |
      E..i.i
      ######
      ..i..#
`

func newSimulation(t *testing.T) *engine.Simulation {
	t.Helper()
	f, err := scenario.Parse([]byte(corridor))
	require.NoError(t, err)
	sc, err := f.Build()
	require.NoError(t, err)
	sim, err := engine.New(sc.Problem, sc.Config)
	require.NoError(t, err)
	return sim
}

func newTestServer(t *testing.T, db *persistence.DB) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(engine.NewEngine(), db, 0, "secret")
	s.Scenario = "corridor"
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestStatusAndIndividuals(t *testing.T) {
	s, ts := newTestServer(t, nil)
	sim := newSimulation(t)
	s.Eng.OnStep = s.Publish
	_, err := s.Eng.Run(context.Background(), sim)
	require.NoError(t, err)
	s.Publish(sim)

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &status))
	assert.Equal(t, "corridor", status["scenario"])
	assert.Equal(t, "terminated", status["phase"])
	assert.EqualValues(t, 3, status["initial"])
	assert.EqualValues(t, 2, status["evacuated"])
	assert.EqualValues(t, 1, status["dead"])
	assert.Equal(t, "2 of 3 evacuated, 1 dead", status["summary"])

	var all []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/individuals", &all))
	assert.Len(t, all, 3)

	var dead []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/individuals?status=dead", &dead))
	require.Len(t, dead, 1)
	assert.Equal(t, "EXIT_UNREACHABLE", dead[0]["death_cause"])

	var causes map[string]int
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/deaths", &causes))
	assert.Equal(t, map[string]int{"EXIT_UNREACHABLE": 1}, causes)
}

func TestSpeed_RequiresAdminKey(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/speed", "application/json", strings.NewReader(`{"speed":4}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/speed", strings.NewReader(`{"speed":4}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4.0, s.Eng.Speed())

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/speed", strings.NewReader(`{"speed":-1}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	_, ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/v1/runs", nil))

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sim := newSimulation(t)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	id, err := db.SaveSimulation("corridor", sim, res)
	require.NoError(t, err)

	_, ts = newTestServer(t, db)
	var runs []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/runs", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "corridor", runs[0]["scenario"])
	assert.NotEmpty(t, runs[0]["age"])

	var detail struct {
		Run         persistence.Run          `json:"run"`
		Individuals []persistence.Individual `json:"individuals"`
		DeathCauses map[string]int           `json:"death_causes"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/runs/"+strconv.FormatInt(id, 10), &detail))
	assert.Equal(t, id, detail.Run.ID)
	assert.Len(t, detail.Individuals, 3)
	assert.Equal(t, 1, detail.DeathCauses["EXIT_UNREACHABLE"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/runs/999", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/runs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/runs?limit=0", nil))
}

func TestProgressWebsocket(t *testing.T) {
	s, ts := newTestServer(t, nil)
	sim := newSimulation(t)
	s.Publish(sim)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/progress"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		resp.Body.Close()
	})

	var first engine.Stats
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 0, first.Step)
	assert.Equal(t, 3, first.Initial)

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, sim.Step())
	s.Publish(sim)

	var next engine.Stats
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 1, next.Step)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	assert.Eventually(t, func() bool { return s.Hub().Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.1")
	assert.Equal(t, "192.168.1.9", clientAddr(r))
}

func TestOutcomeStatusEncoding(t *testing.T) {
	data, err := json.Marshal(individuals.Outcome{Status: individuals.StatusEvacuated})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"evacuated"`)
}
