package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offroad-sim/internal/collision"
	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/sim"
	"offroad-sim/internal/terrain"
	"offroad-sim/internal/vehicle"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hf, err := terrain.New(terrain.Params{
		Size: 100, Segments: 20, Amplitude: 1, FreqX: 0.1, FreqZ: 0.1,
		EdgeWidthFrac: 0.2, EdgePower: 2, EdgeAmpFactor: 4,
	})
	require.NoError(t, err)
	dyn, err := vehicle.New(vehicle.DefaultConfig(), vector.Vec3{})
	require.NoError(t, err)
	ce, err := collision.NewEngine([]collision.Collider{
		{X: 10, Z: 10, Radius: 0.5, Kind: "rock", Breakable: true},
		{X: -10, Z: 10, Radius: 1, Kind: "tree"},
	}, collision.DefaultOptions())
	require.NoError(t, err)
	w, err := sim.NewWorld(sim.WorldConfig{Ground: hf, Dynamics: dyn, Collisions: ce})
	require.NoError(t, err)
	eng, err := sim.New(sim.Config{World: w, TickHz: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()

	srv := httptest.NewServer(NewServer(eng, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func fetchState(url string) (sim.Frame, error) {
	var f sim.Frame
	resp, err := http.Get(url + "/state")
	if err != nil {
		return f, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return f, fmt.Errorf("status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&f)
	return f, err
}

// eventually polls /state until cond holds.
func eventually(t *testing.T, url string, cond func(sim.Frame) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		f, err := fetchState(url)
		return err == nil && cond(f)
	}, 3*time.Second, 20*time.Millisecond)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestState_ReturnsFrame(t *testing.T) {
	srv := newTestServer(t)
	f, err := fetchState(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, f.ColliderCount)
	assert.True(t, f.InputEnabled)
}

func TestColliders(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/colliders")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Count     int                  `json:"count"`
		Colliders []collision.Collider `json:"colliders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "rock", body.Colliders[0].Kind)
	assert.True(t, body.Colliders[0].Breakable)
}

func TestInputCommand(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/command/input", `{"steer":0,"throttle":1}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	eventually(t, srv.URL, func(f sim.Frame) bool { return f.Vehicle.Speed > 0.5 })
}

func TestInputCommand_Rejects(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/command/input", `{"throttle":2}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/command/input", `not json`).StatusCode)

	resp, err := http.Get(srv.URL + "/command/input")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFreeLookCommand(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/command/freelook", `{"enabled":true}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	eventually(t, srv.URL, func(f sim.Frame) bool { return !f.InputEnabled })
}

func TestResetCommand(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/command/reset", `{"position":{"x":5,"y":0,"z":-5}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	eventually(t, srv.URL, func(f sim.Frame) bool {
		return f.Vehicle.Position.X == 5 && f.Vehicle.Position.Z == -5
	})

	resp = post(t, srv.URL+"/command/reset", ``)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	eventually(t, srv.URL, func(f sim.Frame) bool {
		return f.Vehicle.Position.X == 0 && f.Vehicle.Position.Z == 0
	})
}

func TestStream_SendsFrames(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	frames := 0
	for frames < 2 && sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f sim.Frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		frames++
	}
	assert.Equal(t, 2, frames)
}
