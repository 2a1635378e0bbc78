package net

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"flyxion/internal/bridge"
	"flyxion/internal/driver"
	"flyxion/internal/field"
	"flyxion/internal/observability"
	"flyxion/internal/solver"
	"flyxion/internal/telemetry"
)

var quietLogger = telemetry.LoggerFunc(func(string, ...any) {})

type harness struct {
	solver *solver.Solver
	bridge *bridge.Bridge
	driver *driver.Driver
	server *httptest.Server
}

func newHarness(t *testing.T, cfg HTTPHandlerConfig) *harness {
	t.Helper()
	params := solver.DefaultParams()
	params.Width, params.Height = 4, 3
	params.TilesX, params.TilesY = 2, 2
	params.Seed = "http"
	s, err := solver.NewSolver(params)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	b := bridge.New(s, bridge.Config{Interval: 5 * time.Millisecond, Logger: quietLogger})
	d := driver.New(s, driver.Config{Interval: time.Second, Params: params, Logger: quietLogger})
	cfg.Logger = quietLogger
	if cfg.StepInterval == 0 {
		cfg.StepInterval = 50 * time.Millisecond
	}
	server := httptest.NewServer(NewHTTPHandler(s, b, d, cfg))
	t.Cleanup(func() {
		server.Close()
		b.Close()
	})
	return &harness{solver: s, bridge: b, driver: d, server: server}
}

func get(t *testing.T, url string) (*nethttp.Response, []byte) {
	t.Helper()
	resp, err := nethttp.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealthReturnsOK(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	resp, body := get(t, h.server.URL+"/health")
	if resp.StatusCode != nethttp.StatusOK || string(body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.StatusCode, body)
	}
}

func TestStateReturnsCurrentSnapshot(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	h.driver.Tick(context.Background())

	resp, body := get(t, h.server.URL+"/state")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var st field.State
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Width != 4 || st.Height != 3 || len(st.Samples) != 12 {
		t.Fatalf("unexpected state shape %dx%d with %d samples", st.Width, st.Height, len(st.Samples))
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("expected served state to validate, got %v", err)
	}
	want := h.solver.State()
	for i := range want.Samples {
		if st.Samples[i] != want.Samples[i] {
			t.Fatalf("sample %d mismatch: expected %+v, got %+v", i, want.Samples[i], st.Samples[i])
		}
	}
}

func TestStateRejectsWrongMethod(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	resp, err := nethttp.Post(h.server.URL+"/state", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestStateSchemaDescribesPayload(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	resp, body := get(t, h.server.URL+"/state/schema")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var schema map[string]any
	if err := json.Unmarshal(body, &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema, got %s", body)
	}
	for _, key := range []string{"width", "height", "samples"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("expected property %q in schema", key)
		}
	}
	if schema["title"] != "Field State" {
		t.Fatalf("expected title Field State, got %v", schema["title"])
	}
}

func TestDiagnosticsReportsSimulationAndBridge(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{StepInterval: 50 * time.Millisecond})
	h.driver.Tick(context.Background())
	h.driver.Tick(context.Background())

	resp, body := get(t, h.server.URL+"/diagnostics")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Status            string                    `json:"status"`
		StepIntervalMs    int64                     `json:"stepIntervalMillis"`
		BroadcastInterval int64                     `json:"broadcastIntervalMillis"`
		Steps             uint64                    `json:"steps"`
		Field             field.Summary             `json:"field"`
		Bridge            bridge.TelemetrySnapshot  `json:"bridge"`
		Driver            *driver.TelemetrySnapshot `json:"driver"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.Steps != 2 {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}
	if payload.StepIntervalMs != 50 || payload.BroadcastInterval != 5 {
		t.Fatalf("unexpected intervals %d/%d", payload.StepIntervalMs, payload.BroadcastInterval)
	}
	if payload.Field.Cells != 12 {
		t.Fatalf("expected 12 cells in summary, got %d", payload.Field.Cells)
	}
	if payload.Driver == nil || payload.Driver.StepsDriven != 2 {
		t.Fatalf("expected driver telemetry with 2 steps, got %+v", payload.Driver)
	}
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var st field.State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if st.Width != 4 || st.Height != 3 {
		t.Fatalf("unexpected snapshot shape %dx%d", st.Width, st.Height)
	}
	if h.bridge.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.bridge.Len())
	}
}

func TestPlainRequestToWebsocketEndpointFails(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	resp, _ := get(t, h.server.URL+"/ws")
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("expected 400 for non-upgrade request, got %d", resp.StatusCode)
	}
	if h.bridge.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.bridge.Len())
	}
}

func TestStaticDirServedAtRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<canvas></canvas>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	h := newHarness(t, HTTPHandlerConfig{StaticDir: dir})
	resp, body := get(t, h.server.URL+"/")
	if resp.StatusCode != nethttp.StatusOK || string(body) != "<canvas></canvas>" {
		t.Fatalf("expected index.html, got %d %q", resp.StatusCode, body)
	}
}

func TestRootNotFoundWithoutStaticDir(t *testing.T) {
	h := newHarness(t, HTTPHandlerConfig{})
	resp, _ := get(t, h.server.URL+"/")
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	disabled := newHarness(t, HTTPHandlerConfig{})
	resp, _ := get(t, disabled.server.URL+"/debug/pprof/")
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("expected 404 with pprof disabled, got %d", resp.StatusCode)
	}

	enabled := newHarness(t, HTTPHandlerConfig{Observability: observability.Config{EnablePprofTrace: true}})
	resp, _ = get(t, enabled.server.URL+"/debug/pprof/")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200 with pprof enabled, got %d", resp.StatusCode)
	}
}
