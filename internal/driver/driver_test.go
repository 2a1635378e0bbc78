package driver

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"flyxion/internal/field"
	"flyxion/internal/metrics"
	"flyxion/internal/solver"
	"flyxion/internal/telemetry"
	"flyxion/logging/simulation"
	"flyxion/logging/sinks"
)

type fakeStepper struct {
	mu      sync.Mutex
	delay   time.Duration
	steps   uint64
	elapsed float64
	params  []solver.Params
}

func (f *fakeStepper) Step(p solver.Params) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps++
	f.elapsed += p.DT
	f.params = append(f.params, p)
}

func (f *fakeStepper) State() field.State {
	st, _ := field.NewState(2, 2)
	st.Samples[0].Phi = 1
	return st
}

func (f *fakeStepper) Steps() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps
}

func (f *fakeStepper) Elapsed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

var quietLogger = telemetry.LoggerFunc(func(string, ...any) {})

func TestTickPassesParamsAndCountsSteps(t *testing.T) {
	stepper := &fakeStepper{}
	params := solver.DefaultParams()
	params.DT = 0.25
	d := New(stepper, Config{Interval: time.Second, Params: params, Logger: quietLogger})

	for i := 0; i < 3; i++ {
		d.Tick(context.Background())
	}

	if stepper.Steps() != 3 {
		t.Fatalf("expected 3 steps, got %d", stepper.Steps())
	}
	if stepper.Elapsed() != 0.75 {
		t.Fatalf("expected elapsed 0.75, got %v", stepper.Elapsed())
	}
	if stepper.params[2].DT != 0.25 {
		t.Fatalf("expected params to be forwarded, got %+v", stepper.params[2])
	}
	snapshot := d.TelemetrySnapshot()
	if snapshot.StepsDriven != 3 || snapshot.Overruns != 0 {
		t.Fatalf("unexpected telemetry %+v", snapshot)
	}
	if snapshot.IntervalMillis != 1000 {
		t.Fatalf("expected interval 1000ms, got %d", snapshot.IntervalMillis)
	}
}

func TestTickPublishesOverrunWhenStepIsSlow(t *testing.T) {
	stepper := &fakeStepper{delay: 5 * time.Millisecond}
	memory := sinks.NewMemorySink()
	d := New(stepper, Config{Interval: time.Millisecond, Logger: quietLogger, Publisher: memory})

	d.Tick(context.Background())
	d.Tick(context.Background())

	events := memory.EventsOfType(simulation.EventStepOverrun)
	if len(events) != 2 {
		t.Fatalf("expected 2 overrun events, got %d", len(events))
	}
	payload, ok := events[1].Payload.(simulation.StepOverrunPayload)
	if !ok {
		t.Fatalf("expected StepOverrunPayload, got %T", events[1].Payload)
	}
	if payload.Streak != 2 {
		t.Fatalf("expected streak 2, got %d", payload.Streak)
	}
	if payload.Ratio <= 1 {
		t.Fatalf("expected ratio above 1, got %v", payload.Ratio)
	}
	if events[1].Step != 2 {
		t.Fatalf("expected event at step 2, got %d", events[1].Step)
	}

	stepper.delay = 0
	d.cfg.Interval = time.Second
	d.Tick(context.Background())
	if snapshot := d.TelemetrySnapshot(); snapshot.OverrunStreak != 0 || snapshot.Overruns != 2 {
		t.Fatalf("expected streak reset with 2 overruns, got %+v", snapshot)
	}
}

func TestTickRecordsEveryNSteps(t *testing.T) {
	dir := t.TempDir()
	rec, err := metrics.NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	stepper := &fakeStepper{}
	params := solver.DefaultParams()
	d := New(stepper, Config{Interval: time.Second, Params: params, Logger: quietLogger, Recorder: rec, RecordEvery: 2})

	for i := 0; i < 5; i++ {
		d.Tick(context.Background())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := metrics.ReadRows(filepath.Join(dir, metrics.FileName))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Step != 2 || rows[1].Step != 4 {
		t.Fatalf("expected rows at steps 2 and 4, got %d and %d", rows[0].Step, rows[1].Step)
	}
	if rows[1].PhiMax != 1 || rows[1].PhiMean != 0.25 {
		t.Fatalf("unexpected phi summary %+v", rows[1])
	}
	if got := d.TelemetrySnapshot().RowsRecorded; got != 2 {
		t.Fatalf("expected 2 recorded rows, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	stepper := &fakeStepper{}
	d := New(stepper, Config{Interval: time.Millisecond, Logger: quietLogger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for stepper.Steps() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected driver to step, got %d steps", stepper.Steps())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("driver did not stop after cancellation")
	}
}

func TestDriverWithRealSolver(t *testing.T) {
	params := solver.DefaultParams()
	params.Width, params.Height = 8, 8
	params.TilesX, params.TilesY = 2, 2
	params.Seed = "driver"
	s, err := solver.NewSolver(params)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	d := New(s, Config{Interval: time.Second, Params: params, Logger: quietLogger})
	d.Tick(context.Background())
	d.Tick(context.Background())

	if s.Steps() != 2 {
		t.Fatalf("expected 2 solver steps, got %d", s.Steps())
	}
	if got, want := s.Elapsed(), 2*params.DT; got != want {
		t.Fatalf("expected elapsed %v, got %v", want, got)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	d := New(&fakeStepper{}, Config{RecordEvery: -3})
	if d.Interval() != DefaultInterval {
		t.Fatalf("expected default interval, got %v", d.Interval())
	}
	if d.cfg.RecordEvery != 0 {
		t.Fatalf("expected negative RecordEvery to be cleared, got %d", d.cfg.RecordEvery)
	}
}
