package driver

import (
	"context"
	"sync/atomic"
	"time"

	"flyxion/internal/field"
	"flyxion/internal/metrics"
	"flyxion/internal/solver"
	"flyxion/internal/telemetry"
	"flyxion/logging"
	"flyxion/logging/simulation"
)

// DefaultInterval is the stepping cadence of the baseline deployment.
const DefaultInterval = 50 * time.Millisecond

// Stepper is the part of the solver the driver needs.
type Stepper interface {
	Step(p solver.Params)
	State() field.State
	Steps() uint64
	Elapsed() float64
}

type Config struct {
	Interval    time.Duration
	Params      solver.Params
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	// Recorder receives a summary row every RecordEvery steps. Nil disables export.
	Recorder    *metrics.Recorder
	RecordEvery int
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	c.Logger = telemetry.OrDefault(c.Logger)
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	if c.RecordEvery < 0 {
		c.RecordEvery = 0
	}
	return c
}

// TelemetrySnapshot reports the stepping loop's counters.
type TelemetrySnapshot struct {
	IntervalMillis int64  `json:"intervalMillis"`
	LastStepMicros int64  `json:"lastStepMicros"`
	MaxStepMicros  int64  `json:"maxStepMicros"`
	StepsDriven    uint64 `json:"stepsDriven"`
	Overruns       uint64 `json:"overruns"`
	RowsRecorded   uint64 `json:"rowsRecorded"`
	RecordFailures uint64 `json:"recordFailures"`
	OverrunStreak  uint64 `json:"overrunStreak"`
}

// Driver advances a solver on a fixed cadence. It is the only caller of Step.
type Driver struct {
	stepper Stepper
	cfg     Config

	lastStep       atomic.Int64
	maxStep        atomic.Int64
	steps          atomic.Uint64
	overruns       atomic.Uint64
	streak         atomic.Uint64
	rows           atomic.Uint64
	recordFailures atomic.Uint64
}

func New(s Stepper, cfg Config) *Driver {
	return &Driver{stepper: s, cfg: cfg.normalized()}
}

// Interval reports the stepping cadence.
func (d *Driver) Interval() time.Duration {
	return d.cfg.Interval
}

// Run steps once per interval until ctx is cancelled. Cancellation is a
// normal exit and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick performs a single step with the driver's bookkeeping.
func (d *Driver) Tick(ctx context.Context) time.Duration {
	start := time.Now()
	d.stepper.Step(d.cfg.Params)
	duration := time.Since(start)

	micros := duration.Microseconds()
	d.lastStep.Store(micros)
	for {
		current := d.maxStep.Load()
		if micros <= current || d.maxStep.CompareAndSwap(current, micros) {
			break
		}
	}
	driven := d.steps.Add(1)
	step := d.stepper.Steps()

	if duration > d.cfg.Interval {
		d.overruns.Add(1)
		streak := d.streak.Add(1)
		simulation.StepOverrun(ctx, d.cfg.Publisher, step, simulation.StepOverrunPayload{
			DurationMillis: duration.Milliseconds(),
			BudgetMillis:   d.cfg.Interval.Milliseconds(),
			Ratio:          float64(duration) / float64(d.cfg.Interval),
			Streak:         streak,
		}, nil)
	} else {
		d.streak.Store(0)
	}

	if d.cfg.Recorder != nil && d.cfg.RecordEvery > 0 && driven%uint64(d.cfg.RecordEvery) == 0 {
		d.record(step, micros)
	}
	return duration
}

func (d *Driver) record(step uint64, micros int64) {
	summary := field.Summarize(d.stepper.State())
	row := metrics.NewRow(step, d.stepper.Elapsed(), micros, summary)
	if err := d.cfg.Recorder.Record(row); err != nil {
		d.recordFailures.Add(1)
		d.cfg.Logger.Printf("[driver] failed to record metrics at step %d: %v", step, err)
		return
	}
	d.rows.Add(1)
}

// TelemetrySnapshot returns the current counters.
func (d *Driver) TelemetrySnapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		IntervalMillis: d.cfg.Interval.Milliseconds(),
		LastStepMicros: d.lastStep.Load(),
		MaxStepMicros:  d.maxStep.Load(),
		StepsDriven:    d.steps.Load(),
		Overruns:       d.overruns.Load(),
		RowsRecorded:   d.rows.Load(),
		RecordFailures: d.recordFailures.Load(),
		OverrunStreak:  d.streak.Load(),
	}
}
