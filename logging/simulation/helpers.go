package simulation

import (
	"context"

	"flyxion/logging"
)

const (
	// EventStepOverrun is emitted when a solver step takes longer than the step interval.
	EventStepOverrun logging.EventType = "simulation.step_overrun"
	// EventStateLoaded is emitted when the solver starts from an externally supplied state.
	EventStateLoaded logging.EventType = "simulation.state_loaded"
)

// StepOverrunPayload captures timing details for a slow step.
type StepOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// StepOverrun publishes a warning when a step exceeds the driver interval.
func StepOverrun(ctx context.Context, pub logging.Publisher, step uint64, payload StepOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStepOverrun,
		Step:     step,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSolver},
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	})
}

// StateLoadedPayload describes the state the solver was seeded with.
type StateLoadedPayload struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// StateLoaded publishes an info event after an initial state file is applied.
func StateLoaded(ctx context.Context, pub logging.Publisher, payload StateLoadedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateLoaded,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSolver},
		Severity: logging.SeverityInfo,
		Category: "simulation",
		Payload:  payload,
	})
}
