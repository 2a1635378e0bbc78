package lifecycle

import (
	"context"

	"flyxion/logging"
)

const (
	// EventServerStarted is emitted once the HTTP listener is about to serve.
	EventServerStarted logging.EventType = "lifecycle.server_started"
	// EventServerStopped is emitted after the listener and stepping loop exit.
	EventServerStopped logging.EventType = "lifecycle.server_stopped"
)

// ServerStartedPayload captures the effective runtime shape.
type ServerStartedPayload struct {
	Addr                string `json:"addr"`
	Width               int    `json:"width"`
	Height              int    `json:"height"`
	Tiles               int    `json:"tiles"`
	StepIntervalMillis  int64  `json:"stepIntervalMillis"`
	BroadcastIntervalMs int64  `json:"broadcastIntervalMillis"`
	Seed                string `json:"seed"`
}

// ServerStoppedPayload captures totals at shutdown.
type ServerStoppedPayload struct {
	Steps   uint64  `json:"steps"`
	Elapsed float64 `json:"elapsed"`
	Reason  string  `json:"reason,omitempty"`
}

// ServerStarted publishes a startup event.
func ServerStarted(ctx context.Context, pub logging.Publisher, payload ServerStartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerStarted,
		Actor:    logging.EntityRef{Kind: logging.EntityKindServer},
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
	})
}

// ServerStopped publishes a shutdown event.
func ServerStopped(ctx context.Context, pub logging.Publisher, step uint64, payload ServerStoppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerStopped,
		Step:     step,
		Actor:    logging.EntityRef{Kind: logging.EntityKindServer},
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
	})
}
