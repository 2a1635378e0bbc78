package network

import (
	"context"

	"flyxion/logging"
)

const (
	// EventSubscriberConnected is emitted when a streaming client is registered.
	EventSubscriberConnected logging.EventType = "network.subscriber_connected"
	// EventSubscriberDropped is emitted when a streaming client is removed.
	EventSubscriberDropped logging.EventType = "network.subscriber_dropped"
)

// SubscriberConnectedPayload captures the registry size after a join.
type SubscriberConnectedPayload struct {
	RemoteAddr  string `json:"remoteAddr,omitempty"`
	Subscribers int    `json:"subscribers"`
}

// SubscriberDroppedPayload captures why a client left.
type SubscriberDroppedPayload struct {
	Reason       string `json:"reason"`
	MessagesSent uint64 `json:"messagesSent"`
	Subscribers  int    `json:"subscribers"`
}

// SubscriberConnected publishes an info event for a new client.
func SubscriberConnected(ctx context.Context, pub logging.Publisher, id string, payload SubscriberConnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberConnected,
		Actor:    logging.EntityRef{ID: id, Kind: logging.EntityKindSubscriber},
		Severity: logging.SeverityInfo,
		Category: "network",
		Payload:  payload,
	})
}

// SubscriberDropped publishes an event for a removed client. Write failures
// are warnings, orderly closes are informational.
func SubscriberDropped(ctx context.Context, pub logging.Publisher, id string, severity logging.Severity, payload SubscriberDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberDropped,
		Actor:    logging.EntityRef{ID: id, Kind: logging.EntityKindSubscriber},
		Severity: severity,
		Category: "network",
		Payload:  payload,
	})
}
