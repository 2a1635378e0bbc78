package bridge

import "sync/atomic"

type telemetryCounters struct {
	connectionsTotal atomic.Uint64
	disconnects      atomic.Uint64
	writeFailures    atomic.Uint64
	upgradeFailures  atomic.Uint64
	marshalFailures  atomic.Uint64
	messagesSent     atomic.Uint64
	bytesSent        atomic.Uint64
	lastMessageBytes atomic.Uint64
}

// TelemetrySnapshot is a point-in-time copy of the bridge counters.
type TelemetrySnapshot struct {
	Subscribers      int    `json:"subscribers"`
	ConnectionsTotal uint64 `json:"connectionsTotal"`
	Disconnects      uint64 `json:"disconnects"`
	WriteFailures    uint64 `json:"writeFailures"`
	UpgradeFailures  uint64 `json:"upgradeFailures"`
	MarshalFailures  uint64 `json:"marshalFailures"`
	MessagesSent     uint64 `json:"messagesSent"`
	BytesSent        uint64 `json:"bytesSent"`
	LastMessageBytes uint64 `json:"lastMessageBytes"`
}

func (t *telemetryCounters) RecordBroadcast(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	t.messagesSent.Add(1)
	t.bytesSent.Add(uint64(bytes))
	t.lastMessageBytes.Store(uint64(bytes))
}

func (t *telemetryCounters) snapshot(subscribers int) TelemetrySnapshot {
	return TelemetrySnapshot{
		Subscribers:      subscribers,
		ConnectionsTotal: t.connectionsTotal.Load(),
		Disconnects:      t.disconnects.Load(),
		WriteFailures:    t.writeFailures.Load(),
		UpgradeFailures:  t.upgradeFailures.Load(),
		MarshalFailures:  t.marshalFailures.Load(),
		MessagesSent:     t.messagesSent.Load(),
		BytesSent:        t.bytesSent.Load(),
		LastMessageBytes: t.lastMessageBytes.Load(),
	}
}
