package logging_test

import (
	"context"
	"testing"
	"time"

	"flyxion/logging"
	"flyxion/logging/sinks"
)

func TestRouterDeliversToEnabledSinksOnly(t *testing.T) {
	enabled := sinks.NewMemorySink()
	disabled := sinks.NewMemorySink()

	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.Fields = map[string]any{"service": "flyxion"}
	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{
		"memory": enabled,
		"other":  disabled,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "test.info", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "test.debug", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := enabled.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event above the severity floor, got %d", len(events))
	}
	if events[0].Type != "test.info" {
		t.Fatalf("expected test.info, got %s", events[0].Type)
	}
	if events[0].Time.IsZero() {
		t.Fatalf("expected router to stamp the event time")
	}
	if events[0].Extra["service"] != "flyxion" {
		t.Fatalf("expected default fields to be merged, got %v", events[0].Extra)
	}
	if len(disabled.Events()) != 0 {
		t.Fatalf("expected sink not listed in EnabledSinks to receive nothing")
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", stats.EventsTotal)
	}
	if router.Sink("memory") != enabled {
		t.Fatalf("expected Sink lookup to return the enabled sink")
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	router, err := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time { return time.Unix(0, 0) }), nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if len(memory.Events()) != 0 {
		t.Fatalf("expected closed router to drop events")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"":        logging.SeverityInfo,
		"INFO":    logging.SeverityInfo,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
	}
	for raw, want := range cases {
		got, err := logging.ParseSeverity(raw)
		if err != nil {
			t.Fatalf("ParseSeverity(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseSeverity(%q): expected %v, got %v", raw, want, got)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected unknown severity to fail")
	}
}

func TestWithFieldsAddsDefaultsWithoutOverriding(t *testing.T) {
	var got []logging.Event
	next := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		got = append(got, event)
	})
	pub := logging.WithFields(next, map[string]any{"component": "bridge", "zone": "a"})

	pub.Publish(context.Background(), logging.Event{Type: "test.event", Extra: map[string]any{"zone": "b"}})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Extra["component"] != "bridge" {
		t.Fatalf("expected component field, got %v", got[0].Extra)
	}
	if got[0].Extra["zone"] != "b" {
		t.Fatalf("expected event value to win, got %v", got[0].Extra["zone"])
	}
	if logging.WithFields(next, nil) == nil {
		t.Fatalf("expected publisher without fields")
	}
}
