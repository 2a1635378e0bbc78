package net

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"flyxion/internal/bridge"
	"flyxion/internal/driver"
	"flyxion/internal/field"
	"flyxion/internal/observability"
	"flyxion/internal/telemetry"
)

// FieldSource is the read side of the solver.
type FieldSource interface {
	State() field.State
	Elapsed() float64
	Steps() uint64
}

type HTTPHandlerConfig struct {
	// StaticDir, when set, is served at "/".
	StaticDir     string
	StepInterval  time.Duration
	Logger        telemetry.Logger
	Observability observability.Config
}

type diagnosticsPayload struct {
	Status            string                    `json:"status"`
	ServerTime        int64                     `json:"serverTime"`
	StepIntervalMs    int64                     `json:"stepIntervalMillis"`
	BroadcastInterval int64                     `json:"broadcastIntervalMillis"`
	Elapsed           float64                   `json:"elapsed"`
	Steps             uint64                    `json:"steps"`
	Field             field.Summary             `json:"field"`
	Subscribers       []bridge.ClientInfo       `json:"subscribers"`
	Bridge            bridge.TelemetrySnapshot  `json:"bridge"`
	Driver            *driver.TelemetrySnapshot `json:"driver,omitempty"`
}

// NewHTTPHandler builds the server mux. drv may be nil when stepping is
// driven elsewhere.
func NewHTTPHandler(src FieldSource, b *bridge.Bridge, drv *driver.Driver, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := telemetry.OrDefault(cfg.Logger)

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet && r.Method != nethttp.MethodHead {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, src.State())
	})

	schema, schemaErr := stateSchema()
	if schemaErr != nil {
		logger.Printf("failed to build state schema: %v", schemaErr)
	}
	mux.HandleFunc("/state/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if schemaErr != nil {
			httpError(w, "schema unavailable", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(schema)
	})

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		b.ServeUpgrade(w, r)
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := diagnosticsPayload{
			Status:            "ok",
			ServerTime:        time.Now().UnixMilli(),
			StepIntervalMs:    cfg.StepInterval.Milliseconds(),
			BroadcastInterval: b.Interval().Milliseconds(),
			Elapsed:           src.Elapsed(),
			Steps:             src.Steps(),
			Field:             field.Summarize(src.State()),
			Subscribers:       b.Clients(),
			Bridge:            b.TelemetrySnapshot(),
		}
		if drv != nil {
			snapshot := drv.TelemetrySnapshot()
			payload.Driver = &snapshot
		}
		writeJSON(w, logger, payload)
	})

	cfg.Observability.Register(mux)

	if cfg.StaticDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.StaticDir))
		mux.Handle("/", fs)
	}

	return mux
}

func stateSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(field.State{}))
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect state schema")
	}
	schema.Title = "Field State"
	schema.Description = "Row-major lattice snapshot streamed on /ws and served on /state."
	return json.Marshal(schema)
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
