package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"flyxion/internal/field"
)

// FileName is the CSV written inside the output directory.
const FileName = "field_metrics.csv"

// Row is one aggregate sample of the lattice. Only summary statistics are
// exported; individual cell values are never written.
type Row struct {
	Step        uint64  `csv:"step"`
	Elapsed     float64 `csv:"elapsed"`
	StepMicros  int64   `csv:"step_micros"`
	PhiMean     float64 `csv:"phi_mean"`
	PhiStdDev   float64 `csv:"phi_std_dev"`
	PhiMin      float64 `csv:"phi_min"`
	PhiMax      float64 `csv:"phi_max"`
	EntropyMean float64 `csv:"s_mean"`
	EntropyMin  float64 `csv:"s_min"`
	EntropyMax  float64 `csv:"s_max"`
	SpeedMean   float64 `csv:"speed_mean"`
}

// NewRow flattens a field summary into a CSV row.
func NewRow(step uint64, elapsed float64, stepMicros int64, summary field.Summary) Row {
	return Row{
		Step:        step,
		Elapsed:     elapsed,
		StepMicros:  stepMicros,
		PhiMean:     summary.Phi.Mean,
		PhiStdDev:   summary.Phi.StdDev,
		PhiMin:      summary.Phi.Min,
		PhiMax:      summary.Phi.Max,
		EntropyMean: summary.S.Mean,
		EntropyMin:  summary.S.Min,
		EntropyMax:  summary.S.Max,
		SpeedMean:   summary.Speed.Mean,
	}
}

// Recorder appends rows to a CSV file, writing the header once.
type Recorder struct {
	mu            sync.Mutex
	dir           string
	file          *os.File
	headerWritten bool
	rows          uint64
}

// NewRecorder creates dir and opens the CSV inside it. It returns nil, nil
// when dir is empty so callers can treat export as disabled.
func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", FileName, err)
	}
	return &Recorder{dir: dir, file: f}, nil
}

// Record appends one row.
func (r *Recorder) Record(row Row) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	records := []Row{row}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.file); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		r.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, r.file); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	r.rows++
	return nil
}

// Rows returns how many rows were written.
func (r *Recorder) Rows() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Dir returns the output directory.
func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// Close closes the CSV file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadRows decodes a CSV previously written by a Recorder.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metrics: %w", err)
	}
	defer f.Close()
	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("reading metrics: %w", err)
	}
	return rows, nil
}
