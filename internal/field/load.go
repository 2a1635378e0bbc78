package field

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load decodes a JSON-encoded State and validates it.
func Load(r io.Reader) (State, error) {
	var st State
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return State{}, fmt.Errorf("field: decode state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return State{}, err
	}
	return st, nil
}

// LoadFile reads a State previously written with WriteFile or served by /state.
func LoadFile(path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return State{}, fmt.Errorf("field: open state: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// WriteFile stores st as indented JSON.
func WriteFile(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("field: encode state: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("field: write state: %w", err)
	}
	return nil
}
