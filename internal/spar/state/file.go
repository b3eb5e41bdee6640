package state

import (
	"encoding/json"
	"fmt"
	"os"
)

// Marshal encodes s as indented JSON.
func Marshal(s State) ([]byte, error) {
	return json.MarshalIndent(s.Clone(), "", "  ")
}

// Unmarshal decodes a persisted state. Missing sections decode as empty.
func Unmarshal(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return s.Clone(), nil
}

// ReadFile loads a state from path.
func ReadFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("read state %s: %w", path, err)
	}
	return Unmarshal(data)
}

// WriteFile writes s to path.
func WriteFile(path string, s State) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}
