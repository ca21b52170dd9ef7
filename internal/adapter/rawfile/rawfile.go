// Package rawfile stores fetched features as a single pretty-printed JSON array.
package rawfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File binds Read and Write to one path.
type File struct {
	Path string
}

func (f File) Read() ([]json.RawMessage, error)      { return Read(f.Path) }
func (f File) Write(features []json.RawMessage) error { return Write(f.Path, features) }

// Write replaces the file at path with features as an indented JSON array.
// The file is written to a temporary sibling first and renamed into place.
func Write(path string, features []json.RawMessage) error {
	if features == nil {
		features = []json.RawMessage{}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create raw file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(features); err != nil {
		tmp.Close()
		return fmt.Errorf("encode raw features: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write raw file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close raw file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace raw file: %w", err)
	}
	return nil
}

// Read returns the features stored at path. A missing file or anything other
// than a JSON array is an error.
func Read(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw file: %w", err)
	}
	defer f.Close()

	var features []json.RawMessage
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&features); err != nil {
		return nil, fmt.Errorf("decode raw file %s: %w", path, err)
	}
	return features, nil
}
