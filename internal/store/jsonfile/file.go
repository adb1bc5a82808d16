package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// writeJSON replaces path atomically: the payload goes to a temp file in the
// same directory, is fsynced, then renamed over the target.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// readJSON leaves v untouched when the file does not exist yet.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readLines decodes a JSON-lines file record by record. It returns the length
// of the well-formed prefix and whether that prefix lacks a trailing newline.
// A broken final line is an interrupted append and is dropped.
func readLines[T any](path string, fn func(T) error) (int64, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var good int64
	line := 0
	for len(data) > 0 {
		line++
		raw, rest, found := bytes.Cut(data, []byte{'\n'})
		data = rest
		size := int64(len(raw))
		if found {
			size++
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			good += size
			continue
		}
		var rec T
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			if len(bytes.TrimSpace(data)) == 0 {
				return good, false, nil
			}
			return good, false, fmt.Errorf("decode %s line %d: %w", filepath.Base(path), line, err)
		}
		if err := fn(rec); err != nil {
			return good, false, err
		}
		good += size
		if !found {
			return good, true, nil
		}
	}
	return good, false, nil
}
