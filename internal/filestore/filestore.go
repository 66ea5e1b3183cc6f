package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Document is a JSON array of records persisted in a single file. All
// access from this process is serialised; writes replace the file
// atomically.
type Document[T any] struct {
	path string
	mu   sync.Mutex
}

func Open[T any](path string) (*Document[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filestore mkdir: %w", err)
	}
	d := &Document[T]{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := d.write([]T{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("filestore stat: %w", err)
	}
	return d, nil
}

func (d *Document[T]) Path() string {
	return d.path
}

// View runs fn on a snapshot of the records.
func (d *Document[T]) View(fn func(items []T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	items, err := d.read()
	if err != nil {
		return err
	}
	return fn(items)
}

// Update runs fn on the records and persists what it returns. Nothing is
// written when fn fails.
func (d *Document[T]) Update(fn func(items []T) ([]T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	items, err := d.read()
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	return d.write(updated)
}

func (d *Document[T]) read() ([]T, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("filestore read %s: %w", d.path, err)
	}
	items := make([]T, 0)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("filestore decode %s: %w", d.path, err)
	}
	return items, nil
}

func (d *Document[T]) write(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore close: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore rename: %w", err)
	}
	return nil
}
