// Package form keeps the raw, unvalidated input of every task. Each task owns an
// independent slice, so switching tasks never loses or leaks another task's input.
package form

import (
	"errors"
	"fmt"
	"sync"

	"agrismart-bot/api/internal/task"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrNotTextField = errors.New("field does not take text input")
	ErrNoFileField  = errors.New("task has no file input")
)

// Image is the held binary resource of the disease task.
type Image struct {
	Filename string
	MIME     string
	Data     []byte
}

// Snapshot is an immutable copy of one task's form.
type Snapshot struct {
	Kind   task.Kind
	Values map[string]string
	Image  *Image
}

// Get returns the raw value of name, "" when unset.
func (s Snapshot) Get(name string) string { return s.Values[name] }

type slice struct {
	values map[string]string
	image  *Image
}

type Store struct {
	mu     sync.RWMutex
	slices map[task.Kind]*slice
}

// NewStore creates a store with every field of every task empty.
func NewStore() *Store {
	s := &Store{slices: make(map[task.Kind]*slice, len(task.Kinds()))}
	for _, k := range task.Kinds() {
		sl := &slice{values: map[string]string{}}
		for _, f := range task.MustLookup(k).Fields {
			if f.Type != task.FieldFile {
				sl.values[f.Name] = ""
			}
		}
		s.slices[k] = sl
	}
	return s
}

func (s *Store) slice(k task.Kind) (*slice, error) {
	sl, ok := s.slices[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownTask, k)
	}
	return sl, nil
}

func (sl *slice) snapshot(k task.Kind) Snapshot {
	vals := make(map[string]string, len(sl.values))
	for n, v := range sl.values {
		vals[n] = v
	}
	snap := Snapshot{Kind: k, Values: vals}
	if sl.image != nil {
		img := *sl.image
		snap.Image = &img
	}
	return snap
}

// Get returns the current values of task k.
func (s *Store) Get(k task.Kind) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, err := s.slice(k)
	if err != nil {
		return Snapshot{}, err
	}
	return sl.snapshot(k), nil
}

// Set stores raw exactly as typed. Only k's slice is touched.
func (s *Store) Set(k task.Kind, field, raw string) (Snapshot, error) {
	f, ok := task.LookupField(k, field)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, k, field)
	}
	if f.Type == task.FieldFile {
		return Snapshot{}, fmt.Errorf("%w: %s.%s", ErrNotTextField, k, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.slice(k)
	if err != nil {
		return Snapshot{}, err
	}
	sl.values[field] = raw
	return sl.snapshot(k), nil
}

// SetImage holds img for the task that takes a file; a nil img clears it.
func (s *Store) SetImage(k task.Kind, img *Image) (Snapshot, error) {
	if _, ok := task.LookupField(k, task.FileFieldName); !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoFileField, k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.slice(k)
	if err != nil {
		return Snapshot{}, err
	}
	if img == nil {
		sl.image = nil
	} else {
		cp := *img
		cp.Data = append([]byte(nil), img.Data...)
		sl.image = &cp
	}
	return sl.snapshot(k), nil
}

// ClearImage drops the held image of k.
func (s *Store) ClearImage(k task.Kind) (Snapshot, error) {
	return s.SetImage(k, nil)
}

// Restore loads previously saved text values into k. Unknown names are skipped.
func (s *Store) Restore(k task.Kind, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.slice(k)
	if err != nil {
		return err
	}
	for n, v := range values {
		if _, ok := sl.values[n]; ok {
			sl.values[n] = v
		}
	}
	return nil
}
