// Package annotation manages operator comments anchored to canonical time
// ranges, and their companion JSON export artifact.
package annotation

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxTitleLen is the longest allowed annotation title.
const MaxTitleLen = 24

var (
	// ErrTitleTooLong indicates a title over MaxTitleLen characters.
	ErrTitleTooLong = errors.New("annotation title too long")

	// ErrInvalidRange indicates an annotation whose end does not come after
	// its start.
	ErrInvalidRange = errors.New("invalid annotation range")

	// ErrNotFound indicates an unknown annotation ID.
	ErrNotFound = errors.New("annotation not found")
)

// Annotation is one operator comment over a canonical time range. Instants
// are always UTC; presentation zones are applied only when rendering or
// exporting.
type Annotation struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Notes string    `json:"notes,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (a *Annotation) validate() error {
	if len([]rune(a.Title)) > MaxTitleLen {
		return fmt.Errorf("%w: %q is %d chars, limit %d",
			ErrTitleTooLong, a.Title, len([]rune(a.Title)), MaxTitleLen)
	}
	if !a.End.After(a.Start) {
		return fmt.Errorf("%w: %s does not end after it starts", ErrInvalidRange, a.Title)
	}
	return nil
}

// Store holds annotations in memory. Annotations are created, edited and
// deleted only through explicit calls; navigation and export never remove
// them. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	byID map[string]Annotation
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]Annotation)}
}

// Add validates and stores an annotation. A missing ID is assigned a new
// UUID. Returns the stored annotation.
func (s *Store) Add(a Annotation) (Annotation, error) {
	if err := a.validate(); err != nil {
		return Annotation{}, err
	}

	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.byID[a.ID] = a
	s.mu.Unlock()
	return a, nil
}

// Update replaces an existing annotation by ID.
func (s *Store) Update(a Annotation) error {
	if err := a.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	s.byID[a.ID] = a
	return nil
}

// Delete removes an annotation by ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.byID, id)
	return nil
}

// Get returns an annotation by ID.
func (s *Store) Get(id string) (Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Annotation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, nil
}

// Len returns the number of stored annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ListOrderedByStart returns a restartable iterator over annotations ordered
// by start instant, with the ID as a stable tie-break. Each restart observes
// the store as of that moment.
func (s *Store) ListOrderedByStart() iter.Seq[Annotation] {
	return func(yield func(Annotation) bool) {
		for _, a := range s.snapshot() {
			if !yield(a) {
				return
			}
		}
	}
}

// Overlapping returns the annotations whose range intersects [start, end],
// ordered by start.
func (s *Store) Overlapping(start, end time.Time) []Annotation {
	var out []Annotation
	for _, a := range s.snapshot() {
		if !a.End.Before(start) && !a.Start.After(end) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) snapshot() []Annotation {
	s.mu.RLock()
	out := make([]Annotation, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
