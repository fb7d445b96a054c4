package annotation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 4, 23, 2, 0, 0, 0, time.UTC)

func TestAddValidation(t *testing.T) {
	s := NewStore()

	testCases := []struct {
		name string
		a    Annotation
		want error
	}{
		{
			name: "title at the limit",
			a:    Annotation{Title: strings.Repeat("x", MaxTitleLen), Start: t0, End: t0.Add(time.Minute)},
		},
		{
			name: "title over the limit",
			a:    Annotation{Title: strings.Repeat("x", MaxTitleLen+1), Start: t0, End: t0.Add(time.Minute)},
			want: ErrTitleTooLong,
		},
		{
			name: "end before start",
			a:    Annotation{Title: "whale", Start: t0.Add(time.Minute), End: t0},
			want: ErrInvalidRange,
		},
		{
			name: "zero-length range",
			a:    Annotation{Title: "instantaneous", Start: t0, End: t0},
			want: ErrInvalidRange,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Add(tc.a)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Errorf("Add() error = %v, want %v", err, tc.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add() error: %v", err)
			}
			if got.ID == "" {
				t.Error("Add() must assign an ID")
			}
		})
	}
}

func TestUpdateDelete(t *testing.T) {
	s := NewStore()

	a, err := s.Add(Annotation{Title: "whale", Start: t0, End: t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	a.Notes = "humpback, strong signal"
	if err := s.Update(a); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Notes != a.Notes {
		t.Errorf("notes = %q, want %q", got.Notes, a.Notes)
	}

	if err := s.Update(Annotation{ID: "missing", Title: "x", Start: t0, End: t0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := s.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestListOrderedByStart(t *testing.T) {
	s := NewStore()

	for _, a := range []Annotation{
		{ID: "b", Title: "second", Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)},
		{ID: "c", Title: "tied later id", Start: t0, End: t0.Add(time.Minute)},
		{ID: "a", Title: "tied earlier id", Start: t0, End: t0.Add(time.Minute)},
	} {
		if _, err := s.Add(a); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	var ids []string
	for a := range s.ListOrderedByStart() {
		ids = append(ids, a.ID)
	}
	want := []string{"a", "c", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}

	// Restartable: a second pass yields the same sequence.
	count := 0
	for range s.ListOrderedByStart() {
		count++
	}
	if count != 3 {
		t.Errorf("second pass yielded %d, want 3", count)
	}
}

func TestOverlapping(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(Annotation{Title: "early", Start: t0, End: t0.Add(time.Minute)}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := s.Add(Annotation{Title: "late", Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got := s.Overlapping(t0.Add(30*time.Second), t0.Add(90*time.Minute))
	if len(got) != 2 {
		t.Fatalf("Overlapping() = %d annotations, want 2", len(got))
	}

	got = s.Overlapping(t0.Add(2*time.Minute), t0.Add(3*time.Minute))
	if len(got) != 0 {
		t.Errorf("Overlapping() in empty span = %d annotations, want 0", len(got))
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	s := NewStore()
	added, err := s.Add(Annotation{Title: "whale", Notes: "humpback", Start: t0, End: t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export.txt"+ArtifactSuffix)
	var all []Annotation
	for a := range s.ListOrderedByStart() {
		all = append(all, a)
	}
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatal(err)
	}
	// Serializing in a display zone must not shift the canonical instants.
	if err := WriteArtifact(path, "export.txt", sydney, all); err != nil {
		t.Fatalf("WriteArtifact() error: %v", err)
	}

	restored := NewStore()
	n, err := restored.ImportArtifact(path, false)
	if err != nil {
		t.Fatalf("ImportArtifact() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported %d annotations, want 1", n)
	}

	got, err := restored.Get(added.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Title != "whale" || got.Notes != "humpback" || !got.Start.Equal(t0) {
		t.Errorf("restored annotation = %+v", got)
	}
}

func TestImportArtifactMerge(t *testing.T) {
	s := NewStore()
	kept, err := s.Add(Annotation{Title: "kept", Start: t0, End: t0.Add(time.Second)})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "incoming"+ArtifactSuffix)
	if err := WriteArtifact(path, "other.txt", nil, []Annotation{
		{ID: "in-1", Title: "incoming", Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)},
	}); err != nil {
		t.Fatalf("WriteArtifact() error: %v", err)
	}

	if _, err := s.ImportArtifact(path, true); err != nil {
		t.Fatalf("ImportArtifact() error: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after merge", s.Len())
	}
	if _, err := s.Get(kept.ID); err != nil {
		t.Error("merge import must keep existing annotations")
	}
}
