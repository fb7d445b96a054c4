package project

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/annotation"
	"github.com/marine-acoustics/hydroscope/internal/timezone"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "survey.hsproj")
	store := NewStore(dbPath)
	defer store.Close()

	t0 := time.Date(2025, 4, 22, 16, 12, 34, 0, time.UTC)
	saved := &Snapshot{
		Name:        "Acme Marine - Site Survey",
		Mode:        timezone.UserZone,
		UserZone:    "Australia/Sydney",
		WindowStart: 120,
		WindowEnd:   480,
		Sources: []string{
			"/data/wavtS_20250423_021234.txt",
			"/data/wavtS_20250423_022235.txt",
		},
		Annotations: []annotation.Annotation{
			{ID: "a-1", Title: "whale call", Notes: "humpback", Start: t0, End: t0.Add(time.Minute)},
			{ID: "a-2", Title: "vessel", Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)},
		},
	}

	ctx := context.Background()
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got.Name != saved.Name {
		t.Errorf("name = %q, want %q", got.Name, saved.Name)
	}
	if got.Mode != timezone.UserZone || got.UserZone != "Australia/Sydney" {
		t.Errorf("mode = %s/%s, want user/Australia/Sydney", got.Mode, got.UserZone)
	}
	if got.WindowStart != 120 || got.WindowEnd != 480 {
		t.Errorf("window = [%d, %d), want [120, 480)", got.WindowStart, got.WindowEnd)
	}
	if len(got.Sources) != 2 || got.Sources[0] != saved.Sources[0] {
		t.Errorf("sources = %v", got.Sources)
	}
	if len(got.Annotations) != 2 {
		t.Fatalf("annotations = %d, want 2", len(got.Annotations))
	}
	if got.Annotations[0].ID != "a-1" || !got.Annotations[0].Start.Equal(t0) {
		t.Errorf("annotation 0 = %+v", got.Annotations[0])
	}
	if got.Annotations[0].Notes != "humpback" || got.Annotations[1].Notes != "" {
		t.Errorf("notes round trip failed: %+v", got.Annotations)
	}
}

func TestSaveReplacesPreviousState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "survey.hsproj")
	store := NewStore(dbPath)
	defer store.Close()

	ctx := context.Background()
	first := &Snapshot{
		Name: "first", Mode: timezone.FileZone,
		Sources: []string{"/data/a.txt", "/data/b.txt"},
		Annotations: []annotation.Annotation{
			{ID: "old", Title: "old", Start: time.Now().UTC(), End: time.Now().UTC()},
		},
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	second := &Snapshot{
		Name: "second", Mode: timezone.LocalZone,
		Sources: []string{"/data/c.txt"},
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Name != "second" || got.Mode != timezone.LocalZone {
		t.Errorf("project row not replaced: %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "/data/c.txt" {
		t.Errorf("sources not replaced: %v", got.Sources)
	}
	if len(got.Annotations) != 0 {
		t.Errorf("annotations not cleared: %v", got.Annotations)
	}
}

func TestLoadEmptyProject(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.hsproj")
	store := NewStore(dbPath)
	defer store.Close()

	// Initialize the schema through the write path, then load.
	if err := store.Save(context.Background(), &Snapshot{Name: "x", Mode: timezone.FileZone}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fresh := NewStore(filepath.Join(t.TempDir(), "other.hsproj"))
	defer fresh.Close()
	if err := fresh.Save(context.Background(), &Snapshot{Name: "y", Mode: timezone.FileZone}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := fresh.Load(context.Background()); err != nil {
		t.Errorf("Load() after save error: %v", err)
	}
}

func TestLoadMissingRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "new.hsproj")
	store := NewStore(dbPath)
	defer store.Close()

	// Create the schema without saving a session.
	db, err := store.getWriteDB()
	if err != nil {
		t.Fatalf("getWriteDB() error: %v", err)
	}
	_ = db

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoProject) {
		t.Errorf("Load() error = %v, want ErrNoProject", err)
	}
}
