package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ArtifactVersion identifies the companion annotation file schema.
const ArtifactVersion = "1.0"

// ArtifactSuffix is appended to a data file path to name its companion
// annotation artifact.
const ArtifactSuffix = ".comments.json"

type artifact struct {
	Version      string            `json:"version"`
	DataFile     string            `json:"data_file"`
	CommentCount int               `json:"comment_count"`
	Comments     []artifactComment `json:"comments"`
}

type artifactComment struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Notes string    `json:"user_notes,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WriteArtifact writes the given annotations as a companion artifact for
// dataFile. Instants are serialized in the given zone; the RFC 3339 offset
// keeps them unambiguous, so importing restores the same canonical instants.
func WriteArtifact(path, dataFile string, zone *time.Location, annotations []Annotation) (err error) {
	if zone == nil {
		zone = time.UTC
	}

	doc := artifact{
		Version:      ArtifactVersion,
		DataFile:     dataFile,
		CommentCount: len(annotations),
		Comments:     make([]artifactComment, len(annotations)),
	}
	for i, a := range annotations {
		doc.Comments[i] = artifactComment{
			ID:    a.ID,
			Title: a.Title,
			Notes: a.Notes,
			Start: a.Start.In(zone),
			End:   a.End.In(zone),
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating annotation artifact: %w", err)
	}
	defer closeWithError(f, &err)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding annotation artifact: %w", err)
	}
	return nil
}

// ImportArtifact reads a companion artifact into the store. With merge set,
// existing annotations are kept and same-ID entries are overwritten;
// otherwise the store is cleared first. Entries without a valid range are
// skipped. Returns the number of imported annotations.
func (s *Store) ImportArtifact(path string, merge bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading annotation artifact: %w", err)
	}

	var doc artifact
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decoding annotation artifact: %w", err)
	}

	if !merge {
		s.mu.Lock()
		s.byID = make(map[string]Annotation)
		s.mu.Unlock()
	}

	imported := 0
	for _, c := range doc.Comments {
		if c.Start.IsZero() || c.End.IsZero() {
			continue
		}
		if _, err := s.Add(Annotation{
			ID:    c.ID,
			Title: c.Title,
			Notes: c.Notes,
			Start: c.Start,
			End:   c.End,
		}); err != nil {
			return imported, fmt.Errorf("importing annotation %q: %w", c.Title, err)
		}
		imported++
	}
	return imported, nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
