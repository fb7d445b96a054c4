package spectrum

import (
	"testing"
	"time"
)

func TestToCanonical(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	testCases := []struct {
		name string
		wall time.Time
		loc  *time.Location
		want time.Time
	}{
		{
			name: "UTC is identity",
			wall: time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC),
		},
		{
			name: "AEST offset applied",
			wall: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			loc:  sydney,
			want: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "AEDT offset applied",
			wall: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			loc:  sydney,
			want: time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToCanonical(tc.wall, tc.loc)
			if !got.Equal(tc.want) {
				t.Errorf("ToCanonical() = %v, want %v", got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ToCanonical() location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestWallRoundTrip(t *testing.T) {
	perth, err := time.LoadLocation("Australia/Perth")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	instant := time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC)
	wall := Wall(instant, perth)
	if got := ToCanonical(wall, perth); !got.Equal(instant) {
		t.Errorf("round trip = %v, want %v", got, instant)
	}
}

func TestSourceFileBounds(t *testing.T) {
	var empty SourceFile
	if !empty.Start().IsZero() || !empty.End().IsZero() {
		t.Error("empty file should have zero start and end")
	}

	base := time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC)
	f := SourceFile{
		Samples: []Sample{
			{Instant: base},
			{Instant: base.Add(time.Second)},
			{Instant: base.Add(2 * time.Second)},
		},
	}

	if !f.Start().Equal(base) {
		t.Errorf("Start() = %v, want %v", f.Start(), base)
	}
	if !f.End().Equal(base.Add(2 * time.Second)) {
		t.Errorf("End() = %v, want %v", f.End(), base.Add(2*time.Second))
	}
	if f.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", f.Duration())
	}
}
