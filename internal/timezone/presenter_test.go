package timezone

import (
	"errors"
	"testing"
	"time"
)

type staticResolver struct {
	loc  *time.Location
	name string
}

func (r staticResolver) ZoneFor(time.Time) (*time.Location, string) {
	return r.loc, r.name
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"file", "local", "user"} {
		if _, err := ParseMode(valid); err != nil {
			t.Errorf("ParseMode(%q) error: %v", valid, err)
		}
	}
	if _, err := ParseMode("utc"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(utc) error = %v, want ErrUnknownMode", err)
	}
}

func TestPresent(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	vancouver, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	p := NewPresenter(
		staticResolver{loc: sydney, name: "Australia/Sydney"},
		WithHostZone(vancouver, "America/Vancouver"),
	)
	if err := p.SetUserZone("UTC"); err != nil {
		t.Fatalf("SetUserZone() error: %v", err)
	}

	instant := time.Date(2025, 4, 22, 16, 12, 34, 0, time.UTC)

	testCases := []struct {
		mode     Mode
		want     string
		wantZone string
	}{
		{FileZone, "2025-04-23 02:12:34", "Australia/Sydney"},
		{LocalZone, "2025-04-22 09:12:34", "America/Vancouver"},
		{UserZone, "2025-04-22 16:12:34", "UTC"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.mode), func(t *testing.T) {
			got, zone, err := p.Present(instant, tc.mode)
			if err != nil {
				t.Fatalf("Present() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Present() = %q, want %q", got, tc.want)
			}
			if zone != tc.wantZone {
				t.Errorf("zone = %q, want %q", zone, tc.wantZone)
			}
		})
	}
}

func TestPresentErrors(t *testing.T) {
	p := NewPresenter(staticResolver{loc: time.UTC, name: "UTC"})

	if _, _, err := p.Present(time.Now(), UserZone); !errors.Is(err, ErrNoUserZone) {
		t.Errorf("Present(UserZone) error = %v, want ErrNoUserZone", err)
	}
	if _, _, err := p.Present(time.Now(), Mode("bogus")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Present(bogus) error = %v, want ErrUnknownMode", err)
	}
	if err := p.SetUserZone("Not/AZone"); err == nil {
		t.Error("SetUserZone(Not/AZone) should fail")
	}
}

// Presentation never mutates the canonical instant.
func TestPresentIsPure(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	p := NewPresenter(staticResolver{loc: sydney, name: "Australia/Sydney"})

	instant := time.Date(2025, 4, 22, 16, 12, 34, 0, time.UTC)
	before := instant

	if _, _, err := p.Present(instant, FileZone); err != nil {
		t.Fatalf("Present() error: %v", err)
	}
	if !instant.Equal(before) || instant.Location() != time.UTC {
		t.Error("Present() must not mutate the canonical instant")
	}
}
