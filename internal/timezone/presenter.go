// Package timezone converts canonical instants to operator-visible text.
// Conversion is presentation-only: canonical storage is never mutated and
// every caller states the display mode explicitly.
package timezone

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects which zone a canonical instant is displayed in.
type Mode string

const (
	// FileZone displays instants in the zone declared by whichever
	// recording contains them.
	FileZone Mode = "file"

	// LocalZone displays instants in the host zone, resolved once at
	// presenter construction.
	LocalZone Mode = "local"

	// UserZone displays instants in an operator-chosen zone.
	UserZone Mode = "user"
)

// DisplayFormat is the wall-clock layout used for operator-visible text.
const DisplayFormat = "2006-01-02 15:04:05"

var (
	// ErrUnknownMode indicates a display mode outside the three defined ones.
	ErrUnknownMode = errors.New("unknown timezone mode")

	// ErrNoUserZone indicates UserZone was requested before a zone was chosen.
	ErrNoUserZone = errors.New("no user timezone selected")
)

// ParseMode validates a mode string from configuration or a project file.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case FileZone, LocalZone, UserZone:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// FileZoneResolver maps a canonical instant to the declared zone of the
// recording containing it. The Timeline provides this.
type FileZoneResolver interface {
	ZoneFor(instant time.Time) (*time.Location, string)
}

// Presenter renders canonical instants in a selected display zone. The host
// zone is captured once at construction; there is no other ambient zone
// state anywhere in the engine.
type Presenter struct {
	files FileZoneResolver

	local     *time.Location
	localName string

	user     *time.Location
	userName string
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithHostZone overrides the host zone, primarily for tests.
func WithHostZone(loc *time.Location, name string) PresenterOption {
	return func(p *Presenter) {
		p.local = loc
		p.localName = name
	}
}

// NewPresenter creates a Presenter over the given file-zone resolver.
func NewPresenter(files FileZoneResolver, opts ...PresenterOption) *Presenter {
	name, _ := time.Now().Zone()
	p := &Presenter{
		files:     files,
		local:     time.Local,
		localName: name,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetUserZone selects the zone used by UserZone mode.
func (p *Presenter) SetUserZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", name, err)
	}
	p.user = loc
	p.userName = name
	return nil
}

// UserZoneName returns the currently selected user zone name, if any.
func (p *Presenter) UserZoneName() string {
	return p.userName
}

// Zone resolves the display zone for an instant under the given mode.
func (p *Presenter) Zone(instant time.Time, mode Mode) (*time.Location, string, error) {
	switch mode {
	case FileZone:
		loc, name := p.files.ZoneFor(instant)
		if loc == nil {
			loc, name = time.UTC, "UTC"
		}
		return loc, name, nil
	case LocalZone:
		return p.local, p.localName, nil
	case UserZone:
		if p.user == nil {
			return nil, "", ErrNoUserZone
		}
		return p.user, p.userName, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Present formats a canonical instant for display under the given mode and
// returns the rendered string together with the zone it was rendered in.
func (p *Presenter) Present(instant time.Time, mode Mode) (string, string, error) {
	loc, name, err := p.Zone(instant, mode)
	if err != nil {
		return "", "", err
	}
	return instant.In(loc).Format(DisplayFormat), name, nil
}
