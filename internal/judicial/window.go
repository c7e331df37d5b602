package judicial

import (
	"fmt"
	"time"

	"github.com/ppiankov/kidregistry/internal/model"
)

// nowFunc is replaced by tests
var nowFunc = time.Now

// Window is the daily period in which the API serves requests.
// End is exclusive; Start == End means always open.
type Window struct {
	Start int
	End   int
	Loc   *time.Location
}

// NewWindow builds the window from config; an unknown zone falls back to UTC+8
func NewWindow(cfg model.JudicialConfig) Window {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil || cfg.TimeZone == "" {
		loc = time.FixedZone("CST", 8*3600)
	}
	return Window{Start: cfg.WindowStart, End: cfg.WindowEnd, Loc: loc}
}

// Open reports whether t falls inside the window
func (w Window) Open(t time.Time) bool {
	if w.Start == w.End {
		return true
	}
	h := t.In(w.Loc).Hour()
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

// NextOpen returns the next window start at or after t
func (w Window) NextOpen(t time.Time) time.Time {
	if w.Open(t) {
		return t
	}
	local := t.In(w.Loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), w.Start, 0, 0, 0, w.Loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ClosedError reports a request outside the service window
type ClosedError struct {
	Window   Window
	NextOpen time.Time
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("judicial API serves only %02d:00-%02d:00 %s; next window opens %s",
		e.Window.Start, e.Window.End, e.Window.Loc, e.NextOpen.Format("2006-01-02 15:04 MST"))
}

// Check returns a *ClosedError outside the window
func (w Window) Check() error {
	now := nowFunc()
	if w.Open(now) {
		return nil
	}
	return &ClosedError{Window: w, NextOpen: w.NextOpen(now)}
}
