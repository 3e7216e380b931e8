// Package ui renders CLI output with ANSI colors when the terminal allows.
package ui

import (
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorSuccess = 114 // green
	colorFailed  = 203 // red
	colorPending = 221 // yellow
)

var noColor bool

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderWarning returns s in the pending (yellow) color.
func RenderWarning(s string) string { return render(colorPending, s) }

// RenderStatus returns the status name colored by outcome.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusSuccess:
		return render(colorSuccess, s.String())
	case model.StatusFailed:
		return render(colorFailed, s.String())
	case model.StatusPending:
		return render(colorPending, s.String())
	}
	return s.String()
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Init disables color unless ShouldUseColor allows it.
func Init() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
