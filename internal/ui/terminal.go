package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
func ShouldUseColor() bool {
	return colorEnabled(os.Getenv, term.IsTerminal(int(os.Stdout.Fd())))
}

// colorEnabled applies the color environment conventions. NO_COLOR and
// EVENTDESK_NO_COLOR disable color, CLICOLOR_FORCE=1 forces it, and
// CLICOLOR=0 or TERM=dumb disable it. Otherwise color follows isTTY.
func colorEnabled(getenv func(string) string, isTTY bool) bool {
	if getenv("NO_COLOR") != "" || getenv("EVENTDESK_NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" || getenv("TERM") == "dumb" {
		return false
	}
	return isTTY
}
