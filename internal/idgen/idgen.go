// Package idgen generates the opaque identifiers assigned to events on first
// persistence.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// EventPrefix is prepended to every generated event ID.
const EventPrefix = "ev-"

// alphabet is lowercase so IDs survive case-insensitive lookups and URLs.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// size is the number of random characters after the prefix.
const size = 12

// NewEventID returns a fresh event ID such as "ev-3k9x0c2m1q7z".
func NewEventID() (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return EventPrefix + id, nil
}

// IsGenerated reports whether id has the shape produced by NewEventID.
// Producer-supplied IDs are accepted by the store regardless.
func IsGenerated(id string) bool {
	rest, ok := strings.CutPrefix(id, EventPrefix)
	if !ok || len(rest) != size {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
