package idgen

import (
	"strings"
	"testing"
)

func TestNewEventID_Shape(t *testing.T) {
	id, err := NewEventID()
	if err != nil {
		t.Fatalf("NewEventID() error: %v", err)
	}
	if !strings.HasPrefix(id, EventPrefix) {
		t.Errorf("NewEventID() = %q, want prefix %q", id, EventPrefix)
	}
	if len(id) != len(EventPrefix)+size {
		t.Errorf("NewEventID() length = %d, want %d", len(id), len(EventPrefix)+size)
	}
	if !IsGenerated(id) {
		t.Errorf("IsGenerated(%q) = false", id)
	}
}

func TestNewEventID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := NewEventID()
		if err != nil {
			t.Fatalf("NewEventID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsGenerated(t *testing.T) {
	for _, tc := range []struct {
		id   string
		want bool
	}{
		{"ev-0123456789ab", true},
		{"ev-0123456789AB", false},
		{"ev-short", false},
		{"bd-0123456789ab", false},
		{"42", false},
		{"", false},
	} {
		if got := IsGenerated(tc.id); got != tc.want {
			t.Errorf("IsGenerated(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
