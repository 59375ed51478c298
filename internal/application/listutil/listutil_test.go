package listutil

import (
	"net/url"
	"testing"
)

// TestParseFilterParams verifies search trimming and recognised filter keys.
func TestParseFilterParams(t *testing.T) {
	q := url.Values{"q": {"  555 "}, "who": {"Sam"}, "bogus": {"x"}}
	fp := ParseFilterParams(q, []string{"who", "channel"})
	if fp.Search != "555" {
		t.Errorf("expected search 555, got %q", fp.Search)
	}
	if fp.Filters["who"] != "Sam" {
		t.Errorf("expected who=Sam, got %q", fp.Filters["who"])
	}
	if _, ok := fp.Filters["bogus"]; ok {
		t.Error("unrecognised key should be dropped")
	}
	if _, ok := fp.Filters["channel"]; ok {
		t.Error("absent key should not appear")
	}
}

// TestParseChoice verifies fallback for unknown values.
func TestParseChoice(t *testing.T) {
	allowed := []string{"active", "inactive"}
	tests := []struct {
		raw  string
		want string
	}{
		{"inactive", "inactive"},
		{"", "active"},
		{"archived", "active"},
	}
	for _, tt := range tests {
		q := url.Values{"set": {tt.raw}}
		if got := ParseChoice(q, "set", allowed, "active"); got != tt.want {
			t.Errorf("ParseChoice(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// TestContainsFold verifies case-insensitive matching.
func TestContainsFold(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Alice Smith", "alice", true},
		{"@ALICE", "Alice", true},
		{"Bob", "", true},
		{"Bob", "alice", false},
	}
	for _, tt := range tests {
		if got := ContainsFold(tt.s, tt.sub); got != tt.want {
			t.Errorf("ContainsFold(%q, %q) = %v, want %v", tt.s, tt.sub, got, tt.want)
		}
	}
}

// TestWith verifies links keep existing state and drop empty values.
func TestWith(t *testing.T) {
	q := url.Values{"set": {"inactive"}, "q": {"bob"}}
	got := With(q, "modal", "add", "q", "")
	if got != "modal=add&set=inactive" {
		t.Errorf("With() = %q", got)
	}
	if q.Get("q") != "bob" {
		t.Error("With modified its input")
	}
}
