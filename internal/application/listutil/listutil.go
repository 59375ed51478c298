// Package listutil parses list-view state from query strings so filtered
// views stay bookmarkable.
package listutil

import (
	"net/url"
	"strings"
)

// SearchKey is the query parameter holding free-text search.
const SearchKey = "q"

// FilterParams carries search and filter parameters.
type FilterParams struct {
	Search  string            // free-text search query, trimmed
	Filters map[string]string // exact-match filters (e.g. who=Sam)
}

// ParseFilterParams extracts search and named filters from URL query values.
// PRE: filterKeys lists the allowed filter parameter names
// POST: returns FilterParams with only recognised keys
func ParseFilterParams(q url.Values, filterKeys []string) FilterParams {
	fp := FilterParams{
		Search:  strings.TrimSpace(q.Get(SearchKey)),
		Filters: make(map[string]string),
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// ParseChoice returns the value of key when it is one of allowed, else fallback.
func ParseChoice(q url.Values, key string, allowed []string, fallback string) string {
	v := q.Get(key)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

// ContainsFold reports whether substr is within s, ignoring case.
// An empty substr matches everything.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// With returns q encoded with each key/value pair applied. An empty value
// removes the key. q is not modified.
func With(q url.Values, pairs ...string) string {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			out.Del(pairs[i])
		} else {
			out.Set(pairs[i], pairs[i+1])
		}
	}
	return out.Encode()
}
