// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package adapter

import (
	"net/url"
	"slices"
	"strings"
)

// decodeValues expands bracketed keys into nested values:
//
//	a=1          -> {"a": "1"}
//	a=1&a=2      -> {"a": ["1", "2"]}
//	a[]=1        -> {"a": ["1"]}
//	a[b][c]=1    -> {"a": {"b": {"c": "1"}}}
//
// A key whose shape conflicts with an earlier one keeps the earlier value.
func decodeValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		path := splitKey(k)
		for _, v := range values[k] {
			assign(out, path, v)
		}
	}
	return out
}

// splitKey splits "a[b][]" into ["a", "b", ""]. Malformed brackets
// leave the remainder as part of the last segment.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return []string{key}
	}

	path := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			path[len(path)-1] += rest
			return path
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	if rest != "" {
		path[len(path)-1] += rest
	}
	return path
}

func assign(m map[string]any, path []string, value string) {
	name := path[0]
	if len(path) == 1 {
		switch existing := m[name].(type) {
		case nil:
			m[name] = value
		case string:
			m[name] = []string{existing, value}
		case []string:
			m[name] = append(existing, value)
		}
		return
	}

	if path[1] == "" {
		switch existing := m[name].(type) {
		case nil:
			m[name] = []string{value}
		case string:
			m[name] = []string{existing, value}
		case []string:
			m[name] = append(existing, value)
		}
		return
	}

	child, ok := m[name].(map[string]any)
	if !ok {
		if m[name] != nil {
			return
		}
		child = make(map[string]any)
		m[name] = child
	}
	assign(child, path[1:], value)
}
