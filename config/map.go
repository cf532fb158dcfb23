// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

// Map is an ordinary map[string]any but implements the Source interface.
// It's typically used for defaults.
type Map map[string]any

// Apply implements the Source interface. Nested maps are flattened
// into dot separated keys.
func (m Map) Apply(store Store) error {
	walkMap(m, store, "")
	return nil
}

func walkMap(m map[string]any, store Store, prefix string) {
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			walkMap(x, store, k)
		case Map:
			walkMap(x, store, k)
		default:
			store.Set(k, x)
		}
	}
}
