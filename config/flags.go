// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// Flags is a [Source] backed by command line flags.
type Flags struct {
	fs *pflag.FlagSet
}

// FromFlags returns a Source applying only the flags which were
// explicitly set. Dashes in flag names become underscores, so
// --http-port sets http_port.
func FromFlags(fs *pflag.FlagSet) Flags {
	return Flags{fs: fs}
}

// Apply implements the Source interface.
func (src Flags) Apply(store Store) error {
	if src.fs == nil {
		return nil
	}
	src.fs.Visit(func(f *pflag.Flag) {
		store.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})
	return nil
}
