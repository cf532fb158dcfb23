// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config layers configuration sources into a single store and
// decodes the result into a typed struct.
//
// Sources are applied in order and later sources override earlier ones,
// so the usual stack is defaults, then a YAML file, then the process
// environment, then command line flags:
//
//	m, err := config.Read(
//	    config.Map{"http_port": 3000},
//	    config.FromFile("fnrun.yaml"),
//	    config.FromEnv(),
//	    config.FromFlags(cmd.Flags()),
//	)
//
// Keys are case insensitive. Struct fields are matched using the
// `config` tag.
package config
