// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"github.com/z5labs/fnrun/config"

	"github.com/spf13/cobra"
)

func defaults() config.Map {
	return config.Map{
		"log_level":  "info",
		"log_format": "text",

		"otel_exporter":     "none",
		"otel_service_name": "fnrun",

		"http_port":        3000,
		"raw_body":         false,
		"max_raw_size":     "100kb",
		"max_json_size":    "100kb",
		"max_text_size":    "100kb",
		"max_form_size":    "100kb",
		"read_timeout":     "10s",
		"write_timeout":    "0s",
		"idle_timeout":     "120s",
		"shutdown_timeout": "10s",

		"node_env":       "",
		"restart_delay":  "3s",
		"stop_timeout":   "30s",
		"watch_debounce": "500ms",
		"watch_dir":      "",
	}
}

// sources lists config sources from lowest to highest precedence.
func sources(cmd *cobra.Command, configFile string) []config.Source {
	return []config.Source{
		defaults(),
		config.FromFile(configFile),
		config.FromEnv(),
		config.FromFlags(cmd.Flags()),
	}
}
