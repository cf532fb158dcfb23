// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fnrun runs a single function handler behind an HTTP server and,
// optionally, keeps that server alive under a process supervisor.
//
// An application is described by two pieces: a config type, T, which is
// unmarshalled from one or more [config.Source]s, and an [AppBuilder]
// which turns a T into a runnable [App].
//
//	err := fnrun.Run(
//	    ctx,
//	    fnrun.AppBuilderFunc[Config](buildServer),
//	    config.Map(defaults),
//	    config.FromEnv(),
//	)
//
// Components which need cleanup after the [App] returns, such as trace
// exporters, register a [lifecycle.Hook] with the [lifecycle.Context]
// found in the build context. [Run] always executes those hooks, even
// when the [App] fails.
package fnrun
