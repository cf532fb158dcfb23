// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/z5labs/fnrun"
	"github.com/z5labs/fnrun/app"
	"github.com/z5labs/fnrun/appbuilder"
	"github.com/z5labs/fnrun/internal/logging"
	"github.com/z5labs/fnrun/lifecycle"
	"github.com/z5labs/fnrun/supervisor"
	"github.com/z5labs/fnrun/watch"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

type superviseConfig struct {
	Logging logging.Config `config:",squash"`

	Dev     bool   `config:"dev"`
	NodeEnv string `config:"node_env"`
	Port    uint   `config:"http_port"`

	RestartDelay  time.Duration `config:"restart_delay"`
	StopTimeout   time.Duration `config:"stop_timeout"`
	WatchDebounce time.Duration `config:"watch_debounce"`
	WatchDir      string        `config:"watch_dir"`
}

func (cfg superviseConfig) devMode() bool {
	return cfg.Dev || cfg.NodeEnv == "development"
}

func newSuperviseCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "supervise [flags] [-- command args...]",
		Short: "Run and supervise the serve process",
		Long: `Supervise runs "fnrun serve" as a child process, or the command
given after --, and restarts it after it crashes.

In development mode (--dev or NODE_ENV=development) crashes are not
restarted. Instead the child is restarted whenever a file below the
working directory changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := childCommand(cmd, args, configFile)
			if err != nil {
				return err
			}

			return fnrun.Run(
				cmd.Context(),
				appbuilder.Recover(superviseBuilder(child)),
				sources(cmd, configFile)...,
			)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file, also passed to the serve process")
	cmd.Flags().Bool("dev", false, "Restart the child on file changes instead of on crashes")
	cmd.Flags().Uint("http-port", 3000, "Port the child listens on, used to detect readiness")
	return cmd
}

// childCommand returns the arguments after -- as the command to
// supervise, defaulting to this executable's serve command.
func childCommand(cmd *cobra.Command, args []string, configFile string) (supervisor.Command, error) {
	if n := cmd.ArgsLenAtDash(); n >= 0 && n < len(args) {
		args = args[n:]
		return supervisor.Command{Path: args[0], Args: args[1:]}, nil
	}
	if len(args) > 0 {
		return supervisor.Command{Path: args[0], Args: args[1:]}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return supervisor.Command{}, err
	}
	serveArgs := []string{"serve"}
	if configFile != "" {
		serveArgs = append(serveArgs, "--config", configFile)
	}
	return supervisor.Command{Path: exe, Args: serveArgs}, nil
}

func superviseBuilder(child supervisor.Spawner) fnrun.AppBuilder[superviseConfig] {
	return fnrun.AppBuilderFunc[superviseConfig](func(ctx context.Context, cfg superviseConfig) (fnrun.App, error) {
		logHandler, err := logging.NewHandler(os.Stderr, cfg.Logging)
		if err != nil {
			return nil, err
		}
		log := slog.New(logHandler)

		opts := []supervisor.Option{
			supervisor.LogHandler(logHandler),
			supervisor.DevMode(cfg.devMode()),
			supervisor.RestartDelay(cfg.RestartDelay),
			supervisor.StopTimeout(cfg.StopTimeout),
		}
		if cfg.Port != 0 {
			addr := net.JoinHostPort("127.0.0.1", strconv.FormatUint(uint64(cfg.Port), 10))
			opts = append(opts, supervisor.ReadyAddr(addr))
		}
		sup := supervisor.New(child, opts...)

		apps := []fnrun.App{sup}
		if cfg.devMode() {
			w, err := newWatcher(ctx, cfg, logHandler)
			if err != nil {
				return nil, err
			}
			apps = append(apps, reloadOnChange(w, sup, cfg.WatchDebounce, log))
		}

		log.InfoContext(ctx, "starting supervisor", slog.Bool("dev", cfg.devMode()))

		return app.Recover(
			app.WithSignalNotifications(app.Group(apps...), os.Interrupt, syscall.SIGTERM),
		), nil
	})
}

func newWatcher(ctx context.Context, cfg superviseConfig, logHandler slog.Handler) (*watch.Watcher, error) {
	dir := cfg.WatchDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}

	w, err := watch.New(dir, watch.LogHandler(logHandler))
	if err != nil {
		return nil, err
	}

	lc, ok := lifecycle.FromContext(ctx)
	if ok {
		lc.OnPostRun(lifecycle.HookFunc(func(context.Context) error {
			return w.Close()
		}))
	}
	return w, nil
}

// reloadOnChange restarts sup once file changes have settled for d.
func reloadOnChange(w *watch.Watcher, sup *supervisor.Supervisor, d time.Duration, log *slog.Logger) fnrun.App {
	return fnrun.AppFunc(func(ctx context.Context) error {
		db := watch.NewDebouncer(d, func() {
			err := sup.Restart(ctx)
			if err == nil || errors.Is(err, supervisor.ErrRestartInProgress) || ctx.Err() != nil {
				return
			}
			log.ErrorContext(ctx, "failed to restart child", logging.Error(err))
		})
		defer db.Stop()

		return w.Run(ctx, func(ev fsnotify.Event) {
			log.InfoContext(ctx, "file changed, scheduling restart", slog.String("path", ev.Name))
			db.Trigger()
		})
	})
}
