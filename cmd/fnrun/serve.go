// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/z5labs/fnrun"
	"github.com/z5labs/fnrun/adapter"
	"github.com/z5labs/fnrun/app"
	"github.com/z5labs/fnrun/appbuilder"
	"github.com/z5labs/fnrun/config"
	"github.com/z5labs/fnrun/fn"
	"github.com/z5labs/fnrun/function"
	"github.com/z5labs/fnrun/http"
	"github.com/z5labs/fnrun/internal/logging"
	"github.com/z5labs/fnrun/internal/otelconfig"

	"github.com/spf13/cobra"
)

type serveConfig struct {
	Logging logging.Config    `config:",squash"`
	OTel    otelconfig.Config `config:",squash"`

	Port    uint `config:"http_port"`
	RawBody bool `config:"raw_body"`

	MaxRawSize  config.ByteSize `config:"max_raw_size"`
	MaxJSONSize config.ByteSize `config:"max_json_size"`
	MaxTextSize config.ByteSize `config:"max_text_size"`
	MaxFormSize config.ByteSize `config:"max_form_size"`

	ReadTimeout     time.Duration `config:"read_timeout"`
	WriteTimeout    time.Duration `config:"write_timeout"`
	IdleTimeout     time.Duration `config:"idle_timeout"`
	ShutdownTimeout time.Duration `config:"shutdown_timeout"`
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the function over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnrun.Run(
				cmd.Context(),
				appbuilder.Recover(serveBuilder(function.Handler)),
				sources(cmd, configFile)...,
			)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	cmd.Flags().Uint("http-port", 3000, "Port to listen on")
	return cmd
}

func serveBuilder(h fn.Handler) fnrun.AppBuilder[serveConfig] {
	return fnrun.AppBuilderFunc[serveConfig](func(ctx context.Context, cfg serveConfig) (fnrun.App, error) {
		logHandler, err := logging.NewHandler(os.Stderr, cfg.Logging)
		if err != nil {
			return nil, err
		}

		err = otelconfig.Init(ctx, cfg.OTel)
		if err != nil {
			return nil, err
		}

		a := adapter.New(
			h,
			adapter.LogHandler(logHandler),
			adapter.RawBody(cfg.RawBody),
			adapter.MaxRawSize(cfg.MaxRawSize.Int64()),
			adapter.MaxJSONSize(cfg.MaxJSONSize.Int64()),
			adapter.MaxTextSize(cfg.MaxTextSize.Int64()),
			adapter.MaxFormSize(cfg.MaxFormSize.Int64()),
		)

		rt := http.NewRuntime(
			http.ListenOnPort(cfg.Port),
			http.LogHandler(logHandler),
			http.Handle("/", a),
			http.ReadTimeout(cfg.ReadTimeout),
			http.WriteTimeout(cfg.WriteTimeout),
			http.IdleTimeout(cfg.IdleTimeout),
			http.ShutdownTimeout(cfg.ShutdownTimeout),
		)

		slog.New(logHandler).InfoContext(
			ctx,
			"serving function",
			slog.Uint64("port", uint64(cfg.Port)),
			slog.Bool("raw_body", cfg.RawBody),
			slog.String("max_json_size", cfg.MaxJSONSize.String()),
		)

		return app.Recover(
			app.WithSignalNotifications(rt, os.Interrupt, syscall.SIGTERM),
		), nil
	})
}
