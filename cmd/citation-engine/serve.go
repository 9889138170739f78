// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the citation pipeline over HTTP",
	Long: `Serve exposes the pipeline as an HTTP service.

  POST /citations   {"text": "..."} with "Authorization: Bearer TOKEN"
  GET  /citations   describes the endpoint
  GET  /health      liveness check
  GET  /metrics     Prometheus metrics

The token comes from server.api_token, the API_TOKEN environment variable
or .secrets/api-token; the server refuses to start without one. Each
request is an independent run with its own run directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := server.NewMetrics()
	o, cleanup, err := newOrchestrator(ctx, cfg, io.Discard)
	if err != nil {
		return err
	}
	defer cleanup()
	o.Observer = metrics

	srv, err := server.New(cfg.Server, o, metrics, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Listening on http://%s\n", srv.Addr())
	return srv.ListenAndServe(ctx)
}
