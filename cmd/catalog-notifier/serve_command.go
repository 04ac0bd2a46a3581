package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-catalog-notifier/internal/httpapi"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, ctx, addrFlag)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (defaults to admin.addr)")
	return cmd
}

func runServer(cmd *cobra.Command, ctx *commandContext, addr string) error {
	signalCtx, cancel := signal.NotifyContext(commandContextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	module, err := ctx.ensureModule(cmd)
	if err != nil {
		return err
	}
	lgr := module.Logger()

	if strings.TrimSpace(addr) == "" {
		addr = module.Config().Admin.Addr
	}
	var metricsHandler http.Handler
	if m := module.Metrics(); m != nil {
		metricsHandler = m.Handler()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(module.Manager(), metricsHandler, lgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("admin api listening", logger.Field{Key: "addr", Value: addr})
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin api: %w", err)
	case <-signalCtx.Done():
	}

	lgr.Info("admin api shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}
