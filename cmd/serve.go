package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/user/hardenctl/pkg/config"
	"github.com/user/hardenctl/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the engines over HTTP",
	Long: `Runs the scan, analysis, remediation and ledger engines behind an HTTP
API so a hardenctl client on another machine can drive sessions with
--remote. Applies still require "confirmed": true per request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dryRun = dryRun || cfg.DryRun

		log := logrus.NewEntry(logrus.StandardLogger())
		ctx := context.Background()

		engines, store, err := buildInProcess(ctx, cfg, dryRun, log)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := &http.Server{
			Addr:         addr,
			Handler:      server.New(engines, log).Routes(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("engine server listening")
			errCh <- srv.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8070", "Listen address")
	serveCmd.Flags().Bool("dry-run", false, "Run all applies with ansible --check")
	rootCmd.AddCommand(serveCmd)
}
