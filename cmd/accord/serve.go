package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/accord/executor"
	"github.com/quailyquaily/accord/negotiation"
	"github.com/quailyquaily/accord/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the negotiation daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger()

	gate := gateFromViper(log)
	defer func() { _ = gate.Close() }()

	history := historyFromViper(log)
	defer func() { _ = history.Close() }()

	store := negotiation.NewStore(log)
	coord := negotiation.NewCoordinator(store, gate, executor.NewDryRun(gate, log), history, log)
	srv := server.New(coord, gate, viper.GetString("server.addr"), log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxAge := viper.GetDuration("sessions.max_age")
	interval := viper.GetDuration("sessions.sweep_interval")
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coord.ClearOldSessions(maxAge)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("server_shutting_down")
		return srv.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
