package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namikmesic/boardmate-chat/internal/devserver"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runDevServer(cmd *cobra.Command, args []string) error {
	port := devPort
	if port == 0 {
		port = cfg.DevServerPort
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: devserver.New(devserver.Options{
			Token: cfg.AccessToken,
			Delay: cfg.DevServerDelay,
		}),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", port).
			Bool("auth", cfg.AccessToken != "").
			Msg("devserver started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("devserver: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown devserver: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}
