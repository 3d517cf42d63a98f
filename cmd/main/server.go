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
)

const shutdownTimeout = 10 * time.Second

func (app *Application) run() error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", app.cfg.Port),
		Handler:     app.routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 2 * time.Minute,
		// No WriteTimeout: it would cut long-lived websocket streams.
	}

	shutdownErr := make(chan error)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.registry.Stop()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	app.logger.Info("server starting", "port", app.cfg.Port)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return err
	}

	app.wg.Wait()
	app.logger.Info("server stopped")
	return nil
}
