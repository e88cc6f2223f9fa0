// File: main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := InitLogger(cfg); err != nil {
		log.Fatal(err)
	}
	defer Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newServer(cfg, NewGenerator(nil))
	go s.widgets.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:         cfg.Bind,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			Sugar.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	Sugar.Infof("Server listening on %s", cfg.Bind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Sugar.Fatalf("server stopped with error: %v", err)
	}
}
