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

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/objstore"
	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := server.NewConfigFromEnv()

	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	var objects objstore.Store
	if cfg.S3.Endpoint != "" {
		s3, err := objstore.NewS3(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("connecting object store: %v", err)
		}
		objects = s3
	} else {
		log.Println("no S3 endpoint configured, uploads are kept in memory")
		objects = objstore.NewMemory("")
	}

	metrics := server.NewMetrics()
	h := server.NewHub(st, metrics)
	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)

	srv := server.New(*cfg, st, authService, h, objects, metrics)
	httpServer := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	if err := srv.Shutdown(httpServer, shutdownTimeout); err != nil {
		log.Printf("shutdown incomplete: %v", err)
	}
}
