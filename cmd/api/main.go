package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/db"
	"gigflow/gig"
	"gigflow/hiring"
	"gigflow/notify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Error("bootstrap database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(registry, logger)

	gigSvc := gig.NewService(gig.NewRepository(pool))
	bidSvc := bid.NewService(bid.NewRepository(pool), gigSvc)
	hireSvc := hiring.NewService(pool, nil, hiring.NewRecorder(pool, logger), dispatcher, logger)
	authSvc := auth.NewService(auth.NewRepository(pool), jwtSecret)

	server := &Server{
		authService: authSvc,
		gigService:  gigSvc,
		bidService:  bidSvc,
		hireService: hireSvc,
		registry:    registry,
		logger:      logger,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("gigflow api listening", "port", port)
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}
