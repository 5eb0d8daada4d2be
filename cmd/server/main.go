package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/app"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/config"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/db"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

func main() {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: load config: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(logLevel, cfg.Env)
	lg := logger.L()

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.WithError(err).Fatal("main: connect database")
	}
	defer safeClose(dbConn)

	applied, err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath)
	if err != nil {
		lg.WithError(err).Fatal("main: migrations")
	}
	if len(applied) > 0 {
		lg.WithField("migrations", applied).Info("main: migrations applied")
	}

	application, err := app.New(cfg, dbConn)
	if err != nil {
		lg.WithError(err).Fatal("main: build app")
	}

	go application.Hub.Run(ctx)

	sched, err := application.Scheduler()
	if err != nil {
		lg.WithError(err).Fatal("main: scheduler")
	}
	sched.Start()

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.WithError(err).Error("main: http shutdown")
		}
	}()

	lg.WithField("port", cfg.HTTPPort).Info("main: http server listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.WithError(err).Fatal("main: http server")
	}

	sched.Stop()
	// Let in-flight notifications and emails finish before the DB closes.
	application.Svc.Notifications.Wait()
	lg.Info("main: stopped")
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: close database: %v", err)
	}
}
