package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/app"
	"github.com/coralcommerce/dispatcher/config"
	"github.com/coralcommerce/dispatcher/db"
	"github.com/coralcommerce/dispatcher/router"
	"github.com/coralcommerce/dispatcher/telemetry"
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}

	db.SetConfigurations(cfg)
	if err := db.Migrate(cfg); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}

	a, err := app.New(cfg, database)
	if err != nil {
		log.Fatalf("wire app: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		log.Fatalf("start app: %v", err)
	}

	r := gin.New()
	router.Initialize(r, cfg, a)

	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("dispatcher listening on :%s", cfg.ApiPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	a.Shutdown()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
