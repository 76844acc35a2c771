package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/sweeps"
)

// Standalone sweep runner for deployments that keep deadline
// enforcement out of the API process.
func main() {
	config.Load()
	db.Init()
	alerts.Init()
	defer alerts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("sweeper running every %s", config.Current.SweepInterval)
	sweeps.RunOnce(ctx)
	sweeps.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("sweeper shutting down")
}
