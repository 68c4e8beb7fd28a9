package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mt-monitoring/alarmd/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "alarmd: load config:", err)
		os.Exit(1)
	}

	svc, err := newService(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "alarmd: initialize:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "alarmd: start:", err)
		os.Exit(1)
	}
	logging := svc.log.WithField("component", "alarmd")
	logging.Info("alarmd started")

	<-ctx.Done()
	logging.Info("shutdown signal received, draining in-flight evaluations")
	svc.Stop()
	logging.Info("alarmd stopped")
}
