package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flyxion/internal/app"
	"flyxion/internal/config"
	"flyxion/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("RSVP_CONFIG"), "path to a YAML config overlaying the built-in defaults")
	dumpConfig := flag.String("dump-config", "", "write the effective configuration to this path and exit")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *dumpConfig != "" {
		if err := settings.WriteYAML(*dumpConfig); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{
		Logger:   telemetry.WrapLogger(log.Default()),
		Settings: settings,
	}); err != nil {
		log.Fatalf("%v", err)
	}
}
