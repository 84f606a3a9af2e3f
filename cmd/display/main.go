package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/baro_altimeter/internal/app"
	"github.com/relabs-tech/baro_altimeter/internal/config"
)

func main() {
	configPath := flag.String("config", "altimeter_config.txt", "Path to configuration file")
	flag.Parse()

	log.Println("starting altimeter OLED display (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunDisplay(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
