package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/drainguard_node/internal/app"
	"github.com/relabs-tech/drainguard_node/internal/config"
)

func main() {
	configPath := flag.String("config", "./drainguard_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting drainguard console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
