// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/drainguard_node/internal/app"
	"github.com/relabs-tech/drainguard_node/internal/config"
)

func main() {
	configPath := flag.String("config", "./drainguard_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "use simulated sensors instead of real hardware")
	flag.Parse()

	log.Println("starting drainguard sensor node (sensors → serial)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunNode(*mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
