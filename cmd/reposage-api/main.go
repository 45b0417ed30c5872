package main

import (
	"log"

	"github.com/reposage/reposage-api/internal/config"
	"github.com/reposage/reposage-api/internal/infrastructure/server"
)

func main() {
	log.Println("Starting RepoSage API...")

	// Load Configuration
	cfg := config.Load()

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
