package main

import (
	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/app/server"
	"surfscale-engine/internal/config"
)

// Container entrypoint: configuration comes from configs/application.yaml and APP_ env only.
func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)

	if err := server.Run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
