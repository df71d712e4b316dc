package main

import (
	"whatsapp-bot/internal/config"
	"whatsapp-bot/internal/database"
	"whatsapp-bot/internal/logging"

	"github.com/rs/zerolog/log"
)

// Creates or updates the schema and exits.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Init("info", "json")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
