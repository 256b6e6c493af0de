package main

import (
	"wislet-backend/internal/app"
	"wislet-backend/internal/config"
	"wislet-backend/internal/database"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	fiberApp, db, err := app.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	if db != nil {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		log.Info().Msg("database connected")
	}

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
