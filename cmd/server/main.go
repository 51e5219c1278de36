package main

import (
	"github.com/joho/godotenv"
	"github.com/kesav2807/SocialMediaApplication/internal/cache"
	"github.com/kesav2807/SocialMediaApplication/internal/config"
	"github.com/kesav2807/SocialMediaApplication/internal/db"
	clog "github.com/kesav2807/SocialMediaApplication/internal/log"
	"github.com/kesav2807/SocialMediaApplication/internal/server"
	"github.com/kesav2807/SocialMediaApplication/internal/ws"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	var store cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		redis, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, suggestions uncached")
		} else {
			defer redis.Close()
			store = redis
		}
	}

	hub := ws.NewHub()
	r := server.SetupRouter(cfg, gdb, hub, store)
	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
