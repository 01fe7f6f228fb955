// Command backfill runs the player discriminator enrichment pass once and
// exits. Useful after importing historical data or when the post-seed
// enrichment was skipped.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fgcrank/ingestion/internal/cache"
	"fgcrank/ingestion/internal/client"
	"fgcrank/ingestion/internal/config"
	"fgcrank/ingestion/internal/enrich"
	"fgcrank/ingestion/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	useCache := flag.Bool("use-cache", true, "Skip players whose lookup was cached as empty")
	flag.Parse()

	setupLogger()

	cfg := config.MustLoad()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, stopping...")
		cancel()
	}()

	api := client.NewClient(cfg.StartggAPIURL, cfg.StartggAPIKey, cfg.StartggTimeout, cfg.StartggMaxRetries)

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	var enrichCache enrich.Cache
	if *useCache {
		redisCache, err := cache.NewRedisCache(ctx, cache.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			defer redisCache.Close()
			enrichCache = redisCache
		}
	}

	enricher := enrich.New(api, db.Players, enrichCache, time.Duration(cfg.CacheTTLDiscriminator)*time.Second)
	if err := enricher.EnrichMissing(ctx); err != nil {
		log.Fatal().Err(err).Msg("Enrichment failed")
	}
}

// setupLogger configures the zerolog logger
func setupLogger() {
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsedLevel, err := zerolog.ParseLevel(lvl); err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)
}
