package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fgcrank/ingestion/internal/cache"
	"fgcrank/ingestion/internal/client"
	"fgcrank/ingestion/internal/config"
	"fgcrank/ingestion/internal/enrich"
	"fgcrank/ingestion/internal/processor"
	"fgcrank/ingestion/internal/rating"
	"fgcrank/ingestion/internal/repository"
	"fgcrank/ingestion/internal/seeder"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		country        = flag.String("country", "", "ISO country code filter (e.g. US, CA)")
		state          = flag.String("state", "", "State or province filter (e.g. CA, BC)")
		perPage        = flag.Int("per-page", 50, "Tournaments per search page")
		beforeDate     = flag.Int64("before-date", 0, "Only tournaments ending before this Unix timestamp")
		afterDate      = flag.Int64("after-date", 0, "Only tournaments ending after this Unix timestamp (overrides the checkpoint)")
		lastUpdatedKey = flag.String("last-updated-key", "tournaments_endAt", "Checkpoint key to resume from and advance")
		savedGames     = flag.Bool("saved-games", true, "Only process tournaments featuring games in the videogame mapping")
		dryRun         = flag.Bool("dry-run", false, "List matching tournaments without processing or writing")
		sortField      = flag.String("sort", "endAt", "Sort field: startAt, endAt, eventRegistrationClosesAt, computedUpdatedAt")
		sortAscending  = flag.Bool("sort-ascending", false, "Process tournaments in ascending order of the sort field")
	)
	flag.Parse()

	setupLogger()

	if !client.ValidSort(*sortField) {
		fmt.Fprintf(os.Stderr, "invalid --sort value %q: must be one of startAt, endAt, eventRegistrationClosesAt, computedUpdatedAt\n", *sortField)
		os.Exit(2)
	}
	if *perPage < 1 {
		fmt.Fprintln(os.Stderr, "--per-page must be at least 1")
		os.Exit(2)
	}

	cfg := config.MustLoad()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, stopping after current tournament...")
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

	proc := processor.New(api, db.Videogames, db.Players, db.Rankings, db.History, rating.NewService())
	enricher := enrich.New(api, db.Players, enrichCache, time.Duration(cfg.CacheTTLDiscriminator)*time.Second)
	seed := seeder.New(api, proc, db.Videogames, db.Checkpoints, enricher)

	opts := seeder.Options{
		Country:       *country,
		State:         *state,
		PerPage:       *perPage,
		Key:           *lastUpdatedKey,
		SavedGames:    *savedGames,
		DryRun:        *dryRun,
		Sort:          *sortField,
		SortAscending: *sortAscending,
	}
	if *beforeDate > 0 {
		opts.BeforeDate = beforeDate
	}
	if *afterDate > 0 {
		opts.AfterDate = afterDate
	}

	res, err := seed.Run(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding run failed")
	}

	if res.Failed > 0 {
		log.Warn().Int("failed", res.Failed).Msg("Some tournaments failed to process")
		os.Exit(1)
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
