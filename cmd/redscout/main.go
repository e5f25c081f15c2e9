package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"redscout/internal/config"
	"redscout/internal/enrich"
	"redscout/internal/enrich/providers"
	"redscout/internal/logging"
	"redscout/internal/pipeline"
	"redscout/internal/reddit"
	"redscout/internal/report"
	"redscout/internal/scheduler"
	"redscout/internal/store"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	schedule := flag.String("schedule", "", "cron expression for watch mode, e.g. \"0 7 * * *\" (empty = run once)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := config.Default().Save(*configPath); saveErr != nil {
				fmt.Fprintf(os.Stderr, "Failed to write default config to %s: %v\n", *configPath, saveErr)
			} else {
				fmt.Fprintf(os.Stderr, "Created default config at %s - fill in credentials and re-run\n", *configPath)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	if *schedule == "" {
		if err := p.Run(context.Background()); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	s := scheduler.New()
	if err := s.AddRunJob(*schedule, p.Run); err != nil {
		log.Fatalf("Failed to schedule runs: %v", err)
	}
	s.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	<-s.Stop().Done()
}

func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	var provider enrich.Provider
	switch cfg.Enrichment.Provider {
	case "openai":
		provider = providers.NewOpenAIProvider(cfg.Enrichment.APIKey, cfg.Enrichment.BaseURL, cfg.Enrichment.Model)
	case "anthropic":
		provider = providers.NewAnthropicProvider(cfg.Enrichment.APIKey, cfg.Enrichment.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Enrichment.Provider)
	}

	// One limiter covers all LLM traffic, enrichment and report alike.
	var limiter *rate.Limiter
	if cfg.Enrichment.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Enrichment.RPM)/60.0), 1)
	}

	captureDir := ""
	if cfg.Output.CaptureLLM {
		captureDir = cfg.Output.Dir
	}

	enricher, err := enrich.New(provider, cfg.Enrichment, limiter, captureDir)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		cfg,
		reddit.NewClient(cfg.Reddit),
		enricher,
		report.New(provider, limiter),
		store.New(cfg.Output.Dir),
	), nil
}
