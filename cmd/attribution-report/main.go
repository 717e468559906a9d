// Command attribution-report runs a batch of conversion journeys through an
// attribution model and prints the resulting credit report.
//
// Usage:
//
//	attribution-report -config model.yaml -journeys journeys.json
//
// The journeys file holds a JSON array of journey objects; the config file
// holds a YAML model configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/attribly/attribution/internal/application"
	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

func main() {
	var (
		configPath   = flag.String("config", "model.yaml", "Path to the model configuration file")
		journeysPath = flag.String("journeys", "journeys.json", "Path to the journeys JSON file")
		floor        = flag.Float64("floor", application.DefaultConfidenceFloor, "Confidence floor; 0 disables filtering")
		concurrency  = flag.Int("concurrency", application.DefaultBatchConcurrency, "Concurrent journey calculations")
		rps          = flag.Float64("rps", 0, "Calculations per second; 0 disables rate limiting")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loader := application.NewConfigLoader(nil)
	cfg, err := loader.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	journeys, err := loadJourneys(*journeysPath)
	if err != nil {
		log.Fatalf("Failed to load journeys: %v", err)
	}

	calc := ports.DefaultCalculationContext()
	calc.Logger = logger

	dispatcher := application.NewDispatcher(
		application.WithCalculationContext(calc),
		application.WithConfidenceFloor(*floor),
	)

	opts := []application.BatchOption{
		application.WithConcurrency(*concurrency),
		application.WithBatchLogger(logger),
	}
	if *rps > 0 {
		opts = append(opts, application.WithRateLimit(rate.Limit(*rps), *concurrency))
	}
	processor := application.NewBatchProcessor(dispatcher, opts...)

	items := processor.Process(context.Background(), journeys, cfg)
	printReport(cfg.ModelType, items)

	for _, item := range items {
		if item.Err != nil {
			os.Exit(1)
		}
	}
}

func loadJourneys(path string) ([]domain.Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var journeys []domain.Journey
	if err := json.Unmarshal(data, &journeys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return journeys, nil
}

// printReport aggregates attributed credit per channel across the batch and
// prints a summary table followed by per-journey failures.
func printReport(model domain.ModelType, items []application.BatchItem) {
	credit := make(map[domain.Channel]float64)
	touchpoints := make(map[string]domain.Channel)
	var succeeded, failed int

	for _, item := range items {
		if item.Err != nil {
			failed++
			continue
		}
		succeeded++

		for _, tp := range item.Journey.Touchpoints {
			touchpoints[tp.ID] = tp.Channel
		}
		for _, res := range item.Results {
			credit[touchpoints[res.TouchpointID]] += res.Weight
		}
	}

	channels := make([]domain.Channel, 0, len(credit))
	for ch := range credit {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return credit[channels[i]] > credit[channels[j]] })

	fmt.Printf("Attribution report (%s)\n", model)
	fmt.Printf("- Journeys: %d succeeded, %d failed\n", succeeded, failed)
	for _, ch := range channels {
		fmt.Printf("- %-16s %8.4f\n", ch, credit[ch])
	}

	for _, item := range items {
		if item.Err != nil {
			fmt.Printf("FAILED %s: %v\n", item.Journey.ConversionID, item.Err)
		}
	}
}
