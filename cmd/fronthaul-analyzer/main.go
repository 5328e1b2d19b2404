// Command fronthaul-analyzer runs a one-shot analysis over a directory
// of cell traces and prints per-link capacity recommendations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/signalsfoundry/fronthaul-optimizer/internal/config"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/decision"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/ingest"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"
)

func main() {
	dataDir := flag.String("data", "data", "directory containing throughput-cell-N.dat and pkt-stats-cell-N.dat traces")
	configPath := flag.String("config", "", "optional YAML config file")
	threshold := flag.Float64("threshold", 0, "override the loss correlation threshold (0 keeps the configured value)")
	lossLimit := flag.Float64("loss-limit", 0, "override the acceptable loss ratio (0 keeps the configured value)")
	concurrency := flag.Int("concurrency", 4, "links analyzed in parallel")
	format := flag.String("format", "text", "output format: text or json")
	whatIfLink := flag.Int("whatif-link", 0, "run a what-if simulation for this link instead of printing reports")
	whatIfCapacity := flag.Float64("whatif-capacity", 0, "what-if capacity in Gbps")
	whatIfBuffer := flag.Float64("whatif-buffer", 0, "what-if buffer in microseconds")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(ctx, log, "failed to load config", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	coreCfg := cfg.CoreConfig()
	if *threshold > 0 {
		coreCfg.CorrelationThreshold = *threshold
	}
	if *lossLimit > 0 {
		coreCfg.LossLimit = *lossLimit
	}

	loader := ingest.NewLoader(cfg.DataDir, coreCfg, log)
	series, err := loader.LoadAll(ctx)
	if err != nil {
		fatal(ctx, log, "failed to load traces", err)
	}

	analyzer, err := pipeline.New(coreCfg, log, pipeline.WithConcurrency(*concurrency))
	if err != nil {
		fatal(ctx, log, "failed to build analyzer", err)
	}

	run, err := analyzer.Run(ctx, series)
	if err != nil {
		fatal(ctx, log, "analysis failed", err)
	}

	if *whatIfLink > 0 {
		report := run.Report(*whatIfLink)
		if report == nil {
			fatal(ctx, log, "what-if failed", fmt.Errorf("link %d not found", *whatIfLink))
		}
		result, err := analyzer.WhatIf(ctx, report.Link, series, *whatIfCapacity, *whatIfBuffer)
		if err != nil {
			fatal(ctx, log, "what-if failed", err)
		}
		printJSON(map[string]any{"link_id": *whatIfLink, "simulation": result})
		return
	}

	switch *format {
	case "json":
		printJSON(run)
	case "text":
		printText(run)
	default:
		fatal(ctx, log, "invalid output format", fmt.Errorf("unknown format %q", *format))
	}

	if run.FailedLinks > 0 {
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func printText(run *pipeline.Run) {
	fmt.Printf("Analyzed %d cells over %d slots: %d shared links\n\n",
		run.CellCount, run.SlotCount, len(run.Links))

	reports := make([]pipeline.LinkReport, len(run.Links))
	copy(reports, run.Links)
	sort.Slice(reports, func(i, j int) bool { return reports[i].Link.LinkID < reports[j].Link.LinkID })

	for _, r := range reports {
		if r.Error != "" {
			fmt.Printf("Link %d (cells %v): analysis failed: %s\n\n", r.Link.LinkID, r.Link.Cells, r.Error)
			continue
		}
		fmt.Print(decision.FormatReport(r.Recommendation, r.Optimization, r.Resilience))
		fmt.Println()
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
}

func fatal(ctx context.Context, log logging.Logger, msg string, err error) {
	log.Error(ctx, msg, logging.String("error", err.Error()))
	os.Exit(1)
}
