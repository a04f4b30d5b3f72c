// sitescan runs one full scan of a site described by a run-configuration
// JSON file, writes the scan result JSON and prints a human-readable
// report to standard output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/pkg/handlers"
	"github.com/sitewatch/sitewatch/pkg/scan"
)

const usage = `sitescan - site miner fleet scanner

Usage:
  sitescan [flags] <config.json>

The config file is the resolved run configuration: credentials, timeout,
subsections with IP ranges and expected miner rosters, and per-model
expected specs.

Flags:
  -o, --output <path>   Result file path
                        (default: reports/site_scan_<site>_<timestamp>.json)
`

func main() {
	var output string
	flag.StringVar(&output, "o", "", "result file path")
	flag.StringVar(&output, "output", "", "result file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if err := run(flag.Arg(0), output); err != nil {
		fmt.Fprintf(os.Stderr, "sitescan: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, output string) error {
	cfg, err := scan.LoadSiteConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := handlers.NewRegistry()
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(registry)
	result := scanner.ScanSite(context.Background(), cfg)

	if output == "" {
		output = defaultOutputPath(cfg.SiteID, time.Now())
	}
	if err := writeResult(output, result); err != nil {
		return err
	}
	log.Info().Str("path", output).Msg("scan result written")

	fmt.Print(scan.RenderReport(result))
	return nil
}

func defaultOutputPath(siteID string, now time.Time) string {
	if siteID == "" {
		siteID = "site"
	}
	name := fmt.Sprintf("site_scan_%s_%s.json", siteID, now.Format("20060102_150405"))
	return filepath.Join("reports", name)
}

func writeResult(path string, result *scan.SiteResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scan result: %w", err)
	}
	return nil
}
