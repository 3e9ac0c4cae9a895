// Command smartrec runs one triggered smart-recording session against a
// live stream and prints the session summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/e7canasta/smartrec"
	"github.com/e7canasta/smartrec/internal/config"
)

func main() {
	// Optional .env for deployment overrides; absence is fine.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		url        = flag.String("url", "", "Stream source URI (overrides config)")
		outDir     = flag.String("out", "", "Recording output directory (overrides config)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := buildConfig(*configPath, *url, *outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received, stopping gracefully")
		cancel()
	}()

	rec, err := smartrec.New(cfg)
	if err != nil {
		slog.Error("recorder setup failed", "error", err)
		os.Exit(1)
	}

	res, err := rec.Run(ctx)
	if err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}

	slog.Info("session finished",
		"outcome", res.Outcome,
		"artifact_dir", res.ArtifactDir,
		"artifact_file", res.ArtifactFile,
	)
	if res.Summary != "" {
		fmt.Println(res.Summary)
	}
}

// buildConfig merges the YAML file (when given), environment overrides
// and flags into the recorder configuration. Precedence: flags > env >
// file.
func buildConfig(path, url, outDir string) (smartrec.Config, error) {
	var cfg smartrec.Config

	if path != "" {
		fileCfg, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = smartrec.Config{
			SourceURI:          fileCfg.Source.URI,
			FileLoop:           fileCfg.Source.FileLoop,
			RecordDir:          fileCfg.Record.Dir,
			FilePrefix:         fileCfg.Record.FilePrefix,
			CacheSeconds:       fileCfg.Record.CacheSeconds,
			PreRollSeconds:     fileCfg.Record.PreRollSeconds,
			PostRollSeconds:    fileCfg.Record.PostRollSeconds,
			MaxPostRollSeconds: fileCfg.Record.MaxPostRollSeconds,
			StartDelaySeconds:  fileCfg.Record.StartDelaySeconds,
			WatchdogSeconds:    fileCfg.Record.WatchdogSeconds,
			MuxWidth:           fileCfg.Mux.Width,
			MuxHeight:          fileCfg.Mux.Height,
			MuxBatchSize:       fileCfg.Mux.BatchSize,
			MuxBatchTimeoutUS:  fileCfg.Mux.BatchedPushTimeoutUS,
			SessionID:          fileCfg.Session.ID,
			SessionName:        fileCfg.Session.Name,
		}
	}

	if v := os.Getenv("SMARTREC_URI"); v != "" {
		cfg.SourceURI = v
	}
	if v := os.Getenv("SMARTREC_RECORD_DIR"); v != "" {
		cfg.RecordDir = v
	}

	if url != "" {
		cfg.SourceURI = url
	}
	if outDir != "" {
		cfg.RecordDir = outDir
	}

	if cfg.SourceURI == "" {
		return cfg, fmt.Errorf("a stream source is required (--config, --url or SMARTREC_URI)")
	}
	if cfg.RecordDir == "" {
		return cfg, fmt.Errorf("a record directory is required (--config, --out or SMARTREC_RECORD_DIR)")
	}

	return cfg, nil
}
