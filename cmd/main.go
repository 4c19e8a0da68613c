package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"javaidx/config"
	"javaidx/logger"
	"javaidx/output"
	"javaidx/scanner"
	"javaidx/systeminfo"
	"javaidx/tracing"
	"javaidx/version"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Quiet {
		logger.SetQuiet()
	}
	logger.Info(version.String())
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	if err := tracing.Start(""); err != nil {
		logger.Warnf("Failed to start trace: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	code := run(ctx, cfg)
	cancel()
	tracing.Stop()
	os.Exit(code)
}

// run decodes what cfg points at and writes the report. It returns the
// process exit code.
func run(ctx context.Context, cfg *config.Config) int {
	metrics := &output.Metrics{StartTime: time.Now().Format(time.RFC3339)}

	var sysInfo *systeminfo.SystemInfo
	if cfg.CollectSystemInfo {
		var err error
		sysInfo, err = systeminfo.GetSystemInfo(ctx)
		if err != nil {
			logger.Errorf("Failed to gather system information: %v", err)
		}
	}

	writer, err := output.New(cfg, sysInfo, metrics)
	if err != nil {
		logger.Errorf("Failed to initialize output: %v", err)
		return 1
	}

	var code int
	if cfg.File != "" {
		code = runFile(ctx, cfg, writer, metrics)
	} else {
		code = runDirectory(ctx, cfg, writer, metrics)
	}

	if err := writer.Close(); err != nil {
		logger.Errorf("Failed to write output: %v", err)
		return 1
	}
	return code
}

func runFile(ctx context.Context, cfg *config.Config, w *output.Writer, metrics *output.Metrics) int {
	metrics.FilesFound = 1
	entry, err := scanner.ScanFile(ctx, cfg, cfg.File)
	if err != nil {
		metrics.FilesFailed = 1
		if entry == nil && errors.Is(err, fs.ErrNotExist) {
			logger.Errorf("The IDX file does not exist: %s", cfg.File)
		} else {
			logger.Errorf("Unable to parse IDX file: %v", err)
		}
		return 1
	}
	metrics.FilesDecoded = 1

	entries := []*scanner.Entry{entry}
	if !entry.Supported() {
		metrics.FilesUnsupported = 1
		logger.Warn(entry.UnsupportedError())
		if cfg.SkipUnsupported {
			entries = nil
		}
	}
	if err := w.Write(entries, nil); err != nil {
		logger.Errorf("Failed to write output: %v", err)
		return 1
	}
	return 0
}

func runDirectory(ctx context.Context, cfg *config.Config, w *output.Writer, metrics *output.Metrics) int {
	res, err := scanner.ScanDirectory(ctx, cfg)
	if res == nil {
		logger.Errorf("Scanning failed: %v", err)
		return 1
	}
	metrics.Apply(res.Stats)

	code := 0
	if err != nil {
		logger.Warnf("Scan interrupted, writing partial results: %v", err)
		code = 1
	}
	logger.Infof("Decoded %d of %d index files (%d failed, %d unsupported)",
		res.Stats.Decoded, res.Stats.Found, res.Stats.Failed, res.Stats.Unsupported)

	if err := w.Write(res.Entries, res.Failures); err != nil {
		logger.Errorf("Failed to write output: %v", err)
		return 1
	}
	return code
}

func handleSignals(cancelFunc context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	handleSignalEvent(cancelFunc, sigChan)
}

func handleSignalEvent(cancelFunc context.CancelFunc, sigChan <-chan os.Signal) {
	sig := <-sigChan
	logger.Infof("%v received. Shutting down...", sig)
	cancelFunc()
}
