package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filetally/config"
	"filetally/logger"
	"filetally/output"
	"filetally/scanner"
	"filetally/systeminfo"
	"filetally/tally"
	"filetally/tracing"
)

// Signals after the first only count towards the forced exit.
const maxSignals = 5

var exitFn = os.Exit

func main() {
	exitFn(run())
}

func run() int {
	if err := tracing.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start trace: %v\n", err)
	} else {
		defer tracing.Stop()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	logger.Init(cfg.LogLevel)

	metrics := output.Metrics{
		StartTime: time.Now().Format(time.RFC3339),
	}

	var sysInfo *systeminfo.SystemInfo
	if cfg.CollectSystemInfo {
		sysInfo, err = systeminfo.GetSystemInfo(cfg)
		if err != nil {
			logger.Errorf("Failed to gather system information: %v", err)
		}
	}

	writer, err := output.New(cfg, sysInfo, &metrics)
	if err != nil {
		logger.Errorf("Failed to initialize output: %v", err)
		return 1
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignalEvent(cancel, sigChan)

	agg := tally.NewAggregator()
	var hints *tally.Labels
	if cfg.ClassifyUnknown {
		hints = tally.NewLabels()
	}

	err = scanner.ScanFiles(ctx, cfg, &metrics, agg, hints)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		logger.Errorf("Scanning failed: %v", err)
		return 1
	}

	metrics.EndTime = time.Now().Format(time.RFC3339)
	metrics.Interrupted = interrupted
	writer.SetMetrics(metrics)

	var labels []tally.LabelCount
	if hints != nil {
		labels = hints.Snapshot()
	}
	if err := writer.WriteSummary(agg.Summarize(), labels); err != nil {
		logger.Errorf("Failed to write report: %v", err)
		return 1
	}
	if err := writer.Close(); err != nil {
		logger.Errorf("Failed to close report: %v", err)
		return 1
	}

	if interrupted {
		fmt.Fprintln(os.Stderr, "Interrupted.")
		return 1
	}
	logger.Info("Scanning completed successfully.")
	return 0
}

// handleSignalEvent cancels the scan on the first signal so the partial
// summary can still be reported. Reaching maxSignals exits at once.
func handleSignalEvent(cancel context.CancelFunc, sigChan <-chan os.Signal) {
	received := 0
	for range sigChan {
		received++
		switch {
		case received == 1:
			logger.Info("Interrupt signal received. Shutting down...")
			cancel()
		case received >= maxSignals:
			fmt.Fprintln(os.Stderr, "Interrupted.")
			exitFn(1)
			return
		default:
			logger.Warnf("Still shutting down; %d more signals force exit", maxSignals-received)
		}
	}
}
