package scanner

import (
	"context"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"filetally/config"
	"filetally/detect"
	"filetally/logger"
	"filetally/output"
	"filetally/tally"
	"filetally/utils"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

type fileScanTask struct {
	path string
	info os.FileInfo
}

type scanStats struct {
	scanned    atomic.Int64
	skipped    atomic.Int64
	readErrors atomic.Int64
}

// ScanFiles walks every start path, detects each admitted regular file once
// and adds the result to agg. When hints is non-nil and unknown-file
// classification is enabled, MIME hints for Unknown results go to hints.
// A canceled ctx stops the walk and the workers; the partial counts stay in
// agg and ctx.Err() is returned.
func ScanFiles(ctx context.Context, cfg *config.Config, metrics *output.Metrics, agg *tally.Aggregator, hints *tally.Labels) error {
	adjustConcurrency(cfg)
	if cfg.ConcurrencyLevel < 1 {
		cfg.ConcurrencyLevel = 1
	}
	if cfg.NiceLevel == "low" {
		if err := lowerPriority(); err != nil {
			logger.Warnf("Failed to lower process priority: %v", err)
		}
	}

	matcher := utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)
	guard := utils.NewPathGuard(cfg.StartPaths)

	var bar *progressbar.ProgressBar
	if cfg.SkipCount {
		logger.Debug("Skipping total file count")
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Detecting files"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetVisibility(progressVisible()),
			progressbar.OptionFullWidth(),
		)
	} else {
		logger.Info("Counting total number of files...")
		totalFiles := 0
		for _, startPath := range cfg.StartPaths {
			count, err := countTotalFiles(ctx, startPath, newFileFilter(cfg, matcher, guard))
			if err != nil {
				logger.Warnf("Failed to count files in %s: %v", startPath, err)
				continue
			}
			totalFiles += count
		}
		logger.Infof("Total files to scan: %d", totalFiles)
		if metrics != nil {
			metrics.TotalFiles = totalFiles
		}

		bar = progressbar.NewOptions(totalFiles,
			progressbar.OptionSetDescription("Detecting files"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetVisibility(progressVisible()),
			progressbar.OptionFullWidth(),
		)
	}

	var ioLimiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		ioLimiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}

	stats := &scanStats{}
	proc := &fileProcessor{
		cfg:      cfg,
		detector: detect.New(detect.WithLenientText(cfg.LenientText)),
		agg:      agg,
		hints:    hints,
		stats:    stats,
	}

	progressCh := make(chan int, max(cfg.ConcurrencyLevel*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	filesChan := make(chan fileScanTask, cfg.ConcurrencyLevel)
	filter := newFileFilter(cfg, matcher, guard)
	w := selectWalker(cfg)

	go func() {
		defer close(filesChan)
		for _, startPath := range cfg.StartPaths {
			err := w.Walk(ctx, startPath, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					logger.Warnf("Failed to access %s: %v", path, err)
					stats.readErrors.Add(1)
					return nil
				}
				if d == nil || d.IsDir() {
					return nil
				}
				info, verdict := filter.admit(path, d)
				switch verdict {
				case verdictExcluded:
					return nil
				case verdictSkipped:
					stats.skipped.Add(1)
					return nil
				}
				if ioLimiter != nil {
					if err := ioLimiter.Wait(ctx); err != nil {
						return err
					}
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case filesChan <- fileScanTask{path: path, info: info}:
				}
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Warnf("Error walking path %s: %v", startPath, err)
			}
		}
	}()

	var wg sync.WaitGroup
	for range cfg.ConcurrencyLevel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range filesChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				proc.process(ctx, task)
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	// Unblock the walker if the workers stopped early.
	for range filesChan {
	}
	close(progressCh)
	progressWG.Wait()
	_ = bar.Finish()

	if metrics != nil {
		metrics.FilesScanned = int(stats.scanned.Load())
		metrics.FilesSkipped = int(stats.skipped.Load())
		metrics.ReadErrors = int(stats.readErrors.Load())
		if cfg.SkipCount {
			metrics.TotalFiles = metrics.FilesScanned
		}
	}
	return ctx.Err()
}

func countTotalFiles(ctx context.Context, startPath string, filter *fileFilter) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var total int
	err := fastWalker{}.Walk(ctx, startPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("Failed to access %s: %v", path, err)
			return nil
		}
		if d == nil || d.IsDir() {
			return nil
		}
		if _, verdict := filter.admit(path, d); verdict == verdictAdmitted {
			total++
		}
		return nil
	})
	return total, err
}

func adjustConcurrency(cfg *config.Config) {
	if cfg.ConcurrencySet {
		return
	}
	numCPU := runtime.NumCPU()
	switch cfg.NiceLevel {
	case "high":
		cfg.ConcurrencyLevel = numCPU
	case "medium":
		cfg.ConcurrencyLevel = numCPU / 2
		if cfg.ConcurrencyLevel < 1 {
			cfg.ConcurrencyLevel = 1
		}
	case "low":
		cfg.ConcurrencyLevel = 1
	}
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("FILETALLY_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}
