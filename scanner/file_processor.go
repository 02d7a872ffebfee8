package scanner

import (
	"context"

	"filetally/config"
	"filetally/detect"
	"filetally/logger"
	"filetally/source"
	"filetally/tally"
	"filetally/tracing"

	"github.com/h2non/filetype"
)

// filetype inspects at most this many leading bytes.
const mimeSniffLen = 261

type fileProcessor struct {
	cfg      *config.Config
	detector *detect.Detector
	agg      *tally.Aggregator
	hints    *tally.Labels
	stats    *scanStats
}

func (p *fileProcessor) process(ctx context.Context, task fileScanTask) {
	ctx, endTask := tracing.StartTask(ctx, "detect_file")
	defer endTask()
	tracing.Log(ctx, "path", task.path)

	var size int64
	if task.info != nil {
		size = task.info.Size()
	}
	src, closer, err := openSource(task.path, size, p.cfg.ContentReadMode, p.cfg.MmapMinSize)
	if err != nil {
		p.stats.readErrors.Add(1)
		logger.WithField("path", task.path).Warnf("Failed to read file: %v", err)
		return
	}
	defer closer.Close()

	endRegion := tracing.StartRegion(ctx, "probe")
	rec := p.detector.Detect(src)
	endRegion()
	p.agg.Add(rec)
	p.stats.scanned.Add(1)
	logger.WithField("path", task.path).Debugf("Detected %s", rec)

	if rec.Kind() == detect.KindUnknown && p.cfg.ClassifyUnknown && p.hints != nil {
		p.hints.Add(getMimeType(src))
	}
}

func getMimeType(src *source.Source) string {
	buf := make([]byte, mimeSniffLen)
	n := src.ReadSome(0, buf)
	kind, err := filetype.Match(buf[:n])
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return "unknown"
	}
	return kind.MIME.Value
}
