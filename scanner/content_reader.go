package scanner

import (
	"fmt"
	"io"
	"os"
	"strings"

	"filetally/logger"
	"filetally/source"

	"golang.org/x/exp/mmap"
)

var openMmapReader = mmap.Open

const defaultMmapMinSize = 128 * 1024

// openSource opens path for random-access detection. Mode "stream" reads
// through the file handle, "mmap" maps the file and "auto" maps files of at
// least mmapMinSize bytes, falling back to the handle when mapping fails.
// The returned closer releases whichever resource backs the source.
func openSource(path string, size int64, mode string, mmapMinSize int64) (*source.Source, io.Closer, error) {
	if mmapMinSize <= 0 {
		mmapMinSize = defaultMmapMinSize
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "mmap":
		return openMmapSource(path)
	case "auto":
		// Empty files cannot be mapped.
		if size > 0 && size >= mmapMinSize {
			src, closer, err := openMmapSource(path)
			if err == nil {
				return src, closer, nil
			}
			logger.Debugf("Falling back to stream read for %s: %v", path, err)
		}
		return openStreamSource(path)
	default:
		return openStreamSource(path)
	}
}

func openMmapSource(path string) (*source.Source, io.Closer, error) {
	r, err := openMmapReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return source.New(r), r, nil
}

func openStreamSource(path string) (*source.Source, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return source.New(f), f, nil
}
