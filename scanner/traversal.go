package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"filetally/config"
	"filetally/logger"
	"filetally/utils"
)

type walker interface {
	Walk(ctx context.Context, startPath string, fn fs.WalkDirFunc) error
}

// fastWalker walks depth-first with an explicit stack. Directory symlinks
// are reported as non-directories and never descended into.
type fastWalker struct{}

func (w fastWalker) Walk(ctx context.Context, startPath string, fn fs.WalkDirFunc) error {
	info, err := os.Stat(startPath)
	if err != nil {
		return fn(startPath, nil, err)
	}
	root := fs.FileInfoToDirEntry(info)
	type item struct {
		path  string
		entry fs.DirEntry
	}
	stack := []item{{path: startPath, entry: root}}
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(current.path, current.entry, nil); err != nil {
			if err == fs.SkipDir {
				continue
			}
			return err
		}
		if !current.entry.IsDir() {
			continue
		}

		entries, err := os.ReadDir(current.path)
		if err != nil {
			if ferr := fn(current.path, current.entry, err); ferr != nil && ferr != fs.SkipDir {
				return ferr
			}
			continue
		}
		for i := range entries {
			child := entries[i]
			stack = append(stack, item{
				path:  filepath.Join(current.path, child.Name()),
				entry: child,
			})
		}
	}
	return nil
}

func selectWalker(cfg *config.Config) walker {
	_ = cfg
	return fastWalker{}
}

type verdict int

const (
	verdictAdmitted verdict = iota
	// Filtered out by include/exclude patterns; not reported.
	verdictExcluded
	// Not a candidate for detection: special files, unfollowed links,
	// oversized or already seen files.
	verdictSkipped
)

// fileFilter decides which walk entries reach detection. It is owned by a
// single walk goroutine.
type fileFilter struct {
	cfg     *config.Config
	matcher *utils.PatternMatcher
	guard   *utils.PathGuard
	seen    map[string]struct{}
}

func newFileFilter(cfg *config.Config, matcher *utils.PatternMatcher, guard *utils.PathGuard) *fileFilter {
	return &fileFilter{
		cfg:     cfg,
		matcher: matcher,
		guard:   guard,
		seen:    make(map[string]struct{}),
	}
}

func (f *fileFilter) admit(path string, d fs.DirEntry) (os.FileInfo, verdict) {
	if !f.matcher.ShouldInclude(path) {
		return nil, verdictExcluded
	}

	var (
		info os.FileInfo
		err  error
	)
	switch mode := d.Type(); {
	case mode&fs.ModeSymlink != 0:
		if !f.cfg.FollowSymlinks {
			logger.Debugf("Skipping symlink %s", path)
			return nil, verdictSkipped
		}
		info, err = os.Stat(path)
		if err != nil {
			logger.Debugf("Skipping dangling symlink %s: %v", path, err)
			return nil, verdictSkipped
		}
		if !info.Mode().IsRegular() {
			logger.Debugf("Skipping symlink to non-regular file %s", path)
			return nil, verdictSkipped
		}
		if !f.guard.Contains(path) {
			logger.Debugf("Skipping symlink leaving the start paths %s", path)
			return nil, verdictSkipped
		}
	case !mode.IsRegular():
		logger.Debugf("Skipping non-regular file %s", path)
		return nil, verdictSkipped
	default:
		info, err = d.Info()
		if err != nil {
			logger.Debugf("Skipping %s: %v", path, err)
			return nil, verdictSkipped
		}
	}

	if f.cfg.MaxFileSize > 0 && info.Size() > f.cfg.MaxFileSize {
		logger.Debugf("Skipping large file %s", path)
		return nil, verdictSkipped
	}
	if f.cfg.FollowSymlinks {
		// A followed link and its target are the same file.
		if id := getFileID(path, info); id != "" {
			if _, dup := f.seen[id]; dup {
				return nil, verdictSkipped
			}
			f.seen[id] = struct{}{}
		}
	}
	return info, verdictAdmitted
}
