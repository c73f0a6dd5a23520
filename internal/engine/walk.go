package engine

import (
	"os"
	"path/filepath"
	"strings"
)

// enumerateFiles walks root, skipping Config.Exclude directory names, any
// file over MaxFileBytes, and (when MaxDepth > 0) anything deeper than
// MaxDepth directories below root, matching
// internal/world/scanner_config.go's ignore-pattern shape generalized to a
// plain name set (the spec's exclude list names directories, not glob
// patterns).
func enumerateFiles(root string, cfg Config) ([]string, int, error) {
	excluded := make(map[string]bool, len(cfg.Exclude))
	for _, e := range cfg.Exclude {
		excluded[e] = true
	}

	var files []string
	skipped := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != root && excluded[info.Name()] {
				return filepath.SkipDir
			}
			if cfg.MaxDepth > 0 && depthBelow(root, path) > cfg.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if cfg.MaxDepth > 0 && depthBelow(root, filepath.Dir(path)) > cfg.MaxDepth {
			return nil
		}
		if info.Size() > cfg.MaxFileBytes {
			skipped++
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}

	return files, skipped, nil
}

// depthBelow counts the path elements of path below root: 0 for root
// itself, 1 for a direct child.
func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// batchFiles partitions files into chunks of at most size, preserving order.
func batchFiles(files []string, size int) [][]string {
	if size <= 0 {
		size = len(files)
	}
	var batches [][]string
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[i:end])
	}
	return batches
}
