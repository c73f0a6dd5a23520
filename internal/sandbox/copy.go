package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// excludedDirs mirrors sandboxed_validation.py's _copy_project_safely
// directory exclusions, generalized beyond Python caches to every target
// language the analyzer registry supports.
var excludedDirs = map[string]bool{
	".git": true, "__pycache__": true, "node_modules": true,
	".venv": true, "venv": true, "target": true, "vendor": true,
	"dist": true, "build": true, ".terraform": true, ".cache": true,
}

// sensitiveFilePrefixes and sensitiveFileSuffixes implement §4.9's
// `.env`, `secrets.*`, `credentials.*`, `*.key`, `*.pem` exclusion list.
var sensitiveFilePrefixes = []string{".env", "secrets.", "credentials."}
var sensitiveFileSuffixes = []string{".key", ".pem"}

func isSensitiveFile(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range sensitiveFilePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, suffix := range sensitiveFileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// copyProjectSafely copies source into destination, skipping VCS metadata,
// caches, virtualenvs, and sensitive files, per §4.9 step 2.
func copyProjectSafely(source, destination string) error {
	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(source, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(destination, rel), 0o755)
		}

		if isSensitiveFile(info.Name()) {
			return nil
		}

		return copyFile(path, filepath.Join(destination, rel))
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dst, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}
