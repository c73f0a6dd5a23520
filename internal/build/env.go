// Package build provides the environment construction the sandbox
// validator (C10) needs to run a Go-target build/test/runtime probe
// without leaking the operator's full process environment into the
// sandboxed subprocess.
package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// BuildConfig holds project-specific build configuration, detected from
// the sandbox copy's directory layout rather than loaded from a file.
type BuildConfig struct {
	EnvVars     map[string]string
	CGOPackages []string
}

// DefaultBuildConfig returns sensible defaults.
func DefaultBuildConfig() *BuildConfig {
	return &BuildConfig{
		EnvVars:     make(map[string]string),
		CGOPackages: []string{},
	}
}

// GetBuildEnv returns the environment for go build/test commands run
// against workspaceRoot: the essential Go toolchain variables plus
// auto-detected CGO flags, and nothing else from the operator's
// environment. This is the single source of truth the sandbox's build
// and test phases use instead of raw os.Environ().
func GetBuildEnv(workspaceRoot string) []string {
	logging.BuildDebug("Building environment for workspace: %s", workspaceRoot)

	env := getBaseGoEnv()

	buildCfg := loadBuildConfig(workspaceRoot)
	for key, val := range buildCfg.EnvVars {
		env = append(env, key+"="+val)
		logging.BuildDebug("Added build config env: %s=%s", key, val)
	}

	if !hasEnvKey(env, "CGO_CFLAGS") {
		if cgoFlags := detectCGOFlags(workspaceRoot); cgoFlags != "" {
			env = append(env, "CGO_CFLAGS="+cgoFlags)
			logging.BuildDebug("Auto-detected CGO_CFLAGS: %s", cgoFlags)
		}
	}

	logging.BuildDebug("Final build environment has %d vars", len(env))
	return env
}

// getBaseGoEnv returns essential Go environment variables.
func getBaseGoEnv() []string {
	env := []string{}

	// Always include PATH for finding go binary
	if path := os.Getenv("PATH"); path != "" {
		env = append(env, "PATH="+path)
	}

	// Go-specific essential vars
	essentialVars := []string{
		"GOPATH",
		"GOROOT",
		"GOCACHE",
		"GOMODCACHE",
		"HOME",        // Required on Unix
		"USERPROFILE", // Required on Windows
		"LOCALAPPDATA", // Required for GOCACHE default on Windows
		"TEMP",        // Required for go build temp files
		"TMP",
		"TMPDIR",
	}

	for _, key := range essentialVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}

	// Ensure GOCACHE is set - Go requires this for builds
	// If not set in environment, provide a sensible default
	if !hasEnvKey(env, "GOCACHE") {
		gocache := deriveGOCACHE()
		if gocache != "" {
			env = append(env, "GOCACHE="+gocache)
			logging.BuildDebug("Derived GOCACHE: %s", gocache)
		}
	}

	return env
}

// deriveGOCACHE determines a sensible GOCACHE path when not explicitly set.
// This prevents "GOCACHE is not defined" errors in subprocess builds.
func deriveGOCACHE() string {
	// Try standard locations in order of preference

	// 1. Check if LocalAppData is available (Windows standard)
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "go-build")
	}

	// 2. Check USERPROFILE (Windows fallback)
	if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
		return filepath.Join(userProfile, ".cache", "go-build")
	}

	// 3. Check HOME (Unix standard)
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", "go-build")
	}

	// 4. Use temp directory as last resort
	if tmp := os.Getenv("TEMP"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}
	if tmp := os.Getenv("TMP"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}

	// Give up - Go will error but at least we tried
	return ""
}

// loadBuildConfig detects project-specific build configuration from the
// workspace layout.
func loadBuildConfig(workspaceRoot string) *BuildConfig {
	cfg := DefaultBuildConfig()

	// Configuration comes only from heuristics based on project structure

	// Resolve workspaceRoot to absolute path for reliable detection
	absRoot := workspaceRoot
	if !filepath.IsAbs(workspaceRoot) {
		if abs, err := filepath.Abs(workspaceRoot); err == nil {
			absRoot = abs
		}
	}

	// internal/store's cgo sqlite-vec backend expects its headers under
	// sqlite_headers/ when the project vendors them rather than relying on
	// a system install.
	sqliteHeaders := filepath.Join(absRoot, "sqlite_headers")
	if _, err := os.Stat(sqliteHeaders); err == nil {
		cfg.EnvVars["CGO_CFLAGS"] = "-I" + sqliteHeaders
		cfg.CGOPackages = append(cfg.CGOPackages, "sqlite-vec")
		logging.BuildDebug("Detected sqlite_headers at: %s", sqliteHeaders)
	}

	return cfg
}

// detectCGOFlags attempts to auto-detect required CGO_CFLAGS.
// This is a fallback when no explicit config is provided.
func detectCGOFlags(workspaceRoot string) string {
	var flags []string

	// Resolve to absolute path for reliable detection
	absRoot := workspaceRoot
	if !filepath.IsAbs(workspaceRoot) {
		if abs, err := filepath.Abs(workspaceRoot); err == nil {
			absRoot = abs
		}
	}

	// Check common header locations
	headerDirs := []string{
		"sqlite_headers",
		"include",
		"vendor/include",
		"third_party/include",
	}

	for _, dir := range headerDirs {
		fullPath := filepath.Join(absRoot, dir)
		if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
			flags = append(flags, "-I"+fullPath)
		}
	}

	if len(flags) > 0 {
		return strings.Join(flags, " ")
	}
	return ""
}

// hasEnvKey checks if an environment key is already set.
func hasEnvKey(env []string, key string) bool {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
