// Package binary implements the binary-format analyzer: file-signature
// recognition, Shannon entropy, printable-ASCII string extraction, and
// SHA-256 hashing, grounded on
// original_source/.../language_analyzers/binary_analyzer.py. Elder
// Scrolls-specific record-walking from that source is dropped; the spec
// scopes C4's binary coverage to signature/entropy/string/hash analysis,
// not one game's data format.
package binary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// Analyzer implements analyzer.Analyzer for binary file formats.
type Analyzer struct{}

// New returns a ready binary-format analyzer.
func New() *Analyzer { return &Analyzer{} }

func (*Analyzer) LanguageName() string { return "binary" }
func (*Analyzer) FileExtensions() []string {
	return []string{".exe", ".dll", ".so", ".dat", ".bin", ".pak", ".db", ".sqlite", ".img", ".iso"}
}

var signatures = []struct {
	magic []byte
	name  string
}{
	{[]byte("BSA\x00"), "bethesda_archive"},
	{[]byte("PK\x03\x04"), "zip_archive"},
	{[]byte("Rar!"), "rar_archive"},
	{[]byte("MZ"), "dos_executable"},
	{[]byte("\x7fELF"), "linux_executable"},
	{[]byte("\xca\xfe\xba\xbe"), "macos_universal"},
	{[]byte("SQLite format 3"), "sqlite_database"},
	{[]byte("\x89PNG"), "png_image"},
	{[]byte("\xff\xd8\xff"), "jpeg_image"},
	{[]byte("GIF8"), "gif_image"},
}

// identifyFormat returns the recognized format name and a confidence score,
// mirroring _identify_file_format's (format, confidence) contract.
func identifyFormat(header []byte) (string, float64) {
	for _, sig := range signatures {
		if len(header) >= len(sig.magic) && string(header[:len(sig.magic)]) == string(sig.magic) {
			return sig.name, 1.0
		}
	}
	return "unknown", 0.0
}

const maxScanBytes = 65536

func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, content []byte, local, global analyzer.Memory) ([]domain.Issue, error) {
	var issues []domain.Issue

	scan := content
	if len(scan) > maxScanBytes {
		scan = scan[:maxScanBytes]
	}

	format, confidence := identifyFormat(content)
	if confidence < 0.5 {
		issues = append(issues, issue(path, "format_recognition", domain.SeverityMedium,
			"file format could not be reliably identified"))
	}

	entropy := shannonEntropy(scan)
	if entropy < 1.0 && len(scan) > 0 {
		issues = append(issues, issue(path, "data_analysis", domain.SeverityLow,
			"low entropy suggests highly repetitive data; may benefit from compression"))
	}

	if global != nil {
		_, _ = global.Store(ctx, "binary_file_signatures", path, map[string]any{
			"format":     format,
			"confidence": confidence,
			"entropy":    entropy,
			"sha256":     sha256Hex(content),
			"strings":    asciiStrings(scan, 4),
		})
	}

	return issues, nil
}

// shannonEntropy computes entropy in bits per byte over data's byte
// frequency distribution.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	n := float64(len(data))
	for _, f := range freq {
		if f == 0 {
			continue
		}
		p := float64(f) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// asciiStrings extracts runs of printable ASCII of at least minLength,
// capped at 20 results to match the reference's sampling limit.
func asciiStrings(data []byte, minLength int) []string {
	var out []string
	var current []byte
	flush := func() {
		if len(current) >= minLength {
			out = append(out, string(current))
		}
		current = nil
	}
	for _, b := range data {
		if b >= 32 && b <= 126 {
			current = append(current, b)
		} else {
			flush()
		}
		if len(out) >= 20 {
			return out
		}
	}
	flush()
	return out
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func issue(path, category string, severity domain.Severity, description string) domain.Issue {
	return domain.Issue{
		FilePath:    path,
		IssueType:   category,
		Severity:    severity,
		Description: description,
	}
}
