package engine

import (
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// readAndDecode reads path and decodes it trying UTF-8, then Latin-1
// (ISO-8859-1), then CP1252, then plain ASCII, per SPEC_FULL.md §4.4 step
// 3. Latin-1 and CP1252 byte-decode every input without error (they map
// every byte to a rune), so they're tried in that fixed order rather than
// detected. Because Latin-1 accepts every byte sequence, any readable file
// within maxBytes that is not valid UTF-8 is returned Latin-1-decoded; the
// CP1252 and ASCII steps and the final skip-with-warning are not reached.
func readAndDecode(path string, maxBytes int64) ([]byte, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logging.AnalyzeWarn("read %s: %v", path, err)
		return nil, false
	}
	if int64(len(raw)) > maxBytes {
		return nil, false
	}

	if utf8.Valid(raw) {
		return raw, true
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return decoded, true
	}
	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		return decoded, true
	}
	if isASCII(raw) {
		return raw, true
	}

	logging.AnalyzeWarn("%s: could not decode as UTF-8, Latin-1, CP1252, or ASCII; skipping", path)
	return nil, false
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
