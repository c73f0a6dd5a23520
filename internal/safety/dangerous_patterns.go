package safety

import "strings"

// dangerousPatterns is the substring list from the safety-scoring rule
// table: any occurrence in a proposed fix's text is treated as a hard
// disqualifier, regardless of the issue's declared type or severity.
var dangerousPatterns = []string{
	// Structural-change keywords
	"import ", "def ", "class ", "try:", "except:", "with ", "for ", "while ", "if ",
	// Process / eval primitives
	"subprocess", "os.system", "eval(", "exec(", "__import__", "getattr(",
	"setattr(", "delattr(", "globals()", "locals()", "vars()", "dir(",
	"open(", "file(", "input()", "raw_input()", "compile(", "memoryview(",
	// Privilege tokens
	"user.role =", ".role =", "admin", "root", "password", "auth",
	// Boolean constants
	"return True", "return False", "== True", "== False",
	// Network schemes and clients
	"http://", "https://", "ftp://", "requests.", "urllib.",
	// Filesystem destructive
	"rm -rf", "del ", "shutil.", "pathlib.",
	// Unsafe deserialization
	"pickle.", "yaml.load", "marshal.", "shelve.", "dill.", "joblib.",
}

// findDangerousPattern returns the first dangerous pattern found in text,
// and whether any was found.
func findDangerousPattern(text string) (string, bool) {
	for _, pattern := range dangerousPatterns {
		if strings.Contains(text, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// FindDangerousPattern exposes findDangerousPattern for callers outside this
// package (internal/approval's auto-approve gate) that need the same
// substring check Score already applies internally, without re-deriving the
// pattern list.
func FindDangerousPattern(text string) (string, bool) {
	return findDangerousPattern(text)
}

// DangerousPatterns returns the substring list itself, for callers
// (internal/emergency's pre/post content scan) that need to test each
// pattern independently rather than just the first match.
func DangerousPatterns() []string {
	return dangerousPatterns
}

var assignmentOperators = []string{"+=", "-=", "*=", "/=", "|=", "&=", "^=", "="}

func containsAssignment(text string) bool {
	for _, op := range assignmentOperators {
		if strings.Contains(text, op) {
			return true
		}
	}
	return false
}
