package apply

import "strings"

// splitLines splits content into lines that each retain their own trailing
// "\n" (mirroring Python's readlines(), which apply_fix indexes by
// line_number), so joinLines can reassemble the exact original bytes when
// no line is changed.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

func joinLines(lines []string) string {
	return strings.Join(lines, "")
}

func containsOriginal(line, original string) bool {
	return strings.Contains(line, original)
}

func replaceFirst(line, original, replacement string) string {
	return strings.Replace(line, original, replacement, 1)
}
