package embedding

import (
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// ContentType represents the kind of content being embedded for memory
// storage or recall, so the GenAI backend can pick a task-optimized
// embedding mode.
type ContentType string

const (
	ContentTypeCode        ContentType = "code"         // source code snippet
	ContentTypeIssue       ContentType = "issue"         // detected-issue description
	ContentTypePattern     ContentType = "pattern"       // learned pattern / memory content
	ContentTypeQuery       ContentType = "query"         // a search query against memory
	ContentTypeEducational ContentType = "educational"   // educational annotation text
)

// SelectTaskType picks the GenAI task type best suited to contentType.
func SelectTaskType(contentType ContentType, isQuery bool) string {
	logging.EmbeddingDebug("SelectTaskType: content_type=%s, is_query=%v", contentType, isQuery)

	var taskType string
	switch contentType {
	case ContentTypeCode:
		if isQuery {
			taskType = "CODE_RETRIEVAL_QUERY"
		} else {
			taskType = "RETRIEVAL_DOCUMENT"
		}
	case ContentTypeQuery:
		taskType = "RETRIEVAL_QUERY"
	case ContentTypeIssue, ContentTypePattern:
		taskType = "SEMANTIC_SIMILARITY"
	case ContentTypeEducational:
		taskType = "RETRIEVAL_DOCUMENT"
	default:
		taskType = "SEMANTIC_SIMILARITY"
		logging.EmbeddingDebug("SelectTaskType: unknown content_type=%s, defaulting to SEMANTIC_SIMILARITY", contentType)
	}

	logging.EmbeddingDebug("SelectTaskType: selected task_type=%s", taskType)
	return taskType
}

// DetectContentType infers a ContentType from a memory record's metadata,
// falling back to a content heuristic when metadata is absent.
func DetectContentType(text string, metadata map[string]any) ContentType {
	if meta, ok := metadata["content_type"].(string); ok {
		return ContentType(meta)
	}
	if metaType, ok := metadata["type"].(string); ok {
		switch metaType {
		case "issue", "issue_summary":
			return ContentTypeIssue
		case "pattern", "batch_summary", "iteration":
			return ContentTypePattern
		case "code", "source_code":
			return ContentTypeCode
		case "educational_content":
			return ContentTypeEducational
		}
	}

	lower := strings.ToLower(text)
	codeIndicators := []string{
		"func ", "def ", "class ", "import ", "package ", "const ", "var ",
		"#include", "{", "}", "//", "/*", "*/",
	}
	codeScore := 0
	for _, indicator := range codeIndicators {
		if strings.Contains(lower, indicator) {
			codeScore++
		}
	}
	if codeScore >= 3 {
		return ContentTypeCode
	}

	return ContentTypePattern
}

// GetOptimalTaskType combines detection and selection for convenience.
func GetOptimalTaskType(text string, metadata map[string]any, isQuery bool) string {
	contentType := DetectContentType(text, metadata)
	taskType := SelectTaskType(contentType, isQuery)
	logging.Embedding("GetOptimalTaskType: detected content_type=%s -> task_type=%s", contentType, taskType)
	return taskType
}
