package orchestrator

import (
	"regexp"
	"strings"
)

var (
	citationPattern = regexp.MustCompile(`\[chunk:([A-Za-z0-9_-]+)\]`)
	filePathPattern = regexp.MustCompile("`([\\w./-]+\\.[A-Za-z0-9]{1,5})`")
)

// ValidationResult 答案校验结果
type ValidationResult struct {
	Valid     bool
	Citations []string // 答案中出现的片段 ID，按出现顺序去重
	Reason    string
}

// ValidateDraft 校验生成的答案草稿
// 要求：至少一条引用；引用的片段必须来自本次上下文；
// 反引号内提到的文件路径必须属于上下文中的片段
func ValidateDraft(draft string, includedChunkIDs []string, includedPaths map[string]bool) ValidationResult {
	citations := extractCitations(draft)
	if len(citations) == 0 {
		return ValidationResult{Reason: "answer contains no chunk citations"}
	}

	included := make(map[string]bool, len(includedChunkIDs))
	for _, id := range includedChunkIDs {
		included[id] = true
	}

	for _, id := range citations {
		if !included[id] {
			return ValidationResult{
				Citations: citations,
				Reason:    "answer cites chunk " + id + " that is not in the assembled context",
			}
		}
	}

	for _, match := range filePathPattern.FindAllStringSubmatch(draft, -1) {
		path := match[1]
		if !includedPaths[path] && !pathSuffixKnown(path, includedPaths) {
			return ValidationResult{
				Citations: citations,
				Reason:    "answer references file " + path + " that is not in the assembled context",
			}
		}
	}

	return ValidationResult{Valid: true, Citations: citations}
}

// extractCitations 提取答案中的片段引用，保持出现顺序并去重
func extractCitations(draft string) []string {
	seen := make(map[string]bool)
	var citations []string
	for _, match := range citationPattern.FindAllStringSubmatch(draft, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			citations = append(citations, match[1])
		}
	}
	return citations
}

// pathSuffixKnown 宽松匹配：答案可能只写文件名或更短的相对路径
func pathSuffixKnown(path string, includedPaths map[string]bool) bool {
	for known := range includedPaths {
		if strings.HasSuffix(known, path) || strings.HasSuffix(path, known) {
			return true
		}
	}
	return false
}
