package orchestrator

import "strings"

// smalltalkPhrases 无需检索即可直接回应的寒暄
var smalltalkPhrases = map[string]string{
	"hi":           "Hi! Ask me anything about this repository and I'll answer from its code.",
	"hello":        "Hello! Ask me anything about this repository and I'll answer from its code.",
	"hey":          "Hey! Ask me anything about this repository and I'll answer from its code.",
	"thanks":       "You're welcome!",
	"thank you":    "You're welcome!",
	"who are you":  "I'm a repository assistant. I answer questions grounded in this codebase.",
	"what are you": "I'm a repository assistant. I answer questions grounded in this codebase.",
}

// ClassifyIntent 启发式意图分类
// 寒暄短路为直接回应，其余一律走检索流水线
func ClassifyIntent(query string) (Intent, string) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.TrimRight(normalized, "!?.,")

	if reply, ok := smalltalkPhrases[normalized]; ok {
		return IntentSmalltalk, reply
	}
	return IntentCode, ""
}
