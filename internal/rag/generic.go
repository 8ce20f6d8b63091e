package rag

import "strings"

var DefaultGenericPatterns = []string{
	"what can you do",
	"how can you help",
	"what are your capabilities",
	"what kind of questions",
	"how does this work",
	"tell me about yourself",
	"what should i ask",
}

// IsGenericQuestion reports whether query is a question about the assistant
// itself rather than about the indexed documents.
func IsGenericQuestion(query string, patterns []string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(q, p) {
			return true
		}
	}
	return false
}
