package orchestrator

import "strings"

// maskReplacement substitutes sensitive keywords in outgoing prompts.
const maskReplacement = "********"

// Sanitizer masks configured sensitive keywords before a prompt leaves the
// process. Keyword matching is literal; pattern-based masking is a possible
// extension but the keyword list covers the known deployments.
type Sanitizer struct {
	replacer *strings.Replacer
}

// NewSanitizer builds a sanitizer over the given keyword list. An empty
// list yields a pass-through sanitizer.
func NewSanitizer(keywords []string) *Sanitizer {
	if len(keywords) == 0 {
		return &Sanitizer{}
	}
	pairs := make([]string, 0, len(keywords)*2)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		pairs = append(pairs, kw, maskReplacement)
	}
	return &Sanitizer{replacer: strings.NewReplacer(pairs...)}
}

// Sanitize returns the prompt with sensitive keywords masked.
func (s *Sanitizer) Sanitize(prompt string) string {
	if s == nil || s.replacer == nil {
		return prompt
	}
	return s.replacer.Replace(prompt)
}
