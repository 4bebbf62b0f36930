package textfilter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lower lower-cases s using Unicode case rules.
// A new Caser is built per call since Casers are not safe for concurrent use.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// KeywordMatcher finds keywords inside free text, ignoring case
type KeywordMatcher struct {
	keywords []string
}

// NewKeywordMatcher creates a matcher for the given keywords.
// Blank keywords are dropped; they would otherwise match everything.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	km := &KeywordMatcher{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		km.keywords = append(km.keywords, Lower(k))
	}
	return km
}

// Empty reports whether the matcher has no usable keywords
func (km *KeywordMatcher) Empty() bool {
	return len(km.keywords) == 0
}

// MatchAny reports whether any keyword occurs in text
func (km *KeywordMatcher) MatchAny(text string) bool {
	if text == "" {
		return false
	}
	lowered := Lower(text)
	for _, k := range km.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// Matches returns every keyword that occurs in text, lower-cased
func (km *KeywordMatcher) Matches(text string) []string {
	if text == "" {
		return nil
	}
	lowered := Lower(text)
	var found []string
	for _, k := range km.keywords {
		if strings.Contains(lowered, k) {
			found = append(found, k)
		}
	}
	return found
}

// EqualFold compares two short labels (moods, trait names) ignoring case
func EqualFold(a, b string) bool {
	return Lower(strings.TrimSpace(a)) == Lower(strings.TrimSpace(b))
}
