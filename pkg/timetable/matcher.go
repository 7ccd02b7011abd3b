package timetable

import (
	"fmt"
	"strings"
	"unicode"
)

// NameMatcher decides whether an upper-cased row text refers to the searched name token.
type NameMatcher interface {
	Match(rowText, token string) bool
}

// MatcherFunc adapts a plain function to NameMatcher.
type MatcherFunc func(rowText, token string) bool

// Match implements NameMatcher.
func (f MatcherFunc) Match(rowText, token string) bool { return f(rowText, token) }

// SubstringMatcher matches when the token appears anywhere in the row.
var SubstringMatcher = MatcherFunc(func(rowText, token string) bool {
	return token != "" && strings.Contains(rowText, token)
})

// WordMatcher matches only when the token equals a whole word of the row.
var WordMatcher = MatcherFunc(func(rowText, token string) bool {
	if token == "" {
		return false
	}
	for _, word := range words(rowText) {
		if word == token {
			return true
		}
	}
	return false
})

// FuzzyMatcher tolerates up to MaxDistance single-character edits between the token
// and any word of the row. Useful for hand-typed timetables with misspelt names.
type FuzzyMatcher struct {
	MaxDistance int
}

// Match implements NameMatcher.
func (m FuzzyMatcher) Match(rowText, token string) bool {
	if token == "" {
		return false
	}
	for _, word := range words(rowText) {
		if levenshtein(word, token) <= m.MaxDistance {
			return true
		}
	}
	return false
}

// NewNameMatcher resolves a matcher by configuration name: substring, word or fuzzy.
func NewNameMatcher(name string, maxDistance int) (NameMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "substring":
		return SubstringMatcher, nil
	case "word", "exact":
		return WordMatcher, nil
	case "fuzzy", "levenshtein":
		if maxDistance < 0 {
			maxDistance = 0
		}
		return FuzzyMatcher{MaxDistance: maxDistance}, nil
	default:
		return nil, fmt.Errorf("unknown name matcher %q", name)
	}
}

// NameToken returns the upper-cased first word of a teacher name.
func NameToken(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
