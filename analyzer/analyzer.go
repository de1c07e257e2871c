// Package analyzer turns field metadata into the keyword sets the mapper scores.
package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"formautofill/models"
)

const (
	maxParentContext  = 200
	maxSiblingContext = 100
	maxContext        = 500
)

// Tokenize splits camelCase, snake_case and kebab-case words, lowercases
// them and drops duplicates, keeping first-seen order.
func Tokenize(s string) []string {
	if s == "" {
		return []string{}
	}
	var b strings.Builder
	var prev rune
	for i, r := range s {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	// Casers carry state, so each call gets its own.
	lowered := cases.Lower(language.Und).String(b.String())
	return dedupe(strings.Fields(lowered))
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// ExtractKeywords unions the tokens of a field's name, id, label and placeholder.
func ExtractKeywords(f models.Field) []string {
	a := f.Attributes
	var all []string
	for _, src := range []string{a.Name, a.ID, a.Label, a.Placeholder} {
		all = append(all, Tokenize(src)...)
	}
	return dedupe(all)
}

// Analyze derives the keyword set and surrounding text of a field.
func Analyze(f models.Field) models.FieldAnalysis {
	return models.FieldAnalysis{
		Field:    f,
		Keywords: ExtractKeywords(f),
		Context:  fieldContext(f),
	}
}

func fieldContext(f models.Field) string {
	if f.Element == nil {
		return ""
	}
	var parts []string
	if p := f.Element.Parent(); p != nil {
		if t := strings.TrimSpace(p.TextContent()); t != "" && runeLen(t) < maxParentContext {
			parts = append(parts, t)
		}
	}
	if s := f.Element.PreviousSibling(); s != nil {
		if t := strings.TrimSpace(s.TextContent()); t != "" && runeLen(t) < maxSiblingContext {
			parts = append(parts, t)
		}
	}
	return Truncate(strings.Join(parts, " "), maxContext)
}

func runeLen(s string) int { return len([]rune(s)) }

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
