package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"formautofill/analyzer"
	"formautofill/models"
	"formautofill/parsers"
	"formautofill/utils"
)

const (
	defaultAnswerConfidence = 0.5
	defaultAnswerReasoning  = "AI matched from profile"
	maxDescription          = 200
	maxSkills               = 10
)

// Answer is a value the oracle synthesized for a field.
type Answer struct {
	Value      models.Value
	Confidence float64
	Reasoning  string
}

// AnswerMatcher asks the oracle to answer fields heuristics left unmapped.
type AnswerMatcher struct {
	provider Provider
	opts     TaskOptions
	logger   *utils.Logger
}

func NewAnswerMatcher(provider Provider, opts TaskOptions, logger *utils.Logger) *AnswerMatcher {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &AnswerMatcher{provider: provider, opts: opts, logger: logger.Named("answer-matcher")}
}

// Enabled reports whether Match can ever return an answer.
func (m *AnswerMatcher) Enabled() bool {
	return m != nil && m.provider != nil && m.opts.Enabled
}

// Threshold is the minimum confidence callers should accept.
func (m *AnswerMatcher) Threshold() float64 { return m.opts.Threshold }

type answerResponse struct {
	Value      json.RawMessage `json:"value"`
	Confidence *float64        `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// Match returns the oracle's answer for a field, or nil when the oracle
// declines, fails or is unavailable. Failures are logged, never returned.
func (m *AnswerMatcher) Match(ctx context.Context, a models.FieldAnalysis, profile *models.Profile) *Answer {
	if !m.Enabled() {
		return nil
	}
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	raw, err := m.provider.Complete(ctx, answerPrompt(a, profile), m.opts.completion())
	if err != nil {
		m.logger.Warn("answer matching failed", map[string]interface{}{
			"field": a.Field.Selector,
			"error": err.Error(),
		})
		return nil
	}
	answer, err := ParseAnswer(raw)
	if err != nil {
		m.logger.Debug("unusable answer response", map[string]interface{}{
			"field": a.Field.Selector,
			"error": err.Error(),
		})
		return nil
	}
	return answer
}

// ParseAnswer decodes a raw provider response. A bare null, a null value
// or the string "null" mean the oracle could not answer and yield nil, nil.
func ParseAnswer(raw string) (*Answer, error) {
	if parsers.IsJSONNull(raw) {
		return nil, nil
	}
	resp, err := parsers.DecodeJSONObject[answerResponse](raw)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if len(resp.Value) > 0 {
		if err := json.Unmarshal(resp.Value, &decoded); err != nil {
			return nil, fmt.Errorf("decode answer value: %w", err)
		}
	}
	if s, ok := decoded.(string); ok && strings.EqualFold(strings.TrimSpace(s), "null") {
		return nil, nil
	}
	value, err := models.ValueFromAny(decoded)
	if err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, nil
	}

	out := &Answer{Value: value, Confidence: defaultAnswerConfidence, Reasoning: resp.Reasoning}
	if resp.Confidence != nil {
		out.Confidence = models.NormalizeConfidence(*resp.Confidence)
	}
	if out.Reasoning == "" {
		out.Reasoning = defaultAnswerReasoning
	}
	return out, nil
}

func answerPrompt(a models.FieldAnalysis, profile *models.Profile) string {
	attrs := a.Field.Attributes
	question := attrs.Label
	if question == "" {
		question = attrs.Placeholder
	}
	if question == "" {
		question = attrs.Name
	}
	if question == "" {
		question = "unlabeled field"
	}
	required := "No"
	if attrs.Required {
		required = "Yes"
	}

	return fmt.Sprintf(`You are filling out a form on behalf of a user. Answer the question using only the profile below.

Question: %s
Field Type: %s
Keywords: %s
Required: %s

User Profile:
%s

Respond with JSON only:
{"value": "the answer, or an array of strings for multi-select fields", "confidence": 0.0 to 1.0, "reasoning": "short explanation"}
If the profile does not contain the answer, respond with null.`,
		question, a.Field.Kind, strings.Join(a.Keywords, ", "), required, SummarizeProfile(profile))
}

// SummarizeProfile renders the parts of a profile the oracle sees: personal
// values, the most recent job and education entry, the first skills and
// every custom entry.
func SummarizeProfile(p *models.Profile) string {
	if p == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString("Personal Information:\n")
	for _, key := range models.PersonalKeys {
		if v, _ := p.Personal.Get(key); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", key, v)
		}
	}

	if len(p.Experiences) > 0 {
		exp := p.Experiences[0]
		end := exp.EndDate
		if exp.Current || end == "" {
			end = "Present"
		}
		fmt.Fprintf(&b, "\nCurrent Job: %s at %s (%s - %s)\n", exp.Position, exp.Company, exp.StartDate, end)
		if exp.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", analyzer.Truncate(exp.Description, maxDescription))
		}
	}

	if len(p.Education) > 0 {
		edu := p.Education[0]
		major := edu.Major
		if major == "" {
			major = "N/A"
		}
		year := edu.GraduationYear
		if year == "" {
			year = "N/A"
		}
		fmt.Fprintf(&b, "\nEducation: %s in %s from %s (%s)\n", edu.Degree, major, edu.School, year)
	}

	if len(p.Skills) > 0 {
		skills := p.Skills
		if len(skills) > maxSkills {
			skills = skills[:maxSkills]
		}
		fmt.Fprintf(&b, "\nSkills: %s\n", strings.Join(skills, ", "))
	}

	if len(p.Custom) > 0 {
		keys := make([]string, 0, len(p.Custom))
		for k := range p.Custom {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nAdditional Information:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, p.Custom[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
