// Package mapper binds detected fields to profile values.
package mapper

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"formautofill/analyzer"
	"formautofill/models"
	"formautofill/oracle"
	"formautofill/utils"
)

const (
	// HeuristicThreshold is the minimum keyword score a profile path needs.
	HeuristicThreshold = 0.5
	// DomainConfidence is the fixed confidence of per-site overrides.
	DomainConfidence = 1.0

	oracleConcurrency = 3
)

// AnswerOracle answers fields the heuristic pass could not resolve.
type AnswerOracle interface {
	Enabled() bool
	Threshold() float64
	Match(ctx context.Context, a models.FieldAnalysis, profile *models.Profile) *oracle.Answer
}

type Mapper struct {
	oracle AnswerOracle
	logger *utils.Logger
}

// New returns a mapper. A nil oracle disables the second pass.
func New(o AnswerOracle, logger *utils.Logger) *Mapper {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &Mapper{oracle: o, logger: logger.Named("mapper")}
}

// Map resolves every field it can. Per-site overrides and heuristic
// matches come first; fields left over go to the oracle. The result keeps
// the order of fields and omits fields nothing could resolve.
func (m *Mapper) Map(ctx context.Context, fields []models.Field, profile *models.Profile, domain *models.DomainMapping) []models.FieldMapping {
	if profile == nil {
		return nil
	}
	candidates := profile.CandidatePaths()

	resolved := make([]*models.FieldMapping, len(fields))
	var residual []int
	var analyses []models.FieldAnalysis
	for i, f := range fields {
		a := analyzer.Analyze(f)
		analyses = append(analyses, a)

		if path, ok := domainPath(domain, f.Selector); ok {
			resolved[i] = m.fromDomain(f, path, profile)
			continue
		}
		if best, score, ok := BestMatch(a.Keywords, candidates); ok {
			resolved[i] = &models.FieldMapping{
				Field:       f,
				ProfilePath: best.Path,
				Confidence:  score,
				Value:       best.Value.As(f.Kind.ValueKind()),
				Source:      models.MappingHeuristic,
			}
			continue
		}
		residual = append(residual, i)
	}

	if len(residual) > 0 && m.oracle != nil && m.oracle.Enabled() {
		m.askOracle(ctx, residual, analyses, profile, resolved)
	}

	out := make([]models.FieldMapping, 0, len(fields))
	for _, r := range resolved {
		if r != nil {
			out = append(out, *r)
		}
	}
	m.logger.Info("fields mapped", map[string]interface{}{
		"fields":   len(fields),
		"mapped":   len(out),
		"residual": len(residual),
	})
	return out
}

func domainPath(domain *models.DomainMapping, selector string) (string, bool) {
	if domain == nil || domain.FieldMappings == nil {
		return "", false
	}
	path, ok := domain.FieldMappings[selector]
	return path, ok
}

// fromDomain binds an override. An override whose path no longer exists in
// the profile leaves the field unmapped rather than falling back to guesses.
func (m *Mapper) fromDomain(f models.Field, path string, profile *models.Profile) *models.FieldMapping {
	v, ok := profile.Lookup(path)
	if !ok {
		m.logger.Warn("domain mapping points at a missing profile path", map[string]interface{}{
			"selector": f.Selector,
			"path":     path,
		})
		return nil
	}
	return &models.FieldMapping{
		Field:       f,
		ProfilePath: path,
		Confidence:  DomainConfidence,
		Value:       v.As(f.Kind.ValueKind()),
		Source:      models.MappingDomain,
	}
}

// askOracle fills resolved for the residual indexes, at most
// oracleConcurrency requests at a time. A failed call leaves its field unmapped.
func (m *Mapper) askOracle(ctx context.Context, residual []int, analyses []models.FieldAnalysis, profile *models.Profile, resolved []*models.FieldMapping) {
	threshold := m.oracle.Threshold()
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(oracleConcurrency)

	for _, idx := range residual {
		g.Go(func() error {
			a := analyses[idx]
			answer := m.oracle.Match(ctx, a, profile)
			if answer == nil || answer.Confidence < threshold {
				return nil
			}
			mapping := &models.FieldMapping{
				Field:       a.Field,
				ProfilePath: models.AIGeneratedPath,
				Confidence:  answer.Confidence,
				Value:       answer.Value.As(a.Field.Kind.ValueKind()),
				Source:      models.MappingOracle,
				Reasoning:   answer.Reasoning,
			}
			mu.Lock()
			resolved[idx] = mapping
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// Score is the share of keywords that pair with a path token, where a pair
// counts when either string contains the other. Several tokens may pair with
// one keyword, so the raw ratio is clipped to 1.
func Score(keywords []string, path string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	tokens := strings.Split(strings.ToLower(path), ".")
	matches := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if strings.Contains(tok, kw) || strings.Contains(kw, tok) {
				matches++
			}
		}
	}
	score := float64(matches) / float64(len(keywords))
	if score > 1 {
		return 1
	}
	return score
}

// BestMatch returns the highest scoring candidate; the earliest wins ties.
// ok is false when the best score is below HeuristicThreshold.
func BestMatch(keywords []string, candidates []models.ProfilePath) (models.ProfilePath, float64, bool) {
	var best models.ProfilePath
	bestScore := 0.0
	for _, c := range candidates {
		if s := Score(keywords, c.Path); s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < HeuristicThreshold {
		return models.ProfilePath{}, bestScore, false
	}
	return best, bestScore, true
}
