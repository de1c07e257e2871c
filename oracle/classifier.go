package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"formautofill/analyzer"
	"formautofill/models"
	"formautofill/parsers"
	"formautofill/utils"
)

// FallbackConfidence is the fixed confidence of heuristic classifications.
const FallbackConfidence = 0.4

const defaultCacheTTL = 15 * time.Minute

// Classifier infers the purpose of a container. It never fails: any
// provider problem degrades to the keyword based fallback.
type Classifier struct {
	provider Provider
	opts     TaskOptions
	cache    *ClassificationCache
	logger   *utils.Logger
}

// NewClassifier builds a classifier. A nil provider or disabled options
// make every call use the fallback.
func NewClassifier(provider Provider, opts TaskOptions, logger *utils.Logger) *Classifier {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &Classifier{
		provider: provider,
		opts:     opts,
		cache:    NewClassificationCache(defaultCacheTTL),
		logger:   logger.Named("classifier"),
	}
}

// WithCacheTTL replaces the result cache with one whose entries live for ttl.
func (cl *Classifier) WithCacheTTL(ttl time.Duration) *Classifier {
	if ttl > 0 {
		cl.cache = NewClassificationCache(ttl)
	}
	return cl
}

type classificationResponse struct {
	Purpose          string   `json:"purpose"`
	Confidence       *float64 `json:"confidence"`
	SuggestedFields  []string `json:"suggestedFields"`
	IsJobApplication bool     `json:"isJobApplication"`
	IsContactForm    bool     `json:"isContactForm"`
	IsSurvey         bool     `json:"isSurvey"`
	IsRegistration   bool     `json:"isRegistration"`
	RequiresResume   bool     `json:"requiresResume"`
}

// Classify returns the classification for c, consulting the cache first.
func (cl *Classifier) Classify(ctx context.Context, c models.Container) models.Classification {
	if cl.provider == nil || !cl.opts.Enabled {
		return Fallback(c)
	}

	summary := fieldSummary(c.Fields)
	key := cl.cache.Key(c.ContextText, summary)
	if cached, ok := cl.cache.Get(key); ok {
		return cached
	}

	result, err := cl.ask(ctx, c, summary)
	if err != nil {
		cl.logger.Warn("classification failed, using fallback", map[string]interface{}{
			"container": c.Selector,
			"provider":  cl.provider.Name(),
			"error":     err.Error(),
		})
		return Fallback(c)
	}
	cl.cache.Set(key, result)
	return result
}

func (cl *Classifier) ask(ctx context.Context, c models.Container, summary string) (models.Classification, error) {
	if cl.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.opts.Timeout)
		defer cancel()
	}

	raw, err := cl.provider.Complete(ctx, classificationPrompt(c.ContextText, summary), cl.opts.completion())
	if err != nil {
		return models.Classification{}, err
	}
	resp, err := parsers.DecodeJSONObject[classificationResponse](raw)
	if err != nil {
		return models.Classification{}, err
	}
	if resp.Purpose == "" {
		return models.Classification{}, fmt.Errorf("classification response has no purpose")
	}

	confidence := 0.5
	if resp.Confidence != nil {
		confidence = models.NormalizeConfidence(*resp.Confidence)
	}
	return models.Classification{
		Purpose:          resp.Purpose,
		Confidence:       confidence,
		SuggestedFields:  resp.SuggestedFields,
		IsJobApplication: resp.IsJobApplication,
		IsContactForm:    resp.IsContactForm,
		IsSurvey:         resp.IsSurvey,
		IsRegistration:   resp.IsRegistration,
		RequiresResume:   resp.RequiresResume,
	}, nil
}

func fieldSummary(fields []models.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		label := f.Attributes.Label
		if label == "" {
			label = f.Attributes.Name
		}
		if label == "" {
			label = "unlabeled"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Kind, label))
	}
	return strings.Join(parts, ", ")
}

func classificationPrompt(contextText, summary string) string {
	return fmt.Sprintf(`Analyze this web form and classify its purpose.

Context: %s
Fields: %s

Respond with JSON only, no other text:
{
  "purpose": "brief description of the form purpose",
  "confidence": 0.0 to 1.0,
  "suggestedFields": ["field purposes found in the form"],
  "isJobApplication": true or false,
  "isContactForm": true or false,
  "isSurvey": true or false,
  "isRegistration": true or false,
  "requiresResume": true or false
}`, contextText, summary)
}

// Fallback classifies a container from its field shapes and keywords alone.
func Fallback(c models.Container) models.Classification {
	words := make(map[string]bool)
	for _, w := range analyzer.Tokenize(c.ContextText) {
		words[w] = true
	}

	var hasFile, hasEmail, hasTextarea bool
	for _, f := range c.Fields {
		switch f.Kind {
		case models.KindFile:
			hasFile = true
		case models.KindEmail:
			hasEmail = true
		case models.KindTextarea:
			hasTextarea = true
		}
		for _, w := range analyzer.ExtractKeywords(f) {
			words[w] = true
		}
	}

	mentions := func(keys ...string) bool {
		for _, k := range keys {
			if words[k] {
				return true
			}
		}
		return false
	}

	out := models.Classification{
		Purpose:        "general form",
		Confidence:     FallbackConfidence,
		RequiresResume: hasFile,
		Fallback:       true,
	}
	out.IsJobApplication = hasFile && mentions("resume", "cv", "application", "job", "apply")
	out.IsContactForm = (hasEmail || hasTextarea) && mentions("message", "contact", "inquiry")
	out.IsSurvey = mentions("survey", "feedback", "questionnaire")
	out.IsRegistration = mentions("password", "username", "register", "signup")

	switch {
	case out.IsJobApplication:
		out.Purpose = "job application form"
		out.SuggestedFields = []string{"name", "email", "phone", "resume"}
	case out.IsContactForm:
		out.Purpose = "contact form"
		out.SuggestedFields = []string{"name", "email", "message"}
	case out.IsSurvey:
		out.Purpose = "survey form"
	case out.IsRegistration:
		out.Purpose = "registration form"
		out.SuggestedFields = []string{"email", "username", "password"}
	}
	return out
}
