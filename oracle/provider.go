// Package oracle talks to the remote language model used to classify
// containers and to answer fields the heuristics could not resolve.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Provider names accepted by NewProvider.
const (
	ProviderAzure       = "azure"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderNone        = "none"
)

// DefaultHuggingFaceEndpoint is the inference API base; the model id is appended.
const DefaultHuggingFaceEndpoint = "https://api-inference.huggingface.co/models/"

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// CompletionOptions tune one completion request.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider turns a prompt into raw model text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// TaskOptions configure one oracle use: classification or answer matching.
type TaskOptions struct {
	Enabled     bool
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// Threshold is the minimum confidence an answer needs to be used.
	Threshold float64
}

// DefaultClassificationOptions mirror the tuned production values.
func DefaultClassificationOptions() TaskOptions {
	return TaskOptions{Enabled: true, Temperature: 0.3, MaxTokens: 300, Timeout: 10 * time.Second}
}

// DefaultAnswerOptions mirror the tuned production values.
func DefaultAnswerOptions() TaskOptions {
	return TaskOptions{Enabled: true, Temperature: 0.2, MaxTokens: 150, Timeout: 8 * time.Second, Threshold: 0.6}
}

func (o TaskOptions) completion() CompletionOptions {
	return CompletionOptions{Temperature: o.Temperature, MaxTokens: o.MaxTokens}
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name             string
	AzureEndpoint    string
	AzureAPIKey      string
	HuggingFaceKey   string
	HuggingFaceModel string
	HuggingFaceURL   string
	GeminiAPIKey     string
	GeminiModel      string
	// RequestsPerSecond throttles outgoing calls when positive.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// NewProvider builds the configured provider. It returns nil, nil for "none".
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	var p Provider
	switch strings.ToLower(cfg.Name) {
	case ProviderAzure:
		if cfg.AzureEndpoint == "" || cfg.AzureAPIKey == "" {
			return nil, fmt.Errorf("azure provider requires an endpoint and an api key")
		}
		p = NewAzureProvider(cfg.AzureEndpoint, cfg.AzureAPIKey, client)
	case ProviderHuggingFace:
		if cfg.HuggingFaceKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an api key")
		}
		p = NewHuggingFaceProvider(cfg.HuggingFaceURL, cfg.HuggingFaceModel, cfg.HuggingFaceKey, client)
	case ProviderGemini:
		gp, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		p = gp
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Name)
	}

	if cfg.RequestsPerSecond > 0 {
		p = WithRateLimit(p, cfg.RequestsPerSecond, 3)
	}
	return p, nil
}

type limitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that calls wait for a token before being sent.
func WithRateLimit(p Provider, perSecond float64, burst int) Provider {
	return &limitedProvider{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *limitedProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Provider.Complete(ctx, prompt, opts)
}
