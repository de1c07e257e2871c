package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultHuggingFaceModel = "mistralai/Mistral-7B-Instruct-v0.2"

// AzureProvider calls an Azure OpenAI chat completions deployment.
type AzureProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewAzureProvider(endpoint, apiKey string, client *http.Client) *AzureProvider {
	return &AzureProvider{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (p *AzureProvider) Name() string { return ProviderAzure }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type azureResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *AzureProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	body := azureRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	raw, err := postJSON(ctx, p.client, p.endpoint, map[string]string{"api-key": p.apiKey}, body)
	if err != nil {
		return "", fmt.Errorf("azure: %w", err)
	}

	var resp azureResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("azure: decode response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// HuggingFaceProvider calls the Hugging Face text-generation inference API.
type HuggingFaceProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHuggingFaceProvider(baseURL, model, apiKey string, client *http.Client) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceEndpoint
	}
	if model == "" {
		model = defaultHuggingFaceModel
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HuggingFaceProvider{endpoint: baseURL + model, apiKey: apiKey, client: client}
}

func (p *HuggingFaceProvider) Name() string { return ProviderHuggingFace }

type hfParameters struct {
	Temperature    float64 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

func (p *HuggingFaceProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	body := hfRequest{
		Inputs: "<s>[INST] " + prompt + " [/INST]",
		Parameters: hfParameters{
			Temperature:  opts.Temperature,
			MaxNewTokens: opts.MaxTokens,
		},
	}
	raw, err := postJSON(ctx, p.client, p.endpoint, map[string]string{"Authorization": "Bearer " + p.apiKey}, body)
	if err != nil {
		return "", fmt.Errorf("huggingface: %w", err)
	}

	var resp []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("huggingface: unexpected response format: %w", err)
	}
	if len(resp) == 0 || resp[0].GeneratedText == "" {
		return "", ErrEmptyCompletion
	}
	return resp[0].GeneratedText, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, truncate(string(b), 200))
	}
	return b, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
