// Package ai enriches notes with an AI-generated summary and keyword
// tags via the Gemini API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const enrichPrompt = `Summarise the following document in 2-3 sentences, then pick up to 5 short keyword tags.
Respond with JSON only, in this exact shape: {"summary": "...", "keywords": ["...", "..."]}

Title: %s

%s`

// Enrichment is the AI output for one note.
type Enrichment struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Client defines the interface for AI enrichment providers.
type Client interface {
	Enrich(ctx context.Context, title, content string) (*Enrichment, error)
	Name() string
}

// GeminiClient implements Client using the Gemini generateContent endpoint.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(url string) Option {
	return func(c *GeminiClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *GeminiClient) {
		c.httpClient.Timeout = d
	}
}

// NewGeminiClient creates a Gemini enrichment client.
func NewGeminiClient(apiKey, model string, opts ...Option) *GeminiClient {
	c := &GeminiClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		apiKey:  apiKey,
		model:   model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Enrich asks Gemini for a summary and keyword tags for the given note
// content.
func (c *GeminiClient) Enrich(ctx context.Context, title, content string) (*Enrichment, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	reqBody := generateRequest{
		Contents: []requestContent{{
			Parts: []requestPart{{Text: fmt.Sprintf(enrichPrompt, title, content)}},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request enrichment: %w", err)
	}
	defer resp.Body.Close()

	var apiResponse generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiResponse.Error != nil {
			return nil, fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, apiResponse.Error.Message)
		}
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if len(apiResponse.Candidates) == 0 || len(apiResponse.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty enrichment response")
	}

	raw := apiResponse.Candidates[0].Content.Parts[0].Text

	enrichment, err := parseEnrichment(raw)
	if err != nil {
		return nil, fmt.Errorf("parse enrichment: %w", err)
	}
	return enrichment, nil
}

// parseEnrichment decodes the model's JSON answer, tolerating markdown
// code fences around the payload.
func parseEnrichment(raw string) (*Enrichment, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var enrichment Enrichment
	if err := json.Unmarshal([]byte(raw), &enrichment); err != nil {
		return nil, err
	}
	if enrichment.Summary == "" {
		return nil, fmt.Errorf("response missing summary")
	}

	// Normalise keywords: trim, drop empties, lower-case.
	keywords := make([]string, 0, len(enrichment.Keywords))
	for _, kw := range enrichment.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	enrichment.Keywords = keywords

	return &enrichment, nil
}
