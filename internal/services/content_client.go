// internal/services/content_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/CampaignStudio/internal/config"
	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/llm"
	"github.com/Corphon/CampaignStudio/internal/models"
)

// RepurposeEndpoint is the generation service endpoint name.
const RepurposeEndpoint = "content-repurposer"

// TargetFormatMultiple requests a whole bundle.
const TargetFormatMultiple = "multiple"

// RepurposeRequest is the request sent to the generation service.
type RepurposeRequest struct {
	Endpoint string        `json:"endpoint"`
	Data     RepurposeData `json:"data"`
}

// RepurposeData is the request payload.
type RepurposeData struct {
	Content      string `json:"content"`
	SourceFormat string `json:"sourceFormat"`
	TargetFormat string `json:"targetFormat"`
	Tone         string `json:"tone"`
}

// NewRepurposeRequest builds a request for the descriptor; targetFormat is
// TargetFormatMultiple or an artifact type.
func NewRepurposeRequest(descriptor models.CampaignDescriptor, targetFormat, tone string) RepurposeRequest {
	return RepurposeRequest{
		Endpoint: RepurposeEndpoint,
		Data: RepurposeData{
			Content:      descriptor.Serialize(),
			SourceFormat: "campaign",
			TargetFormat: targetFormat,
			Tone:         tone,
		},
	}
}

// ContentClient performs one generation round trip and returns the raw response body.
type ContentClient interface {
	Repurpose(ctx context.Context, req RepurposeRequest) ([]byte, error)
}

// NewContentClient picks the backend named by cfg.GenerationBackend.
func NewContentClient(cfg *config.AppConfig, llmService *LLMService) (ContentClient, error) {
	switch cfg.GenerationBackend {
	case config.BackendLLM:
		var completer TextCompleter
		if llmService != nil {
			completer = llmService
		}
		return NewLLMContentClient(completer), nil
	case config.BackendHTTP, "":
		return NewHTTPContentClient(cfg.ContentServiceURL, cfg.ContentServiceKey, cfg.GenerationTimeout()).
			WithResponseLimit(cfg.MaxResponseBytes()), nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.GenerationBackend)
	}
}

// defaultResponseLimit bounds a content service response unless WithResponseLimit says otherwise.
const defaultResponseLimit int64 = 4 << 20

// HTTPContentClient calls the external generation service over HTTP.
type HTTPContentClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	maxBytes int64
}

// NewHTTPContentClient creates a client for baseURL.
func NewHTTPContentClient(baseURL, apiKey string, timeout time.Duration) *HTTPContentClient {
	return &HTTPContentClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		maxBytes: defaultResponseLimit,
	}
}

// WithResponseLimit returns a copy that reads at most n response bytes. n <= 0 keeps the default.
func (c *HTTPContentClient) WithResponseLimit(n int64) *HTTPContentClient {
	out := *c
	if n > 0 {
		out.maxBytes = n
	}
	return &out
}

// Repurpose posts req.Data to {baseURL}/{endpoint}.
func (c *HTTPContentClient) Repurpose(ctx context.Context, req RepurposeRequest) ([]byte, error) {
	if c.baseURL == "" {
		return nil, appErrors.NewNetworkError("content service URL not configured", nil)
	}

	body, err := json.Marshal(req.Data)
	if err != nil {
		return nil, appErrors.NewNetworkError("encode generation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.NewNetworkError("build generation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, appErrors.NewNetworkError("generation request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, appErrors.NewNetworkError("read generation response", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, appErrors.NewNetworkError(fmt.Sprintf("generation response exceeds %d bytes", c.maxBytes), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, appErrors.NewNetworkError(
			fmt.Sprintf("generation service returned %d", resp.StatusCode),
			fmt.Errorf("%s", truncateRunes(string(data), 200)),
		)
	}
	return data, nil
}

// TextCompleter is the part of LLMService the LLM content client needs.
type TextCompleter interface {
	CompleteText(ctx context.Context, prompt, systemPrompt string) (*llm.CompletionResponse, error)
}

// LLMContentClient generates content with an LLM provider instead of the external service.
// It answers in the {repurposedContent: string} response shape.
type LLMContentClient struct {
	completer TextCompleter
}

// NewLLMContentClient wraps an LLM completer.
func NewLLMContentClient(completer TextCompleter) *LLMContentClient {
	return &LLMContentClient{completer: completer}
}

const repurposeSystemPrompt = "You are a B2B marketing copywriter. Return only valid JSON matching the requested shape, without explanations or markdown."

// Repurpose renders a prompt for the target format and wraps the model text.
func (c *LLMContentClient) Repurpose(ctx context.Context, req RepurposeRequest) ([]byte, error) {
	if c.completer == nil {
		return nil, appErrors.NewNetworkError("LLM backend not configured", ErrLLMNotReady)
	}

	resp, err := c.completer.CompleteText(ctx, buildRepurposePrompt(req.Data), repurposeSystemPrompt)
	if err != nil {
		return nil, appErrors.NewNetworkError("LLM generation failed", err)
	}

	out, err := json.Marshal(map[string]string{"repurposedContent": resp.Text})
	if err != nil {
		return nil, appErrors.NewNetworkError("encode LLM response", err)
	}
	return out, nil
}

var targetShapes = map[string]string{
	string(models.ArtifactEbook):       `{"title": string, "preview": string, "chapters": [string]}`,
	string(models.ArtifactSocialPosts): `[{"platform": string, "posts": [string]}]`,
	string(models.ArtifactEmailFlow):   `[{"type": "welcome"|"nurture"|"conversion", "subject": string, "preview": string}]`,
	string(models.ArtifactSdrEmails):   `[{"day": number, "subject": string, "body": string}]`,
}

func buildRepurposePrompt(data RepurposeData) string {
	var sb strings.Builder
	sb.WriteString("Campaign brief (JSON):\n")
	sb.WriteString(data.Content)
	sb.WriteString("\n\nTone: ")
	sb.WriteString(data.Tone)
	sb.WriteString("\n\n")

	if shape, ok := targetShapes[data.TargetFormat]; ok {
		fmt.Fprintf(&sb, "Write the %s for this campaign. Respond with JSON of the form %s.", data.TargetFormat, shape)
		return sb.String()
	}

	sb.WriteString("Write the complete campaign content. Respond with one JSON object with these keys:\n")
	for _, t := range models.AllArtifactTypes {
		fmt.Fprintf(&sb, "- %q: %s\n", t, targetShapes[string(t)])
	}
	sb.WriteString("Include a five-chapter ebook, posts for each channel, a three-step email flow and a three-step SDR sequence.")
	return sb.String()
}
