// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Corphon/CampaignStudio/internal/config"
	"github.com/Corphon/CampaignStudio/internal/llm"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// ErrLLMNotReady is returned when no provider is configured.
var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"anthropic":  "claude-3-5-sonnet-latest",
	"openrouter": "openai/gpt-4o-mini",
}

// LLMService wraps the active provider and tracks whether it is usable.
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	isReady            bool
	readyState         string
	activeDefaultModel string
	registry           *llm.Registry

	// serializes model list reads and refreshes on the active provider
	modelsMu sync.Mutex
}

// NewLLMService initializes the provider named in cfg. A missing key or a failed
// initialization yields a service that is not ready, never an error.
func NewLLMService(cfg *config.AppConfig) *LLMService {
	return newLLMServiceWithRegistry(cfg, llm.DefaultRegistry)
}

func newLLMServiceWithRegistry(cfg *config.AppConfig, registry *llm.Registry) *LLMService {
	service := &LLMService{readyState: "Uninitialized", registry: registry}

	if cfg == nil {
		service.readyState = "Configuration unavailable"
		return service
	}
	if cfg.LLMProvider == "" || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	if err := service.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		utils.GetLogger().Warn("LLM provider initialization failed", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
	}
	return service
}

// IsReady reports whether a provider is configured.
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState describes the readiness state.
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName returns the configured provider name.
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider swaps the active provider.
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := s.registry.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(cfg)
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

// CompleteText runs one completion against the active provider. Responses are never cached:
// every regeneration must produce fresh content.
func (s *LLMService) CompleteText(ctx context.Context, prompt, systemPrompt string) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	provider, ready, state := s.provider, s.isReady, s.readyState
	s.providerMutex.RUnlock()
	if provider == nil || !ready {
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  0.7,
		Model:        s.resolveModel(""),
	})
	if err != nil {
		return nil, err
	}

	utils.GetLogger().Debug("LLM completion finished", map[string]interface{}{
		"provider":    resp.ProviderName,
		"model":       resp.ModelName,
		"tokens":      resp.TokensUsed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// SupportedModels lists the models of the active provider, or nil when none is configured.
func (s *LLMService) SupportedModels() []string {
	s.providerMutex.RLock()
	provider := s.provider
	s.providerMutex.RUnlock()
	if provider == nil {
		return nil
	}
	s.modelsMu.Lock()
	defer s.modelsMu.Unlock()
	return append([]string(nil), provider.GetSupportedModels()...)
}

// RefreshModels reloads the model list of the active provider. A non-empty custom
// list replaces it without contacting the provider.
func (s *LLMService) RefreshModels(ctx context.Context, custom []string) ([]string, error) {
	s.providerMutex.RLock()
	provider, state := s.provider, s.readyState
	s.providerMutex.RUnlock()
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}

	s.modelsMu.Lock()
	defer s.modelsMu.Unlock()
	if len(custom) > 0 {
		provider.SetCustomModels(custom)
	} else if err := provider.FetchAvailableModels(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s models: %w", provider.GetName(), err)
	}
	return append([]string(nil), provider.GetSupportedModels()...), nil
}

// GetDefaultModel returns the model used when a request names none.
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}
	if model, exists := providerDefaultModels[providerName]; exists {
		return model
	}
	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			return strings.TrimSpace(models[0])
		}
	}
	return ""
}

func extractDefaultModel(cfg map[string]string) string {
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	return strings.TrimSpace(cfg["model"])
}

var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'，': ',',
	'；': ';',
	'【': '[',
	'】': ']',
	'｛': '{',
	'｝': '}',
}

var quotePairs = map[rune]rune{
	'“': '”',
	'”': '”',
	'„': '”',
}

// normalizeJSONStructure rewrites typographic quotes and full-width punctuation outside
// string literals to their ASCII forms and drops stray non-ASCII symbols between tokens.
func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}
			if r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}
			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}
			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// cleanJSONString strips markdown fences, control characters and any text around the first
// balanced JSON object or array. Input without a JSON opener is returned trimmed.
func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = normalizeJSONStructure(strings.TrimSpace(s[start:]))
	if s == "" {
		return s
	}

	open, closing := byte('{'), byte('}')
	if s[0] == '[' {
		open, closing = '[', ']'
	}

	balance := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		char := s[i]
		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch char {
		case open:
			balance++
		case closing:
			balance--
		}
		if balance == 0 {
			return strings.TrimSpace(s[:i+1])
		}
	}

	if end := strings.LastIndexByte(s, closing); end != -1 {
		return strings.TrimSpace(s[:end+1])
	}
	return strings.TrimSpace(s)
}
