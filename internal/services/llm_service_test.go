// internal/services/llm_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CampaignStudio/internal/config"
	"github.com/Corphon/CampaignStudio/internal/llm"
)

type fakeProvider struct {
	cfg      map[string]string
	lastReq  llm.CompletionRequest
	reply    string
	initErr  error
	custom   []string
	fetched  []string
	fetchErr error
}

func (p *fakeProvider) Initialize(cfg map[string]string) error {
	p.cfg = cfg
	return p.initErr
}

func (p *fakeProvider) GetName() string { return "fake" }

func (p *fakeProvider) GetSupportedModels() []string {
	switch {
	case len(p.custom) > 0:
		return p.custom
	case len(p.fetched) > 0:
		return p.fetched
	}
	return []string{"fake-small", "fake-large"}
}

func (p *fakeProvider) SetCustomModels(m []string) { p.custom = m }

func (p *fakeProvider) FetchAvailableModels(context.Context) error {
	if p.fetchErr != nil {
		return p.fetchErr
	}
	p.fetched = []string{"fake-remote"}
	return nil
}

func (p *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.lastReq = req
	return &llm.CompletionResponse{Text: p.reply, ModelName: req.Model, ProviderName: "fake"}, nil
}

func TestLLMServiceNotReadyWithoutKey(t *testing.T) {
	svc := newLLMServiceWithRegistry(&config.AppConfig{LLMProvider: "fake"}, llm.NewRegistry())
	assert.False(t, svc.IsReady())
	assert.Equal(t, "API key not configured", svc.GetReadyState())

	_, err := svc.CompleteText(context.Background(), "hi", "")
	assert.True(t, errors.Is(err, ErrLLMNotReady))
}

func TestLLMServiceCompletesWithDefaultModel(t *testing.T) {
	provider := &fakeProvider{reply: "done"}
	registry := llm.NewRegistry()
	registry.Register("fake", func() llm.Provider { return provider })

	svc := newLLMServiceWithRegistry(&config.AppConfig{
		LLMProvider: "fake",
		LLMConfig:   map[string]string{"api_key": "k"},
	}, registry)
	require.True(t, svc.IsReady())
	assert.Equal(t, "fake", svc.GetProviderName())
	assert.Equal(t, "fake-small", svc.GetDefaultModel())

	resp, err := svc.CompleteText(context.Background(), "write", "system")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, "write", provider.lastReq.Prompt)
	assert.Equal(t, "system", provider.lastReq.SystemPrompt)
	assert.Equal(t, "fake-small", provider.lastReq.Model)

	require.NoError(t, svc.UpdateProvider("fake", map[string]string{"api_key": "k", "default_model": "fake-large"}))
	assert.Equal(t, "fake-large", svc.GetDefaultModel())
}

func TestLLMServiceUnknownProvider(t *testing.T) {
	svc := newLLMServiceWithRegistry(&config.AppConfig{
		LLMProvider: "missing",
		LLMConfig:   map[string]string{"api_key": "k"},
	}, llm.NewRegistry())
	assert.False(t, svc.IsReady())
	assert.Contains(t, svc.GetReadyState(), "Configuration failed")
}

func TestLLMServiceRefreshModels(t *testing.T) {
	svc := newLLMServiceWithRegistry(&config.AppConfig{}, llm.NewRegistry())
	assert.Nil(t, svc.SupportedModels())
	_, err := svc.RefreshModels(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrLLMNotReady))

	provider := &fakeProvider{}
	registry := llm.NewRegistry()
	registry.Register("fake", func() llm.Provider { return provider })
	svc = newLLMServiceWithRegistry(&config.AppConfig{
		LLMProvider: "fake",
		LLMConfig:   map[string]string{"api_key": "k"},
	}, registry)
	assert.Equal(t, []string{"fake-small", "fake-large"}, svc.SupportedModels())

	models, err := svc.RefreshModels(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fake-remote"}, models)

	models, err = svc.RefreshModels(context.Background(), []string{"pinned"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pinned"}, models)
	assert.Equal(t, []string{"pinned"}, svc.SupportedModels())

	provider.custom = nil
	provider.fetchErr = errors.New("upstream down")
	_, err = svc.RefreshModels(context.Background(), nil)
	assert.ErrorContains(t, err, "upstream down")
}
