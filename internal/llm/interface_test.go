// internal/llm/interface_test.go
package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	initialized map[string]string
}

func (s *stubProvider) Initialize(config map[string]string) error {
	if config["api_key"] == "" {
		return errors.New("api key required")
	}
	s.initialized = config
	return nil
}
func (s *stubProvider) GetName() string              { return "stub" }
func (s *stubProvider) GetSupportedModels() []string { return []string{"stub-1"} }
func (s *stubProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: req.Prompt}, nil
}
func (s *stubProvider) FetchAvailableModels(ctx context.Context) error { return nil }
func (s *stubProvider) SetCustomModels(models []string)                {}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", func() Provider { return &stubProvider{} })
	r.Register("alpha", func() Provider { return &stubProvider{} })

	assert.Equal(t, []string{"alpha", "zeta"}, r.ListProviders())
	assert.Equal(t, []string{"stub-1"}, r.SupportedModels("alpha"))
	assert.Empty(t, r.SupportedModels("missing"))

	_, err := r.GetProvider("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = r.GetProvider("alpha", map[string]string{})
	assert.Error(t, err)

	p, err := r.GetProvider("alpha", map[string]string{"api_key": "k"})
	require.NoError(t, err)
	resp, err := p.CompleteText(context.Background(), CompletionRequest{Prompt: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "echo", resp.Text)
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Provider: "anthropic", StatusCode: 429, Body: "slow down"}
	assert.Equal(t, "anthropic api error (429): slow down", err.Error())
}
