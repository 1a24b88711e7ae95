// internal/llm/providers/anthropic/anthropic_test.go
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CampaignStudio/internal/llm"
)

func newProvider(t *testing.T, baseURL string) llm.Provider {
	t.Helper()
	p, err := llm.GetProvider("anthropic", map[string]string{"api_key": "test-key", "base_url": baseURL})
	require.NoError(t, err)
	return p
}

func TestCompleteText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be brief", body["system"])
		assert.EqualValues(t, 4096, body["max_tokens"])

		_, _ = w.Write([]byte(`{"model":"m","stop_reason":"end_turn",
			"content":[{"type":"text","text":"{\"title\":\"T\"}"}],
			"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	resp, err := newProvider(t, srv.URL).CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "write",
		SystemPrompt: "be brief",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"T"}`, resp.Text)
	assert.Equal(t, 7, resp.TokensUsed)
	assert.Equal(t, "Anthropic Claude", resp.ProviderName)
}

func TestCompleteTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newProvider(t, srv.URL).CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	var statusErr *llm.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider("anthropic", map[string]string{})
	assert.Error(t, err)
}
