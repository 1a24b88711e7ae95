// internal/app/app_test.go
package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CampaignStudio/internal/config"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/services"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

type stubClient struct{ body string }

func (s stubClient) Repurpose(ctx context.Context, req services.RepurposeRequest) ([]byte, error) {
	return []byte(s.body), nil
}

const stubBundle = `{
  "ebook": {"title": "Launch Guide", "chapters": ["Why", "How"]},
  "socialPosts": [{"platform": "LinkedIn", "posts": ["We shipped"]}],
  "emailFlow": [{"type": "welcome", "subject": "Hello", "preview": "Glad you are here"}],
  "sdrEmails": [{"day": 1, "subject": "Quick intro", "body": "Worth a chat?"}]
}`

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		Port:              "0",
		DataDir:           filepath.Join(dir, "data"),
		ExportDir:         filepath.Join(dir, "exports"),
		GenerationBackend: config.BackendHTTP,
		ContentServiceURL: "http://127.0.0.1:9",
		DefaultTone:       "friendly",
		SessionTTLMinutes: 5,
		LLMProvider:       "anthropic",
		LLMConfig:         map[string]string{},
	}
}

func TestServeAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, WithLogger(utils.NewNopLogger()), WithContentClient(stubClient{body: stubBundle}))
	require.NoError(t, err)
	assert.False(t, a.LLM.IsReady())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s := a.Sessions.Create(models.CampaignDescriptor{Name: "Spring Launch"}, "")
	assert.Equal(t, "friendly", s.State().Tone)
	_, err = s.GenerateAll(context.Background())
	require.NoError(t, err)

	payload, err := s.ExportBundle("")
	require.NoError(t, err)
	saved, err := os.ReadFile(filepath.Join(cfg.ExportDir, payload.Filename))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "Launch Guide")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewWithLLMBackendFallsBackWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.GenerationBackend = config.BackendLLM

	a, err := New(cfg, WithLogger(utils.NewNopLogger()))
	require.NoError(t, err)

	s := a.Sessions.Create(models.CampaignDescriptor{}, "")
	bundle, err := s.GenerateAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.SampleEbookTitle, bundle.Ebook.Title)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.GenerationBackend = "smoke-signals"
	_, err := New(cfg, WithLogger(utils.NewNopLogger()))
	assert.Error(t, err)
}
