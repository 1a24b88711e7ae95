// internal/services/helpers_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// fakeResponse is one canned answer of fakeClient.
type fakeResponse struct {
	body string
	err  error
	// release, when set, blocks the call until it is closed.
	release chan struct{}
}

// fakeClient answers by target format and records every request.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []RepurposeRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{responses: make(map[string]fakeResponse)}
}

func (c *fakeClient) on(target string, resp fakeResponse) *fakeClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[target] = resp
	return c
}

func (c *fakeClient) Repurpose(ctx context.Context, req RepurposeRequest) ([]byte, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	resp, ok := c.responses[req.Data.TargetFormat]
	c.mu.Unlock()

	if resp.release != nil {
		select {
		case <-resp.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, context.DeadlineExceeded
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return []byte(resp.body), nil
}

func (c *fakeClient) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu    sync.Mutex
	items []notification
}

type notification struct {
	Kind    NotificationKind
	Message string
}

func (n *recordingNotifier) Notify(kind NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{Kind: kind, Message: message})
}

func (n *recordingNotifier) last() notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return notification{}
	}
	return n.items[len(n.items)-1]
}

func (n *recordingNotifier) count(kind NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, it := range n.items {
		if it.Kind == kind {
			c++
		}
	}
	return c
}

func testMetrics() *utils.PipelineMetrics {
	return utils.NewPipelineMetrics(utils.NewMetricsCollector())
}

// testBundle is a small bundle distinct from the sample bundle.
func testBundle() models.ContentBundle {
	return models.ContentBundle{
		Ebook: models.EbookArtifact{
			Title:    "X",
			Preview:  "Preview text",
			Chapters: []string{"One", "Two", "Three", "Four", "Five"},
		},
		SocialPosts: []models.SocialPlatformGroup{
			{Platform: "LinkedIn", Posts: []string{"post a", "post b"}},
			{Platform: "Twitter", Posts: []string{"tweet"}},
		},
		EmailFlow: []models.EmailSequenceItem{
			{Type: "welcome", Subject: "Hello", Preview: "Welcome aboard"},
			{Type: "nurture", Subject: "Tips", Preview: "Three tips"},
		},
		SdrEmails: []models.SdrSequenceItem{
			{Day: 1, Subject: "Intro", Body: "Hi there"},
			{Day: 3, Subject: "S", Body: "B"},
		},
	}
}

func storeWith(t *testing.T, b models.ContentBundle) *ContentBundleStore {
	t.Helper()
	s := NewContentBundleStore()
	s.ReplaceBundle(b)
	return s
}

const bundleJSON = `{
  "ebook": {"title": "Acme Playbook", "preview": "Why it matters", "chapters": ["Start", "Grow"]},
  "socialPosts": [{"platform": "LinkedIn", "posts": ["Big news", "Read more"]}],
  "emailFlow": [{"type": "welcome", "subject": "Hi", "preview": "Thanks"}],
  "sdrEmails": [{"day": 2, "subject": "Ping", "body": "Quick question"}]
}`
