// internal/services/campaign_session_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

type sessionFixture struct {
	session *CampaignSession
	client  *fakeClient
	notes   *recordingNotifier
	files   *MemoryFileSink
	metrics *utils.PipelineMetrics
}

func newSessionFixture(t *testing.T, client *fakeClient) *sessionFixture {
	t.Helper()
	metrics := testMetrics()
	files := NewMemoryFileSink()
	notes := &recordingNotifier{}
	logger := utils.NewNopLogger()

	deps := SessionDeps{
		Gateway:  newTestGateway(client, metrics),
		Exporter: newTestExporter(files, &MemoryClipboard{}, metrics),
		Locks:    NewLockManager(),
		Metrics:  metrics,
		Logger:   logger,
	}
	return &sessionFixture{
		session: NewCampaignSession("s-1", acme, "professional", notes, deps),
		client:  client,
		notes:   notes,
		files:   files,
		metrics: metrics,
	}
}

func TestSessionGenerateAllFallback(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newSessionFixture(t, newFakeClient().on(TargetFormatMultiple, fakeResponse{err: errors.New("offline")}))
	b, err := f.session.GenerateAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.SampleEbookTitle, b.Ebook.Title)

	st := f.session.State()
	require.NotNil(t, st.Bundle)
	assert.Equal(t, models.SampleEbookTitle, st.Bundle.Ebook.Title)
	assert.Len(t, st.Bundle.SocialPosts, 2)
	assert.False(t, st.Loading.All)

	last := f.notes.last()
	assert.Equal(t, NotifyError, last.Kind)
	assert.Contains(t, last.Message, "sample content")
}

func TestSessionGenerateAllSuccess(t *testing.T) {
	f := newSessionFixture(t, newFakeClient().on(TargetFormatMultiple, fakeResponse{body: bundleJSON}))
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Acme Playbook", f.session.Store().Bundle().Ebook.Title)
	assert.Equal(t, NotifySuccess, f.notes.last().Kind)
}

func TestSessionFailedRegenerationKeepsEveryField(t *testing.T) {
	for _, target := range models.AllArtifactTypes {
		t.Run(string(target), func(t *testing.T) {
			client := newFakeClient().
				on(TargetFormatMultiple, fakeResponse{body: bundleJSON}).
				on(string(target), fakeResponse{body: `{"unexpected": true}`})
			f := newSessionFixture(t, client)
			_, err := f.session.GenerateAll(context.Background())
			require.NoError(t, err)
			before := f.session.Store().Bundle()

			patch, err := f.session.RegenerateOne(context.Background(), target)
			require.Error(t, err)
			assert.True(t, patch.IsEmpty())

			if diff := cmp.Diff(before, f.session.Store().Bundle()); diff != "" {
				t.Errorf("bundle changed after failed regeneration (-before +after):\n%s", diff)
			}
			assert.False(t, f.session.State().Loading.Get(LoadingKey(target)))
			assert.Equal(t, NotifyError, f.notes.last().Kind)
		})
	}
}

func TestSessionRegenerateOneReplacesOnlyTarget(t *testing.T) {
	client := newFakeClient().
		on(TargetFormatMultiple, fakeResponse{body: bundleJSON}).
		on(string(models.ArtifactEmailFlow), fakeResponse{body: `[{"type": "conversion", "subject": "Book now", "preview": "Slots open"}]`})
	f := newSessionFixture(t, client)
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)
	want := f.session.Store().Bundle()
	want.EmailFlow = []models.EmailSequenceItem{{Type: "conversion", Subject: "Book now", Preview: "Slots open"}}

	_, err = f.session.RegenerateOne(context.Background(), models.ArtifactEmailFlow)
	require.NoError(t, err)
	if diff := cmp.Diff(want, f.session.Store().Bundle()); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, f.notes.last().Message, "Email flow regenerated")
}

func TestSessionRegenerateBeforeGenerate(t *testing.T) {
	f := newSessionFixture(t, newFakeClient())
	_, err := f.session.RegenerateOne(context.Background(), models.ArtifactEbook)
	assert.True(t, appErrors.IsConflictError(err))
	assert.Equal(t, 0, f.client.requestCount())
}

func TestSessionLastResponseWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	client := newFakeClient().
		on(TargetFormatMultiple, fakeResponse{body: bundleJSON}).
		on(string(models.ArtifactEbook), fakeResponse{body: `{"title": "Regenerated", "chapters": ["Only"]}`})
	f := newSessionFixture(t, client)
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	client.on(TargetFormatMultiple, fakeResponse{body: bundleJSON, release: release})
	done := make(chan error, 1)
	go func() {
		_, err := f.session.GenerateAll(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return f.session.State().Loading.All }, time.Second, 5*time.Millisecond)

	_, err = f.session.RegenerateOne(context.Background(), models.ArtifactEbook)
	require.NoError(t, err)
	assert.Equal(t, "Regenerated", f.session.Store().Bundle().Ebook.Title)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "Acme Playbook", f.session.Store().Bundle().Ebook.Title)
	assert.False(t, f.session.State().Loading.All)
}

func TestSessionRegenerateMany(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	client := newFakeClient().
		on(TargetFormatMultiple, fakeResponse{body: bundleJSON}).
		on(string(models.ArtifactSocialPosts), fakeResponse{body: `[{"platform": "Threads", "posts": ["new"]}]`}).
		on(string(models.ArtifactSdrEmails), fakeResponse{err: errors.New("boom")})
	f := newSessionFixture(t, client)
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	outcomes, err := f.session.RegenerateMany(context.Background(), []models.ArtifactType{
		models.ArtifactSocialPosts, models.ArtifactSdrEmails, models.ArtifactSocialPosts,
	})
	require.Error(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.NotEmpty(t, outcomes[1].Error)

	b := f.session.Store().Bundle()
	assert.Equal(t, "Threads", b.SocialPosts[0].Platform)
	assert.Equal(t, "Ping", b.SdrEmails[0].Subject)

	_, err = f.session.RegenerateMany(context.Background(), nil)
	assert.True(t, appErrors.IsValidationError(err))
}

func TestSessionEditFlow(t *testing.T) {
	f := newSessionFixture(t, newFakeClient().on(TargetFormatMultiple, fakeResponse{body: bundleJSON}))
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.session.EnterEdit(models.EbookScope))
	require.NoError(t, f.session.Mutate(models.EbookScope, "title", "Edited"))
	n, err := f.session.AddItem(models.ChaptersScope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []models.Scope{models.EbookScope}, f.session.State().Editing)

	res, err := f.session.Commit(models.EbookScope)
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.Equal(t, "Edited", f.session.Store().Bundle().Ebook.Title)
	assert.Equal(t, []string{"Start", "Grow", "Chapter 3"}, f.session.Store().Bundle().Ebook.Chapters)
	assert.Equal(t, int64(1), f.metrics.Collector().GetCounterValue(utils.MetricEditCommits))
	assert.False(t, f.session.IsEditing(models.EbookScope))
}

func TestSessionStaleCommitIsCounted(t *testing.T) {
	client := newFakeClient().
		on(TargetFormatMultiple, fakeResponse{body: bundleJSON}).
		on(string(models.ArtifactEbook), fakeResponse{body: `{"title": "Regenerated"}`})
	f := newSessionFixture(t, client)
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.session.EnterEdit(models.EbookScope))
	require.NoError(t, f.session.Mutate(models.EbookScope, "title", "Mine"))
	_, err = f.session.RegenerateOne(context.Background(), models.ArtifactEbook)
	require.NoError(t, err)

	res, err := f.session.Commit(models.EbookScope)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "Mine", f.session.Store().Bundle().Ebook.Title)
	assert.Equal(t, int64(1), f.metrics.Collector().GetCounterValue(utils.MetricStaleCommits))
}

func TestSessionPreviewAndExport(t *testing.T) {
	f := newSessionFixture(t, newFakeClient().on(TargetFormatMultiple, fakeResponse{body: bundleJSON}))

	_, err := f.session.Export(models.ExportEbook, 0)
	require.Error(t, err)
	assert.Equal(t, NotifyError, f.notes.last().Kind)

	_, err = f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.session.OpenPreview(Selection{Kind: PreviewSdr}))
	view, err := f.session.RenderPreview()
	require.NoError(t, err)
	assert.Equal(t, "Ping", view.Heading)
	f.session.ClosePreview()
	assert.Equal(t, NoSelection, f.session.State().Preview)

	payload, err := f.session.Export(models.ExportSdrEmail, 0)
	require.NoError(t, err)
	assert.Equal(t, "sdr_email_day2.txt", payload.Filename)
	assert.Equal(t, "Exported sdr_email_day2.txt", f.notes.last().Message)

	other := NewMemoryFileSink()
	payload, err = f.session.ExportBundleTo(other, "")
	require.NoError(t, err)
	assert.Equal(t, "acme-launch-complete-campaign.md", payload.Filename)
	_, ok := other.Get(payload.Filename)
	assert.True(t, ok)
	_, ok = f.files.Get(payload.Filename)
	assert.False(t, ok)

	clip := &MemoryClipboard{}
	_, err = f.session.Copy(clip, models.ExportSocialPlatform, 0)
	require.NoError(t, err)
	assert.Equal(t, "Big news\n\n---\n\nRead more", clip.Text())
}

func TestSessionUpdateBrief(t *testing.T) {
	client := newFakeClient().on(TargetFormatMultiple, fakeResponse{body: bundleJSON})
	f := newSessionFixture(t, client)

	f.session.UpdateBrief(models.CampaignDescriptor{Name: "Renamed"}, "bold")
	_, err := f.session.GenerateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Renamed", f.session.Descriptor().Name)
	assert.Equal(t, "bold", client.requests[0].Data.Tone)
	assert.Equal(t, "bold", f.session.State().Tone)
}

func TestGenerateAllWithoutGatewayInstallsSample(t *testing.T) {
	notes := &recordingNotifier{}
	s := NewCampaignSession("s-2", acme, "", notes, SessionDeps{Logger: utils.NewNopLogger()})

	bundle, err := s.GenerateAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.SampleEbookTitle, bundle.Ebook.Title)
	assert.NotEmpty(t, bundle.SocialPosts)

	stored := s.Store().Bundle()
	require.NotNil(t, stored)
	assert.Equal(t, models.SampleEbookTitle, stored.Ebook.Title)
	assert.Equal(t, NotifyError, notes.last().Kind)
}
