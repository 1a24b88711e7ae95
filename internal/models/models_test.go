// internal/models/models_test.go
package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		raw     string
		want    Scope
		wantErr bool
	}{
		{raw: "ebook", want: EbookScope},
		{raw: " socialPosts[1] ", want: SocialScope(1)},
		{raw: "emailFlow[0]", want: EmailScope(0)},
		{raw: "SDREMAILS[3]", want: SdrScope(3)},
		{raw: "ebook[0]", wantErr: true},
		{raw: "emailFlow", wantErr: true},
		{raw: "socialPosts[1].posts", wantErr: true},
		{raw: "podcast[0]", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseScope(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseItemScope(t *testing.T) {
	got, err := ParseItemScope("ebook.chapters")
	require.NoError(t, err)
	assert.Equal(t, ChaptersScope, got)
	assert.Equal(t, "ebook.chapters", got.String())

	got, err = ParseItemScope("socialPosts[2].posts")
	require.NoError(t, err)
	assert.Equal(t, PostsScope(2), got)
	assert.Equal(t, "socialPosts[2].posts", got.String())

	for _, raw := range []string{"ebook", "ebook.posts", "emailFlow[0].items", "socialPosts[0].chapters"} {
		_, err := ParseItemScope(raw)
		assert.Error(t, err, raw)
	}
}

func TestNormalize(t *testing.T) {
	b := ContentBundle{
		Ebook: EbookArtifact{Title: "Guide", Chapters: []string{" ", ""}},
		SocialPosts: []SocialPlatformGroup{
			{Platform: "LinkedIn", Posts: []string{"one", "  ", "two"}},
			{Platform: "Twitter", Posts: []string{""}},
		},
	}
	b.Normalize()

	assert.Equal(t, DefaultChapterSkeleton, b.Ebook.Chapters)
	assert.Equal(t, []SocialPlatformGroup{{Platform: "LinkedIn", Posts: []string{"one", "two"}}}, b.SocialPosts)
	assert.NotNil(t, b.EmailFlow)
	assert.NotNil(t, b.SdrEmails)

	b.Ebook.Chapters[0] = "changed"
	assert.Equal(t, "Introduction", DefaultChapterSkeleton[0])
}

func TestCloneIsDeep(t *testing.T) {
	orig := SampleBundle()
	cp := orig.Clone()
	if diff := cmp.Diff(orig, cp); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	cp.Ebook.Chapters[0] = "edited"
	cp.SocialPosts[0].Posts[0] = "edited"
	cp.EmailFlow[0].Subject = "edited"
	assert.NotEqual(t, "edited", orig.Ebook.Chapters[0])
	assert.NotEqual(t, "edited", orig.SocialPosts[0].Posts[0])
	assert.NotEqual(t, "edited", orig.EmailFlow[0].Subject)

	var nilBundle *ContentBundle
	assert.Nil(t, nilBundle.Clone())
}

func TestBundlePatch(t *testing.T) {
	assert.True(t, BundlePatch{}.IsEmpty())

	ebook := EbookArtifact{Title: "New", Chapters: []string{"A"}}
	p := BundlePatch{Ebook: &ebook, SdrEmails: []SdrSequenceItem{{Day: 2, Subject: "Hi"}}}
	assert.Equal(t, []ArtifactType{ArtifactEbook, ArtifactSdrEmails}, p.Types())

	b := SampleBundle()
	social := CloneSocialGroups(b.SocialPosts)
	p.Apply(b)
	assert.Equal(t, "New", b.Ebook.Title)
	assert.Equal(t, p.SdrEmails, b.SdrEmails)
	assert.Equal(t, social, b.SocialPosts)

	ebook.Chapters[0] = "mutated"
	assert.Equal(t, "A", b.Ebook.Chapters[0])
}

func TestWithDefaults(t *testing.T) {
	d := CampaignDescriptor{Name: "Spring Launch", KeyMessages: []string{"Fast"}}.WithDefaults()
	assert.Equal(t, "Spring Launch", d.Name)
	assert.Equal(t, []string{"Fast"}, d.KeyMessages)
	assert.Equal(t, ExampleDescriptor.Goal, d.Goal)
	assert.Equal(t, ExampleDescriptor.TargetAudience, d.TargetAudience)
	assert.Equal(t, ExampleDescriptor.Channels, d.Channels)

	d.Channels[0] = "Fax"
	assert.Equal(t, "LinkedIn", ExampleDescriptor.Channels[0])

	assert.Contains(t, d.Serialize(), `"name":"Spring Launch"`)
}

func TestSampleBundleIsFresh(t *testing.T) {
	a, b := SampleBundle(), SampleBundle()
	assert.Equal(t, SampleEbookTitle, a.Ebook.Title)
	a.Ebook.Chapters[0] = "mutated"
	assert.NotEqual(t, "mutated", b.Ebook.Chapters[0])
	assert.NotEmpty(t, a.SocialPosts)
	assert.NotEmpty(t, a.EmailFlow)
	assert.NotEmpty(t, a.SdrEmails)
}

func TestParseExportKind(t *testing.T) {
	k, err := ParseExportKind("SocialPlatform")
	require.NoError(t, err)
	assert.Equal(t, ExportSocialPlatform, k)
	assert.True(t, k.Indexed())

	k, err = ParseExportKind("emailAll")
	require.NoError(t, err)
	assert.False(t, k.Indexed())

	_, err = ParseExportKind("pdf")
	assert.Error(t, err)

	var p *ExportPayload
	assert.Zero(t, p.Size())
}

func TestParseArtifactType(t *testing.T) {
	at, err := ParseArtifactType("emailflow")
	require.NoError(t, err)
	assert.Equal(t, ArtifactEmailFlow, at)
	assert.Equal(t, "Email flow", at.Label())

	_, err = ParseArtifactType("video")
	assert.Error(t, err)
}
