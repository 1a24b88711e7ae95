// internal/services/normalize_test.go
package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
)

var acme = models.CampaignDescriptor{Name: "Acme Launch"}

func TestParseBundleStructured(t *testing.T) {
	res := ParseBundleResponse([]byte(bundleJSON), acme)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, ShapeStructured, res.Shape)

	want := &models.ContentBundle{
		Ebook:       models.EbookArtifact{Title: "Acme Playbook", Preview: "Why it matters", Chapters: []string{"Start", "Grow"}},
		SocialPosts: []models.SocialPlatformGroup{{Platform: "LinkedIn", Posts: []string{"Big news", "Read more"}}},
		EmailFlow:   []models.EmailSequenceItem{{Type: "welcome", Subject: "Hi", Preview: "Thanks"}},
		SdrEmails:   []models.SdrSequenceItem{{Day: 2, Subject: "Ping", Body: "Quick question"}},
	}
	if diff := cmp.Diff(want, res.Bundle); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBundleWrappedInRepurposedContent(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		raw := `{"repurposedContent": ` + bundleJSON + `}`
		res := ParseBundleResponse([]byte(raw), acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, ShapeStructured, res.Shape)
		assert.Equal(t, "Acme Playbook", res.Bundle.Ebook.Title)
	})

	t.Run("json string with fences", func(t *testing.T) {
		inner := "Here you go:\n```json\n" + bundleJSON + "\n```"
		encoded, err := json.Marshal(map[string]string{"repurposedContent": inner})
		require.NoError(t, err)

		res := ParseBundleResponse(encoded, acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, ShapeJSONString, res.Shape)
		assert.Equal(t, []string{"Start", "Grow"}, res.Bundle.Ebook.Chapters)
	})

	t.Run("bare json string literal", func(t *testing.T) {
		encoded, err := json.Marshal(bundleJSON)
		require.NoError(t, err)
		res := ParseBundleResponse(encoded, acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, ShapeJSONString, res.Shape)
	})
}

func TestParseBundleHeuristicText(t *testing.T) {
	text := strings.Repeat("Acme makes reporting painless. ", 20)
	encoded, err := json.Marshal(map[string]string{"repurposedContent": text})
	require.NoError(t, err)

	res := ParseBundleResponse(encoded, acme)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, ShapeHeuristicText, res.Shape)

	b := res.Bundle
	assert.Equal(t, "Acme Launch: The Complete Guide", b.Ebook.Title)
	assert.Equal(t, models.DefaultChapterSkeleton, b.Ebook.Chapters)
	assert.True(t, strings.HasSuffix(b.Ebook.Preview, "..."))
	assert.LessOrEqual(t, len([]rune(b.Ebook.Preview)), heuristicPreviewLen+3)

	require.Len(t, b.SocialPosts, 1)
	assert.Equal(t, "LinkedIn", b.SocialPosts[0].Platform)
	require.Len(t, b.EmailFlow, 1)
	assert.Equal(t, "Welcome to Acme Launch", b.EmailFlow[0].Subject)
	require.Len(t, b.SdrEmails, 1)
	assert.Equal(t, 1, b.SdrEmails[0].Day)
	assert.Equal(t, "Quick note about Acme Launch", b.SdrEmails[0].Subject)
}

func TestParseBundleRawTextIsHeuristic(t *testing.T) {
	res := ParseBundleResponse([]byte("Short plain answer"), acme)
	require.True(t, res.OK())
	assert.Equal(t, ShapeHeuristicText, res.Shape)
	assert.Equal(t, "Short plain answer", res.Bundle.Ebook.Preview)
}

func TestParseBundleFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(error) bool
	}{
		{"empty body", "  ", appErrors.IsEmptyResultError},
		{"unknown object", `{"status": "ok"}`, appErrors.IsParseError},
		{"number", `42`, appErrors.IsParseError},
		{"all fields empty", `{"ebook": {}, "socialPosts": []}`, appErrors.IsEmptyResultError},
		{"wrong field type", `{"socialPosts": "nope"}`, appErrors.IsParseError},
		{"blank text", `{"repurposedContent": "   "}`, appErrors.IsEmptyResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseBundleResponse([]byte(tt.raw), acme)
			require.False(t, res.OK())
			assert.True(t, tt.check(res.Err), "unexpected error type: %v", res.Err)
			assert.Nil(t, res.Bundle)
		})
	}
}

func TestParseBundlePartialFieldsAreNormalized(t *testing.T) {
	raw := `{"socialPosts": [{"posts": ["", "kept"]}, {"platform": "X", "posts": []}]}`
	res := ParseBundleResponse([]byte(raw), acme)
	require.True(t, res.OK(), "%v", res.Err)

	b := res.Bundle
	assert.Equal(t, "Acme Launch: The Complete Guide", b.Ebook.Title)
	assert.Equal(t, models.DefaultChapterSkeleton, b.Ebook.Chapters)
	assert.Equal(t, []models.SocialPlatformGroup{{Platform: "General", Posts: []string{"kept"}}}, b.SocialPosts)
	assert.NotNil(t, b.EmailFlow)
	assert.NotNil(t, b.SdrEmails)
}

func TestParseArtifactResponse(t *testing.T) {
	t.Run("ebook object", func(t *testing.T) {
		res := ParseArtifactResponse(models.ArtifactEbook, []byte(`{"title": "", "chapters": [{"title": "A"}, {"content": "B"}]}`), acme)
		require.True(t, res.OK(), "%v", res.Err)
		require.NotNil(t, res.Patch.Ebook)
		assert.Equal(t, "Acme Launch: The Complete Guide", res.Patch.Ebook.Title)
		assert.Equal(t, []string{"A", "B"}, res.Patch.Ebook.Chapters)
		assert.Equal(t, []models.ArtifactType{models.ArtifactEbook}, res.Patch.Types())
	})

	t.Run("bare array", func(t *testing.T) {
		res := ParseArtifactResponse(models.ArtifactSdrEmails, []byte(`[{"day": "Day 4", "subject": "S", "body": "B"}, {"subject": "T"}]`), acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, []models.SdrSequenceItem{{Day: 4, Subject: "S", Body: "B"}, {Day: 2, Subject: "T"}}, res.Patch.SdrEmails)
	})

	t.Run("keyed by type", func(t *testing.T) {
		res := ParseArtifactResponse(models.ArtifactEmailFlow, []byte(`{"emailFlow": [{"subject": "S", "body": "from body"}]}`), acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, []models.EmailSequenceItem{{Type: "nurture", Subject: "S", Preview: "from body"}}, res.Patch.EmailFlow)
	})

	t.Run("missing type key", func(t *testing.T) {
		res := ParseArtifactResponse(models.ArtifactEmailFlow, []byte(bundleJSONWithout("emailFlow")), acme)
		assert.True(t, appErrors.IsEmptyResultError(res.Err))
	})

	t.Run("heuristic only patches the requested type", func(t *testing.T) {
		res := ParseArtifactResponse(models.ArtifactSocialPosts, []byte(`"Some freeform copy"`), acme)
		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, []models.ArtifactType{models.ArtifactSocialPosts}, res.Patch.Types())
	})
}

func TestParseArtifactProseWithBracketsIsHeuristic(t *testing.T) {
	for _, text := range []string{
		"Our launch beat every goal, see table [1] of our report for the numbers.",
		"Nothing to list yet [] but the launch post is ready.",
	} {
		for _, typ := range []models.ArtifactType{models.ArtifactSocialPosts, models.ArtifactEmailFlow, models.ArtifactSdrEmails} {
			t.Run(string(typ), func(t *testing.T) {
				encoded, err := json.Marshal(map[string]string{"repurposedContent": text})
				require.NoError(t, err)

				res := ParseArtifactResponse(typ, encoded, acme)
				require.True(t, res.OK(), "%v", res.Err)
				assert.Equal(t, ShapeHeuristicText, res.Shape)
				assert.Equal(t, []models.ArtifactType{typ}, res.Patch.Types())
			})
		}
	}

	t.Run("whole json array still reports its error", func(t *testing.T) {
		encoded, err := json.Marshal(map[string]string{"repurposedContent": "```json\n[1]\n```"})
		require.NoError(t, err)
		res := ParseArtifactResponse(models.ArtifactSocialPosts, encoded, acme)
		assert.Equal(t, ShapeJSONString, res.Shape)
		assert.True(t, appErrors.IsParseError(res.Err), "%v", res.Err)
	})
}

func bundleJSONWithout(key string) string {
	var m map[string]json.RawMessage
	_ = json.Unmarshal([]byte(bundleJSON), &m)
	delete(m, key)
	out, _ := json.Marshal(m)
	return string(out)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab...", truncateRunes("abc", 2))
	assert.Equal(t, "éé...", truncateRunes("ééé", 2))
}
