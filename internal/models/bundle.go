// internal/models/bundle.go
package models

import (
	"fmt"
	"strings"
)

// ArtifactType names one of the four content collections of a bundle.
type ArtifactType string

const (
	ArtifactEbook       ArtifactType = "ebook"
	ArtifactSocialPosts ArtifactType = "socialPosts"
	ArtifactEmailFlow   ArtifactType = "emailFlow"
	ArtifactSdrEmails   ArtifactType = "sdrEmails"
)

// AllArtifactTypes lists artifact types in bundle order.
var AllArtifactTypes = []ArtifactType{
	ArtifactEbook,
	ArtifactSocialPosts,
	ArtifactEmailFlow,
	ArtifactSdrEmails,
}

// ParseArtifactType validates a wire name.
func ParseArtifactType(s string) (ArtifactType, error) {
	for _, t := range AllArtifactTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown artifact type %q", s)
}

// Label is the human readable name used in notifications.
func (t ArtifactType) Label() string {
	switch t {
	case ArtifactEbook:
		return "Ebook"
	case ArtifactSocialPosts:
		return "Social posts"
	case ArtifactEmailFlow:
		return "Email flow"
	case ArtifactSdrEmails:
		return "SDR emails"
	default:
		return string(t)
	}
}

// ContentBundle is the aggregate of all generated campaign artifacts.
type ContentBundle struct {
	Ebook       EbookArtifact         `json:"ebook"`
	SocialPosts []SocialPlatformGroup `json:"socialPosts"`
	EmailFlow   []EmailSequenceItem   `json:"emailFlow"`
	SdrEmails   []SdrSequenceItem     `json:"sdrEmails"`
}

// EbookArtifact is the long-form guide.
type EbookArtifact struct {
	Title    string   `json:"title"`
	Preview  string   `json:"preview"`
	Chapters []string `json:"chapters"`
}

// SocialPlatformGroup holds the posts generated for one platform.
type SocialPlatformGroup struct {
	Platform string   `json:"platform"`
	Posts    []string `json:"posts"`
}

// EmailSequenceItem is one step of the nurture email flow.
type EmailSequenceItem struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Preview string `json:"preview"`
}

// SdrSequenceItem is one step of the outbound follow-up sequence.
// Day is informative only; it is neither unique nor sorted.
type SdrSequenceItem struct {
	Day     int    `json:"day"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DefaultChapterSkeleton is used whenever an ebook arrives without chapters.
var DefaultChapterSkeleton = []string{
	"Introduction",
	"Understanding the Challenge",
	"The Solution",
	"Getting Started",
}

// IsEmpty reports whether the ebook carries no content at all.
func (e EbookArtifact) IsEmpty() bool {
	return strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Preview) == "" && len(e.Chapters) == 0
}

// Clone returns a deep copy of the ebook.
func (e EbookArtifact) Clone() EbookArtifact {
	e.Chapters = cloneStrings(e.Chapters)
	return e
}

// Clone returns a deep copy of the group.
func (g SocialPlatformGroup) Clone() SocialPlatformGroup {
	g.Posts = cloneStrings(g.Posts)
	return g
}

// Clone returns a deep copy of the bundle. Top-level collections of the copy are never nil.
func (b *ContentBundle) Clone() *ContentBundle {
	if b == nil {
		return nil
	}
	out := &ContentBundle{
		Ebook:       b.Ebook.Clone(),
		SocialPosts: CloneSocialGroups(b.SocialPosts),
		EmailFlow:   append(make([]EmailSequenceItem, 0, len(b.EmailFlow)), b.EmailFlow...),
		SdrEmails:   append(make([]SdrSequenceItem, 0, len(b.SdrEmails)), b.SdrEmails...),
	}
	return out
}

// CloneSocialGroups deep-copies a slice of social groups.
func CloneSocialGroups(groups []SocialPlatformGroup) []SocialPlatformGroup {
	out := make([]SocialPlatformGroup, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

// Normalize enforces the bundle invariants in place: no nil collections,
// a non-empty chapter list and no blank social posts.
func (b *ContentBundle) Normalize() {
	if b.Ebook.Chapters = nonBlank(b.Ebook.Chapters); len(b.Ebook.Chapters) == 0 {
		b.Ebook.Chapters = cloneStrings(DefaultChapterSkeleton)
	}
	groups := make([]SocialPlatformGroup, 0, len(b.SocialPosts))
	for _, g := range b.SocialPosts {
		g.Posts = nonBlank(g.Posts)
		if len(g.Posts) == 0 {
			continue
		}
		groups = append(groups, g)
	}
	b.SocialPosts = groups
	if b.EmailFlow == nil {
		b.EmailFlow = []EmailSequenceItem{}
	}
	if b.SdrEmails == nil {
		b.SdrEmails = []SdrSequenceItem{}
	}
}

// BundlePatch carries a replacement for at most one field per artifact type.
// A nil field means "leave as is".
type BundlePatch struct {
	Ebook       *EbookArtifact        `json:"ebook,omitempty"`
	SocialPosts []SocialPlatformGroup `json:"socialPosts,omitempty"`
	EmailFlow   []EmailSequenceItem   `json:"emailFlow,omitempty"`
	SdrEmails   []SdrSequenceItem     `json:"sdrEmails,omitempty"`
}

// Types lists the artifact types the patch replaces.
func (p BundlePatch) Types() []ArtifactType {
	var out []ArtifactType
	if p.Ebook != nil {
		out = append(out, ArtifactEbook)
	}
	if p.SocialPosts != nil {
		out = append(out, ArtifactSocialPosts)
	}
	if p.EmailFlow != nil {
		out = append(out, ArtifactEmailFlow)
	}
	if p.SdrEmails != nil {
		out = append(out, ArtifactSdrEmails)
	}
	return out
}

// IsEmpty reports whether the patch replaces nothing.
func (p BundlePatch) IsEmpty() bool {
	return len(p.Types()) == 0
}

// Apply writes the patch into the bundle.
func (p BundlePatch) Apply(b *ContentBundle) {
	if p.Ebook != nil {
		b.Ebook = p.Ebook.Clone()
	}
	if p.SocialPosts != nil {
		b.SocialPosts = CloneSocialGroups(p.SocialPosts)
	}
	if p.EmailFlow != nil {
		b.EmailFlow = append([]EmailSequenceItem{}, p.EmailFlow...)
	}
	if p.SdrEmails != nil {
		b.SdrEmails = append([]SdrSequenceItem{}, p.SdrEmails...)
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
