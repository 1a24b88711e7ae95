// internal/services/preview.go
package services

import (
	"fmt"
	"strings"
	"sync"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
)

// PreviewKind discriminates a preview selection.
type PreviewKind string

const (
	PreviewNone   PreviewKind = "none"
	PreviewEbook  PreviewKind = "ebook"
	PreviewSocial PreviewKind = "social"
	PreviewEmail  PreviewKind = "email"
	PreviewSdr    PreviewKind = "sdr"
)

// ParsePreviewKind validates a wire name.
func ParsePreviewKind(s string) (PreviewKind, error) {
	switch k := PreviewKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PreviewNone, PreviewEbook, PreviewSocial, PreviewEmail, PreviewSdr:
		return k, nil
	}
	return "", appErrors.NewValidationError(fmt.Sprintf("unknown preview kind %q", s), nil)
}

// Selection is the single open preview. Index is ignored for none and ebook.
type Selection struct {
	Kind  PreviewKind `json:"kind"`
	Index int         `json:"index"`
}

// NoSelection means no preview is open.
var NoSelection = Selection{Kind: PreviewNone}

// PreviewView is the rendered, read-only content of a selection.
type PreviewView struct {
	Kind       PreviewKind `json:"kind"`
	Heading    string      `json:"heading"`
	Subheading string      `json:"subheading,omitempty"`
	Items      []string    `json:"items"`
}

// Markdown renders the view as a markdown document.
func (v *PreviewView) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + v.Heading + "\n\n")
	if v.Subheading != "" {
		sb.WriteString("_" + v.Subheading + "_\n\n")
	}
	for i, item := range v.Items {
		switch v.Kind {
		case PreviewEbook:
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
		case PreviewSocial:
			fmt.Fprintf(&sb, "## Post %d\n\n%s\n\n", i+1, item)
		default:
			sb.WriteString(item + "\n\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// PreviewRenderer shows at most one artifact at a time, always from the committed bundle.
type PreviewRenderer struct {
	mu        sync.Mutex
	store     *ContentBundleStore
	selection Selection
}

// NewPreviewRenderer creates a renderer with nothing selected.
func NewPreviewRenderer(store *ContentBundleStore) *PreviewRenderer {
	return &PreviewRenderer{store: store, selection: NoSelection}
}

// Open replaces the current selection.
func (p *PreviewRenderer) Open(sel Selection) error {
	if _, err := ParsePreviewKind(string(sel.Kind)); err != nil {
		return err
	}
	if sel.Kind == PreviewNone || sel.Kind == PreviewEbook {
		sel.Index = 0
	} else if sel.Index < 0 {
		return appErrors.NewValidationError("preview index must not be negative", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = sel
	return nil
}

// Close clears the selection.
func (p *PreviewRenderer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = NoSelection
}

// Selection returns the current selection.
func (p *PreviewRenderer) Selection() Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}

// Render builds the view for the current selection. It returns nil when nothing is selected.
func (p *PreviewRenderer) Render() (*PreviewView, error) {
	sel := p.Selection()
	if sel.Kind == PreviewNone {
		return nil, nil
	}

	b := p.store.Bundle()
	if b == nil {
		return nil, appErrors.NewConflictError("nothing to preview before the campaign is generated", nil)
	}
	return RenderSelection(b, sel)
}

// RenderSelection builds the view of sel from b.
func RenderSelection(b *models.ContentBundle, sel Selection) (*PreviewView, error) {
	outOfRange := func(n int) error {
		return appErrors.NewNotFoundError(fmt.Sprintf("%s preview %d does not exist (have %d)", sel.Kind, sel.Index, n), nil)
	}

	switch sel.Kind {
	case PreviewEbook:
		return &PreviewView{
			Kind:       PreviewEbook,
			Heading:    b.Ebook.Title,
			Subheading: b.Ebook.Preview,
			Items:      append([]string{}, b.Ebook.Chapters...),
		}, nil
	case PreviewSocial:
		if sel.Index >= len(b.SocialPosts) {
			return nil, outOfRange(len(b.SocialPosts))
		}
		g := b.SocialPosts[sel.Index]
		return &PreviewView{
			Kind:       PreviewSocial,
			Heading:    g.Platform,
			Subheading: fmt.Sprintf("%d posts", len(g.Posts)),
			Items:      append([]string{}, g.Posts...),
		}, nil
	case PreviewEmail:
		if sel.Index >= len(b.EmailFlow) {
			return nil, outOfRange(len(b.EmailFlow))
		}
		e := b.EmailFlow[sel.Index]
		return &PreviewView{
			Kind:       PreviewEmail,
			Heading:    e.Subject,
			Subheading: fmt.Sprintf("Email %d: %s", sel.Index+1, e.Type),
			Items:      []string{e.Preview},
		}, nil
	case PreviewSdr:
		if sel.Index >= len(b.SdrEmails) {
			return nil, outOfRange(len(b.SdrEmails))
		}
		s := b.SdrEmails[sel.Index]
		return &PreviewView{
			Kind:       PreviewSdr,
			Heading:    s.Subject,
			Subheading: fmt.Sprintf("Day %d", s.Day),
			Items:      []string{s.Body},
		}, nil
	}
	return nil, nil
}
