// cmd/server/output.go
package main

import (
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/services"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var clipboardWriteAll = clipboard.WriteAll

// systemClipboard copies through the OS clipboard.
type systemClipboard struct{}

func (systemClipboard) Copy(text string) error {
	return clipboardWriteAll(text)
}

// terminalNotifier prints session notifications as styled lines.
func terminalNotifier(w io.Writer) services.NotifierFunc {
	return func(kind services.NotificationKind, message string) {
		switch kind {
		case services.NotifyError:
			fmt.Fprintln(w, errorStyle.Render("✗ "+message))
		default:
			fmt.Fprintln(w, successStyle.Render("✓ "+message))
		}
	}
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func summarize(b *models.ContentBundle) string {
	posts := 0
	for _, g := range b.SocialPosts {
		posts += len(g.Posts)
	}
	return fmt.Sprintf("%d chapters · %d social posts across %d platforms · %d emails · %d SDR touches",
		len(b.Ebook.Chapters), posts, len(b.SocialPosts), len(b.EmailFlow), len(b.SdrEmails))
}
