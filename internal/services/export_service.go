// internal/services/export_service.go
package services

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

const (
	postSeparator          = "\n\n---\n\n"
	platformRule           = "=========="
	sectionRule            = "===="
	chapterBodyPlaceholder = "_Chapter content will be developed from the campaign brief._"
)

// ExportService serializes artifacts into named documents and hands them to sinks.
// Everything but the final hand-off is synchronous string building.
type ExportService struct {
	files     FileSink
	clipboard ClipboardSink
	metrics   *utils.PipelineMetrics
	logger    *utils.Logger
	now       func() time.Time
}

// NewExportService creates an export service. clipboard may be nil when copying is unsupported.
func NewExportService(files FileSink, clipboard ClipboardSink, metrics *utils.PipelineMetrics) *ExportService {
	if metrics == nil {
		metrics = utils.NewPipelineMetrics(nil)
	}
	return &ExportService{
		files:     files,
		clipboard: clipboard,
		metrics:   metrics,
		logger:    utils.GetLogger(),
		now:       time.Now,
	}
}

// WithFileSink returns a copy of the service writing to files.
func (s *ExportService) WithFileSink(files FileSink) *ExportService {
	out := *s
	out.files = files
	return &out
}

// WithClipboard returns a copy of the service copying to clipboard.
func (s *ExportService) WithClipboard(clipboard ClipboardSink) *ExportService {
	out := *s
	out.clipboard = clipboard
	return &out
}

// ExportOne renders one artifact or group and saves it.
func (s *ExportService) ExportOne(bundle *models.ContentBundle, kind models.ExportKind, index int) (*models.ExportPayload, error) {
	payload, err := s.Render(bundle, kind, index)
	if err != nil {
		return nil, err
	}
	return payload, s.save(string(kind), payload)
}

// ExportBundle renders the aggregate document and saves it.
func (s *ExportService) ExportBundle(bundle *models.ContentBundle, campaignName string) (*models.ExportPayload, error) {
	payload := s.RenderBundle(bundle, campaignName)
	return payload, s.save("bundle", payload)
}

// CopyOne renders one artifact and copies its content to the clipboard.
func (s *ExportService) CopyOne(bundle *models.ContentBundle, kind models.ExportKind, index int) (*models.ExportPayload, error) {
	payload, err := s.Render(bundle, kind, index)
	if err != nil {
		return nil, err
	}
	if s.clipboard == nil {
		return nil, appErrors.NewExportError("clipboard is not available", nil)
	}
	if err := s.clipboard.Copy(payload.Content); err != nil {
		return nil, appErrors.NewExportError("copy to clipboard failed", err)
	}
	return payload, nil
}

func (s *ExportService) save(kind string, payload *models.ExportPayload) error {
	if s.files == nil {
		err := appErrors.NewExportError("no file sink configured", nil)
		s.metrics.RecordExport(kind, 0, err)
		return err
	}
	if err := s.files.Save(payload.Filename, payload.Content, payload.MimeType); err != nil {
		wrapped := appErrors.NewExportError(fmt.Sprintf("save %s failed", payload.Filename), err)
		s.metrics.RecordExport(kind, 0, wrapped)
		s.logger.Error("export failed", map[string]interface{}{"file": payload.Filename, "error": err.Error()})
		return wrapped
	}
	s.metrics.RecordExport(kind, payload.Size(), nil)
	s.logger.Info("export saved", map[string]interface{}{"file": payload.Filename, "bytes": payload.Size()})
	return nil
}

func (s *ExportService) payload(filename, content, mime string) *models.ExportPayload {
	return &models.ExportPayload{Filename: filename, Content: content, MimeType: mime, GeneratedAt: s.now()}
}

// Render builds the document for one export kind without saving it.
func (s *ExportService) Render(bundle *models.ContentBundle, kind models.ExportKind, index int) (*models.ExportPayload, error) {
	if bundle == nil {
		return nil, appErrors.NewConflictError("nothing to export before the campaign is generated", nil)
	}
	outOfRange := func(n int) error {
		return appErrors.NewNotFoundError(fmt.Sprintf("%s %d does not exist (have %d)", kind, index, n), nil)
	}

	switch kind {
	case models.ExportEbook:
		name := slugify(bundle.Ebook.Title)
		if name == "" {
			name = "ebook"
		}
		return s.payload(name+".md", renderEbook(bundle.Ebook), models.MimeMarkdown), nil

	case models.ExportSocialPlatform:
		if index < 0 || index >= len(bundle.SocialPosts) {
			return nil, outOfRange(len(bundle.SocialPosts))
		}
		g := bundle.SocialPosts[index]
		name := slugify(g.Platform)
		if name == "" {
			name = "social"
		}
		return s.payload(name+"_posts.txt", strings.Join(g.Posts, postSeparator), models.MimePlainText), nil

	case models.ExportSocialAll:
		groups := make([]string, 0, len(bundle.SocialPosts))
		for _, g := range bundle.SocialPosts {
			groups = append(groups, fmt.Sprintf("%s\n%s\n\n%s", strings.ToUpper(g.Platform), platformRule, strings.Join(g.Posts, postSeparator)))
		}
		return s.payload("all_social_posts.txt", strings.Join(groups, "\n\n\n"), models.MimePlainText), nil

	case models.ExportEmail:
		if index < 0 || index >= len(bundle.EmailFlow) {
			return nil, outOfRange(len(bundle.EmailFlow))
		}
		e := bundle.EmailFlow[index]
		name := slugify(e.Type)
		if name == "" {
			name = "email"
		}
		return s.payload(fmt.Sprintf("%s_%d.txt", name, index+1), renderEmail(e), models.MimePlainText), nil

	case models.ExportEmailAll:
		parts := make([]string, 0, len(bundle.EmailFlow))
		for i, e := range bundle.EmailFlow {
			parts = append(parts, fmt.Sprintf("Email %d (%s)\n%s", i+1, e.Type, renderEmail(e)))
		}
		return s.payload("email_sequence.txt", strings.Join(parts, postSeparator), models.MimePlainText), nil

	case models.ExportSdrEmail:
		if index < 0 || index >= len(bundle.SdrEmails) {
			return nil, outOfRange(len(bundle.SdrEmails))
		}
		e := bundle.SdrEmails[index]
		return s.payload(fmt.Sprintf("sdr_email_day%d.txt", e.Day), renderSdr(e), models.MimePlainText), nil

	case models.ExportSdrAll:
		parts := make([]string, 0, len(bundle.SdrEmails))
		for _, e := range bundle.SdrEmails {
			parts = append(parts, fmt.Sprintf("Day %d\n%s", e.Day, renderSdr(e)))
		}
		return s.payload("sdr_email_sequence.txt", strings.Join(parts, postSeparator), models.MimePlainText), nil
	}
	return nil, appErrors.NewValidationError(fmt.Sprintf("unknown export kind %q", kind), nil)
}

func renderEbook(e models.EbookArtifact) string {
	var sb strings.Builder
	sb.WriteString("# " + e.Title + "\n\n")
	if e.Preview != "" {
		sb.WriteString(e.Preview + "\n\n")
	}
	for i, ch := range e.Chapters {
		fmt.Fprintf(&sb, "## Chapter %d: %s\n\n%s\n\n", i+1, ch, chapterBodyPlaceholder)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func renderEmail(e models.EmailSequenceItem) string {
	return fmt.Sprintf("Subject: %s\n\n%s", e.Subject, e.Preview)
}

func renderSdr(e models.SdrSequenceItem) string {
	return fmt.Sprintf("Subject: %s\n\n%s", e.Subject, e.Body)
}

// RenderBundle builds the aggregate markdown document: ebook, social, email flow, SDR,
// each section only when non-empty. An empty bundle yields only the title line.
func (s *ExportService) RenderBundle(bundle *models.ContentBundle, campaignName string) *models.ExportPayload {
	name := strings.TrimSpace(campaignName)
	fileBase := slugify(name)
	if fileBase == "" {
		fileBase = "campaign"
	}
	if name == "" {
		name = "Campaign"
	}

	var sections []string
	if bundle != nil {
		if len(bundle.Ebook.Chapters) > 0 {
			var sb strings.Builder
			fmt.Fprintf(&sb, "## Ebook: %s\n\n", bundle.Ebook.Title)
			if bundle.Ebook.Preview != "" {
				sb.WriteString(bundle.Ebook.Preview + "\n\n")
			}
			for i, ch := range bundle.Ebook.Chapters {
				fmt.Fprintf(&sb, "### Chapter %d: %s\n\n", i+1, ch)
			}
			sections = append(sections, sb.String())
		}

		if len(bundle.SocialPosts) > 0 {
			var sb strings.Builder
			sb.WriteString("## Social Media Posts\n\n")
			for _, g := range bundle.SocialPosts {
				fmt.Fprintf(&sb, "### %s\n\n", g.Platform)
				for i, p := range g.Posts {
					fmt.Fprintf(&sb, "#### Post %d\n\n%s\n\n", i+1, p)
				}
			}
			sections = append(sections, sb.String())
		}

		if len(bundle.EmailFlow) > 0 {
			var sb strings.Builder
			sb.WriteString("## Email Flow\n\n")
			for i, e := range bundle.EmailFlow {
				fmt.Fprintf(&sb, "### Email %d: %s\n\n**Subject:** %s\n\n%s\n\n", i+1, e.Type, e.Subject, e.Preview)
			}
			sections = append(sections, sb.String())
		}

		if len(bundle.SdrEmails) > 0 {
			var sb strings.Builder
			sb.WriteString("## SDR Email Sequence\n\n")
			for i, e := range bundle.SdrEmails {
				fmt.Fprintf(&sb, "### Day %d\n\n**Subject:** %s\n\n%s\n\n", i+1, e.Subject, e.Body)
			}
			sections = append(sections, sb.String())
		}
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s - Complete Campaign Content\n", name)
	for _, section := range sections {
		doc.WriteString("\n" + sectionRule + "\n\n")
		doc.WriteString(strings.TrimRight(section, "\n") + "\n")
	}

	return s.payload(fileBase+"-complete-campaign.md", doc.String(), models.MimeMarkdown)
}

// slugify lowercases s and joins its alphanumeric runs with "-".
func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			dash = false
			sb.WriteRune(r)
			continue
		}
		dash = true
	}
	return sb.String()
}
