// internal/models/export.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportKind selects what a single export serializes.
type ExportKind string

const (
	ExportEbook          ExportKind = "ebook"
	ExportSocialPlatform ExportKind = "socialPlatform"
	ExportSocialAll      ExportKind = "socialAll"
	ExportEmail          ExportKind = "email"
	ExportEmailAll       ExportKind = "emailAll"
	ExportSdrEmail       ExportKind = "sdrEmail"
	ExportSdrAll         ExportKind = "sdrAll"
)

var exportKinds = []ExportKind{
	ExportEbook, ExportSocialPlatform, ExportSocialAll,
	ExportEmail, ExportEmailAll, ExportSdrEmail, ExportSdrAll,
}

// ParseExportKind validates a wire name.
func ParseExportKind(s string) (ExportKind, error) {
	for _, k := range exportKinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown export kind %q", s)
}

// Indexed reports whether the kind needs an item index.
func (k ExportKind) Indexed() bool {
	return k == ExportSocialPlatform || k == ExportEmail || k == ExportSdrEmail
}

// Export MIME types.
const (
	MimeMarkdown  = "text/markdown"
	MimePlainText = "text/plain"
)

// ExportPayload is a named document ready to hand to a file sink.
type ExportPayload struct {
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	MimeType    string    `json:"mime_type"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Size returns the payload length in bytes.
func (p *ExportPayload) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Content)
}
