// internal/services/sinks.go
package services

import (
	"sort"
	"sync"

	"github.com/Corphon/CampaignStudio/internal/storage"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// FileSink receives finished export documents. Empty content must be accepted.
type FileSink interface {
	Save(filename, content, mimeType string) error
}

// ClipboardSink receives text copied by the user.
type ClipboardSink interface {
	Copy(text string) error
}

// NotificationKind is the severity of a user notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// NotificationSink delivers user-facing notifications.
type NotificationSink interface {
	Notify(kind NotificationKind, message string)
}

// DirFileSink writes exports into a directory of a FileStorage.
type DirFileSink struct {
	storage *storage.FileStorage
	dir     string
}

// NewDirFileSink writes into dir under fs.BaseDir.
func NewDirFileSink(fs *storage.FileStorage, dir string) *DirFileSink {
	return &DirFileSink{storage: fs, dir: dir}
}

// Save writes the file atomically.
func (s *DirFileSink) Save(filename, content, mimeType string) error {
	return s.storage.SaveTextFile(s.dir, filename, []byte(content))
}

// SavedFile is one document captured by a MemoryFileSink.
type SavedFile struct {
	Filename string
	Content  string
	MimeType string
}

// MemoryFileSink keeps saved documents in memory. The HTTP layer uses it to turn an
// export into a download; tests use it to inspect output.
type MemoryFileSink struct {
	mu    sync.Mutex
	files map[string]SavedFile
	last  *SavedFile
	// Err, when set, is returned by Save instead of storing.
	Err error
}

// NewMemoryFileSink creates an empty sink.
func NewMemoryFileSink() *MemoryFileSink {
	return &MemoryFileSink{files: make(map[string]SavedFile)}
}

func (s *MemoryFileSink) Save(filename, content, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	f := SavedFile{Filename: filename, Content: content, MimeType: mimeType}
	s.files[filename] = f
	s.last = &f
	return nil
}

// Get returns a saved file by name.
func (s *MemoryFileSink) Get(filename string) (SavedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[filename]
	return f, ok
}

// Last returns the most recently saved file.
func (s *MemoryFileSink) Last() (SavedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SavedFile{}, false
	}
	return *s.last, true
}

// Filenames lists saved files in sorted order.
func (s *MemoryFileSink) Filenames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemoryClipboard records the last copied text.
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
	Err  error
}

func (c *MemoryClipboard) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.text = text
	return nil
}

// Text returns the last copied text.
func (c *MemoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// LogNotifier writes notifications to the logger.
type LogNotifier struct {
	logger *utils.Logger
	fields map[string]interface{}
}

// NewLogNotifier logs with the given fixed fields, e.g. the session id.
func NewLogNotifier(logger *utils.Logger, fields map[string]interface{}) *LogNotifier {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &LogNotifier{logger: logger, fields: fields}
}

func (n *LogNotifier) Notify(kind NotificationKind, message string) {
	fields := make(map[string]interface{}, len(n.fields)+1)
	for k, v := range n.fields {
		fields[k] = v
	}
	fields["kind"] = string(kind)
	if kind == NotifyError {
		n.logger.Warn(message, fields)
		return
	}
	n.logger.Info(message, fields)
}

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []NotificationSink

func (m MultiNotifier) Notify(kind NotificationKind, message string) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(kind, message)
		}
	}
}

// NotifierFunc adapts a function to NotificationSink.
type NotifierFunc func(kind NotificationKind, message string)

func (f NotifierFunc) Notify(kind NotificationKind, message string) { f(kind, message) }
