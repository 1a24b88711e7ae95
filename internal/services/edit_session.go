// internal/services/edit_session.go
package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
)

// Placeholders appended by AddItem.
const (
	chapterPlaceholderFormat = "Chapter %d"
	postPlaceholder          = "New post content..."
)

// editSlot keeps a draft together with its edit flag so the two cannot drift apart.
type editSlot[T any] struct {
	Draft        T
	Editing      bool
	BaseRevision uint64
}

// align resizes slots to n, dropping slots past the end and adding idle ones.
func align[T any](slots []editSlot[T], n int) []editSlot[T] {
	if len(slots) > n {
		return append([]editSlot[T](nil), slots[:n]...)
	}
	for len(slots) < n {
		slots = append(slots, editSlot[T]{})
	}
	return slots
}

// CommitResult reports the outcome of a commit.
type CommitResult struct {
	Scope models.Scope `json:"scope"`
	// Stale is true when generation replaced the field after the edit began.
	// The edit still overwrites the regenerated content.
	Stale bool `json:"stale"`
}

// EditSession holds drafts of committed artifacts. Nothing reaches the store before Commit.
type EditSession struct {
	mu     sync.Mutex
	store  *ContentBundleStore
	ebook  editSlot[models.EbookArtifact]
	social []editSlot[models.SocialPlatformGroup]
	email  []editSlot[models.EmailSequenceItem]
	sdr    []editSlot[models.SdrSequenceItem]
}

// NewEditSession binds an edit session to store.
func NewEditSession(store *ContentBundleStore) *EditSession {
	return &EditSession{store: store}
}

// realign matches the slot slices to the committed collection lengths and returns the committed bundle.
func (e *EditSession) realign() *models.ContentBundle {
	b := e.store.Bundle()
	if b == nil {
		e.ebook = editSlot[models.EbookArtifact]{}
		e.social, e.email, e.sdr = nil, nil, nil
		return nil
	}
	e.social = align(e.social, len(b.SocialPosts))
	e.email = align(e.email, len(b.EmailFlow))
	e.sdr = align(e.sdr, len(b.SdrEmails))
	return b
}

func scopeOutOfRange(scope models.Scope) error {
	return appErrors.NewNotFoundError(fmt.Sprintf("%s does not exist", scope), nil)
}

func notEditing(scope models.Scope) error {
	return appErrors.NewConflictError(fmt.Sprintf("%s is not being edited", scope), nil)
}

// EnterEdit seeds the draft for scope from the committed bundle, discarding any earlier draft.
func (e *EditSession) EnterEdit(scope models.Scope) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.realign()
	if b == nil {
		return appErrors.NewConflictError("nothing to edit before the campaign is generated", nil)
	}
	rev := e.store.Revision(scope.Kind)

	switch scope.Kind {
	case models.ArtifactEbook:
		e.ebook = editSlot[models.EbookArtifact]{Draft: b.Ebook.Clone(), Editing: true, BaseRevision: rev}
	case models.ArtifactSocialPosts:
		if scope.Index < 0 || scope.Index >= len(b.SocialPosts) {
			return scopeOutOfRange(scope)
		}
		e.social[scope.Index] = editSlot[models.SocialPlatformGroup]{Draft: b.SocialPosts[scope.Index].Clone(), Editing: true, BaseRevision: rev}
	case models.ArtifactEmailFlow:
		if scope.Index < 0 || scope.Index >= len(b.EmailFlow) {
			return scopeOutOfRange(scope)
		}
		e.email[scope.Index] = editSlot[models.EmailSequenceItem]{Draft: b.EmailFlow[scope.Index], Editing: true, BaseRevision: rev}
	case models.ArtifactSdrEmails:
		if scope.Index < 0 || scope.Index >= len(b.SdrEmails) {
			return scopeOutOfRange(scope)
		}
		e.sdr[scope.Index] = editSlot[models.SdrSequenceItem]{Draft: b.SdrEmails[scope.Index], Editing: true, BaseRevision: rev}
	default:
		return appErrors.NewValidationError(fmt.Sprintf("unknown scope %s", scope), nil)
	}
	return nil
}

// IsEditing reports whether scope has an open draft.
func (e *EditSession) IsEditing(scope models.Scope) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()
	return e.isEditingLocked(scope)
}

func (e *EditSession) isEditingLocked(scope models.Scope) bool {
	switch scope.Kind {
	case models.ArtifactEbook:
		return e.ebook.Editing
	case models.ArtifactSocialPosts:
		return scope.Index >= 0 && scope.Index < len(e.social) && e.social[scope.Index].Editing
	case models.ArtifactEmailFlow:
		return scope.Index >= 0 && scope.Index < len(e.email) && e.email[scope.Index].Editing
	case models.ArtifactSdrEmails:
		return scope.Index >= 0 && scope.Index < len(e.sdr) && e.sdr[scope.Index].Editing
	}
	return false
}

// EditingScopes lists every scope with an open draft, in bundle order.
func (e *EditSession) EditingScopes() []models.Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	scopes := []models.Scope{}
	if e.ebook.Editing {
		scopes = append(scopes, models.EbookScope)
	}
	for i, s := range e.social {
		if s.Editing {
			scopes = append(scopes, models.SocialScope(i))
		}
	}
	for i, s := range e.email {
		if s.Editing {
			scopes = append(scopes, models.EmailScope(i))
		}
	}
	for i, s := range e.sdr {
		if s.Editing {
			scopes = append(scopes, models.SdrScope(i))
		}
	}
	return scopes
}

// Draft returns a copy of the open draft for scope.
func (e *EditSession) Draft(scope models.Scope) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	if !e.isEditingLocked(scope) {
		return nil, notEditing(scope)
	}
	switch scope.Kind {
	case models.ArtifactEbook:
		return e.ebook.Draft.Clone(), nil
	case models.ArtifactSocialPosts:
		return e.social[scope.Index].Draft.Clone(), nil
	case models.ArtifactEmailFlow:
		return e.email[scope.Index].Draft, nil
	default:
		return e.sdr[scope.Index].Draft, nil
	}
}

var fieldPattern = regexp.MustCompile(`^([A-Za-z]+)(?:\[(\d+)\])?$`)

func parseField(raw string) (string, int, bool, error) {
	m := fieldPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", 0, false, appErrors.NewValidationError(fmt.Sprintf("malformed field %q", raw), nil)
	}
	if m[2] == "" {
		return m[1], 0, false, nil
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false, appErrors.NewValidationError(fmt.Sprintf("malformed field %q", raw), err)
	}
	return m[1], idx, true, nil
}

func unknownField(scope models.Scope, field string) error {
	return appErrors.NewValidationError(fmt.Sprintf("%s has no field %q", scope, field), nil)
}

func setIndexed(list []string, idx int, value string, scope models.Scope, field string) error {
	if idx < 0 || idx >= len(list) {
		return appErrors.NewNotFoundError(fmt.Sprintf("%s.%s is out of range", scope, field), nil)
	}
	list[idx] = value
	return nil
}

// Mutate changes one field of the draft. Fields: ebook title|preview|chapters[i];
// social platform|posts[i]; email type|subject|preview; sdr day|subject|body.
func (e *EditSession) Mutate(scope models.Scope, field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	if !e.isEditingLocked(scope) {
		return notEditing(scope)
	}
	name, idx, indexed, err := parseField(field)
	if err != nil {
		return err
	}

	switch scope.Kind {
	case models.ArtifactEbook:
		d := &e.ebook.Draft
		switch {
		case name == "title" && !indexed:
			d.Title = value
		case name == "preview" && !indexed:
			d.Preview = value
		case name == "chapters" && indexed:
			return setIndexed(d.Chapters, idx, value, scope, field)
		default:
			return unknownField(scope, field)
		}

	case models.ArtifactSocialPosts:
		d := &e.social[scope.Index].Draft
		switch {
		case name == "platform" && !indexed:
			d.Platform = value
		case name == "posts" && indexed:
			return setIndexed(d.Posts, idx, value, scope, field)
		default:
			return unknownField(scope, field)
		}

	case models.ArtifactEmailFlow:
		d := &e.email[scope.Index].Draft
		if indexed {
			return unknownField(scope, field)
		}
		switch name {
		case "type":
			d.Type = value
		case "subject":
			d.Subject = value
		case "preview":
			d.Preview = value
		default:
			return unknownField(scope, field)
		}

	case models.ArtifactSdrEmails:
		d := &e.sdr[scope.Index].Draft
		if indexed {
			return unknownField(scope, field)
		}
		switch name {
		case "day":
			day, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || day <= 0 {
				return appErrors.NewValidationError(fmt.Sprintf("day must be a positive number, got %q", value), err)
			}
			d.Day = day
		case "subject":
			d.Subject = value
		case "body":
			d.Body = value
		default:
			return unknownField(scope, field)
		}
	}
	return nil
}

// AddItem appends a placeholder to ebook.chapters or socialPosts[i].posts of an open draft.
// It returns the new draft collection length.
func (e *EditSession) AddItem(item models.ItemScope) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	if !e.isEditingLocked(item.Scope) {
		return 0, notEditing(item.Scope)
	}
	switch {
	case item.Kind == models.ArtifactEbook && item.Collection == "chapters":
		d := &e.ebook.Draft
		d.Chapters = append(d.Chapters, fmt.Sprintf(chapterPlaceholderFormat, len(d.Chapters)+1))
		return len(d.Chapters), nil
	case item.Kind == models.ArtifactSocialPosts && item.Collection == "posts":
		d := &e.social[item.Index].Draft
		d.Posts = append(d.Posts, postPlaceholder)
		return len(d.Posts), nil
	}
	return 0, appErrors.NewValidationError(fmt.Sprintf("cannot add items to %s", item), nil)
}

// RemoveItem deletes entry index of ebook.chapters or socialPosts[i].posts of an open draft.
// The last entry cannot be removed.
func (e *EditSession) RemoveItem(item models.ItemScope, index int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	if !e.isEditingLocked(item.Scope) {
		return 0, notEditing(item.Scope)
	}

	var list *[]string
	switch {
	case item.Kind == models.ArtifactEbook && item.Collection == "chapters":
		list = &e.ebook.Draft.Chapters
	case item.Kind == models.ArtifactSocialPosts && item.Collection == "posts":
		list = &e.social[item.Index].Draft.Posts
	default:
		return 0, appErrors.NewValidationError(fmt.Sprintf("cannot remove items from %s", item), nil)
	}

	if index < 0 || index >= len(*list) {
		return 0, appErrors.NewNotFoundError(fmt.Sprintf("%s[%d] does not exist", item, index), nil)
	}
	if len(*list) == 1 {
		return 0, appErrors.NewValidationError(fmt.Sprintf("%s needs at least one entry", item), nil)
	}
	*list = append((*list)[:index:index], (*list)[index+1:]...)
	return len(*list), nil
}

// Commit validates the draft for scope and writes it into the committed bundle.
// A failed validation leaves the edit open.
func (e *EditSession) Commit(scope models.Scope) (CommitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	if !e.isEditingLocked(scope) {
		return CommitResult{}, notEditing(scope)
	}

	result := CommitResult{Scope: scope}
	rev := e.store.Revision(scope.Kind)

	var err error
	switch scope.Kind {
	case models.ArtifactEbook:
		draft := e.ebook.Draft.Clone()
		if err = validateEbook(draft); err != nil {
			return result, err
		}
		err = e.store.applyEdit(func(b *models.ContentBundle) error {
			b.Ebook = draft
			return nil
		})
		if err == nil {
			result.Stale = rev != e.ebook.BaseRevision
			e.ebook = editSlot[models.EbookArtifact]{}
		}

	case models.ArtifactSocialPosts:
		slot := &e.social[scope.Index]
		draft := slot.Draft.Clone()
		if err = validateSocialGroup(draft); err != nil {
			return result, err
		}
		err = e.store.applyEdit(func(b *models.ContentBundle) error {
			if scope.Index >= len(b.SocialPosts) {
				return scopeOutOfRange(scope)
			}
			b.SocialPosts[scope.Index] = draft
			return nil
		})
		if err == nil {
			result.Stale = rev != slot.BaseRevision
			*slot = editSlot[models.SocialPlatformGroup]{}
		}

	case models.ArtifactEmailFlow:
		slot := &e.email[scope.Index]
		draft := slot.Draft
		err = e.store.applyEdit(func(b *models.ContentBundle) error {
			if scope.Index >= len(b.EmailFlow) {
				return scopeOutOfRange(scope)
			}
			b.EmailFlow[scope.Index] = draft
			return nil
		})
		if err == nil {
			result.Stale = rev != slot.BaseRevision
			*slot = editSlot[models.EmailSequenceItem]{}
		}

	case models.ArtifactSdrEmails:
		slot := &e.sdr[scope.Index]
		draft := slot.Draft
		if draft.Day <= 0 {
			return result, appErrors.NewValidationError("day must be a positive number", nil)
		}
		err = e.store.applyEdit(func(b *models.ContentBundle) error {
			if scope.Index >= len(b.SdrEmails) {
				return scopeOutOfRange(scope)
			}
			b.SdrEmails[scope.Index] = draft
			return nil
		})
		if err == nil {
			result.Stale = rev != slot.BaseRevision
			*slot = editSlot[models.SdrSequenceItem]{}
		}
	}
	return result, err
}

func validateEbook(d models.EbookArtifact) error {
	if len(d.Chapters) == 0 {
		return appErrors.NewValidationError("ebook needs at least one chapter", nil)
	}
	for i, ch := range d.Chapters {
		if strings.TrimSpace(ch) == "" {
			return appErrors.NewValidationError(fmt.Sprintf("chapter %d is empty", i+1), nil)
		}
	}
	return nil
}

func validateSocialGroup(g models.SocialPlatformGroup) error {
	if strings.TrimSpace(g.Platform) == "" {
		return appErrors.NewValidationError("platform name is empty", nil)
	}
	if len(g.Posts) == 0 {
		return appErrors.NewValidationError("a platform needs at least one post", nil)
	}
	for i, p := range g.Posts {
		if strings.TrimSpace(p) == "" {
			return appErrors.NewValidationError(fmt.Sprintf("post %d is empty", i+1), nil)
		}
	}
	return nil
}

// Cancel discards the draft for scope. The committed bundle is never touched.
func (e *EditSession) Cancel(scope models.Scope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.realign()

	switch scope.Kind {
	case models.ArtifactEbook:
		e.ebook = editSlot[models.EbookArtifact]{}
	case models.ArtifactSocialPosts:
		if scope.Index >= 0 && scope.Index < len(e.social) {
			e.social[scope.Index] = editSlot[models.SocialPlatformGroup]{}
		}
	case models.ArtifactEmailFlow:
		if scope.Index >= 0 && scope.Index < len(e.email) {
			e.email[scope.Index] = editSlot[models.EmailSequenceItem]{}
		}
	case models.ArtifactSdrEmails:
		if scope.Index >= 0 && scope.Index < len(e.sdr) {
			e.sdr[scope.Index] = editSlot[models.SdrSequenceItem]{}
		}
	}
}
