// internal/services/bundle_store.go
package services

import (
	"fmt"
	"sync"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
)

// LoadingKey names one loading flag.
type LoadingKey string

const (
	LoadingEbook       LoadingKey = LoadingKey(models.ArtifactEbook)
	LoadingSocialPosts LoadingKey = LoadingKey(models.ArtifactSocialPosts)
	LoadingEmailFlow   LoadingKey = LoadingKey(models.ArtifactEmailFlow)
	LoadingSdrEmails   LoadingKey = LoadingKey(models.ArtifactSdrEmails)
	LoadingAll         LoadingKey = "all"
)

// LoadingState is a snapshot of the loading flags. All is independent of the
// per-type flags; neither blocks the other.
type LoadingState struct {
	Ebook       bool `json:"ebook"`
	SocialPosts bool `json:"socialPosts"`
	EmailFlow   bool `json:"emailFlow"`
	SdrEmails   bool `json:"sdrEmails"`
	All         bool `json:"all"`
}

// Get returns the flag for key.
func (s LoadingState) Get(key LoadingKey) bool {
	switch key {
	case LoadingEbook:
		return s.Ebook
	case LoadingSocialPosts:
		return s.SocialPosts
	case LoadingEmailFlow:
		return s.EmailFlow
	case LoadingSdrEmails:
		return s.SdrEmails
	case LoadingAll:
		return s.All
	}
	return false
}

// ContentBundleStore holds the authoritative bundle and its loading flags.
// Writes are last-write-wins; readers get deep copies.
type ContentBundleStore struct {
	mu        sync.RWMutex
	bundle    *models.ContentBundle
	loading   LoadingState
	revisions map[models.ArtifactType]uint64
}

// NewContentBundleStore creates an empty store.
func NewContentBundleStore() *ContentBundleStore {
	return &ContentBundleStore{revisions: make(map[models.ArtifactType]uint64)}
}

// Bundle returns a copy of the committed bundle, or nil before the first generation.
func (s *ContentBundleStore) Bundle() *models.ContentBundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle.Clone()
}

// HasBundle reports whether a bundle has been generated.
func (s *ContentBundleStore) HasBundle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle != nil
}

// Loading returns the loading flags.
func (s *ContentBundleStore) Loading() LoadingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetLoading sets one loading flag.
func (s *ContentBundleStore) SetLoading(key LoadingKey, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case LoadingEbook:
		s.loading.Ebook = value
	case LoadingSocialPosts:
		s.loading.SocialPosts = value
	case LoadingEmailFlow:
		s.loading.EmailFlow = value
	case LoadingSdrEmails:
		s.loading.SdrEmails = value
	case LoadingAll:
		s.loading.All = value
	default:
		return appErrors.NewValidationError(fmt.Sprintf("unknown loading key %q", key), nil)
	}
	return nil
}

// ReplaceBundle swaps in a whole new bundle.
func (s *ContentBundleStore) ReplaceBundle(b models.ContentBundle) {
	next := b.Clone()
	next.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = next
	for _, t := range models.AllArtifactTypes {
		s.revisions[t]++
	}
}

// ReplaceField writes the fields carried by patch. It fails only when no bundle exists yet.
func (s *ContentBundleStore) ReplaceField(patch models.BundlePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle == nil {
		return appErrors.NewConflictError("no bundle to update; generate the campaign first", nil)
	}
	patch.Apply(s.bundle)
	s.bundle.Normalize()
	for _, t := range patch.Types() {
		s.revisions[t]++
	}
	return nil
}

// Revision counts how many times generation has replaced field t.
// Edit commits do not change it.
func (s *ContentBundleStore) Revision(t models.ArtifactType) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisions[t]
}

// applyEdit runs fn against the live bundle under the write lock. fn must leave the
// bundle valid or return an error, in which case nothing is kept.
func (s *ContentBundleStore) applyEdit(fn func(b *models.ContentBundle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle == nil {
		return appErrors.NewConflictError("no bundle to edit", nil)
	}
	working := s.bundle.Clone()
	if err := fn(working); err != nil {
		return err
	}
	s.bundle = working
	return nil
}
