// internal/services/campaign_session.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// SessionDeps are the collaborators shared by all campaign sessions.
type SessionDeps struct {
	Gateway  *GenerationGateway
	Exporter *ExportService
	Locks    *LockManager
	Metrics  *utils.PipelineMetrics
	Logger   *utils.Logger
}

// CampaignSession is one user's working copy of a campaign. Commands take the session
// lock only for their synchronous parts; generation requests run outside it, and their
// responses are applied in arrival order, so the last response to land wins.
type CampaignSession struct {
	ID        string
	CreatedAt time.Time

	locks    *LockManager
	gateway  *GenerationGateway
	exporter *ExportService
	notifier NotificationSink
	metrics  *utils.PipelineMetrics
	logger   *utils.Logger

	// guarded by the session lock
	descriptor models.CampaignDescriptor
	tone       string

	store   *ContentBundleStore
	edits   *EditSession
	preview *PreviewRenderer
}

// SessionState is a read-only snapshot of a session.
type SessionState struct {
	ID         string                    `json:"id"`
	CreatedAt  time.Time                 `json:"created_at"`
	Descriptor models.CampaignDescriptor `json:"descriptor"`
	Tone       string                    `json:"tone"`
	Bundle     *models.ContentBundle     `json:"bundle"`
	Loading    LoadingState              `json:"loading"`
	Editing    []models.Scope            `json:"editing"`
	Preview    Selection                 `json:"preview"`
}

// RegenerateOutcome is the per-type result of RegenerateMany.
type RegenerateOutcome struct {
	Type  models.ArtifactType `json:"type"`
	OK    bool                `json:"ok"`
	Error string              `json:"error,omitempty"`
}

// NewCampaignSession creates a session with no bundle yet.
func NewCampaignSession(id string, descriptor models.CampaignDescriptor, tone string, notifier NotificationSink, deps SessionDeps) *CampaignSession {
	if deps.Locks == nil {
		deps.Locks = NewLockManager()
	}
	if deps.Metrics == nil {
		deps.Metrics = utils.NewPipelineMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = utils.GetLogger()
	}
	if notifier == nil {
		notifier = NewLogNotifier(deps.Logger, map[string]interface{}{"session_id": id})
	}

	store := NewContentBundleStore()
	return &CampaignSession{
		ID:         id,
		CreatedAt:  time.Now(),
		locks:      deps.Locks,
		gateway:    deps.Gateway,
		exporter:   deps.Exporter,
		notifier:   notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		descriptor: descriptor.WithDefaults(),
		tone:       tone,
		store:      store,
		edits:      NewEditSession(store),
		preview:    NewPreviewRenderer(store),
	}
}

func (s *CampaignSession) withLock(fn func() error) error {
	return s.locks.ExecuteWithLock(s.ID, fn)
}

func (s *CampaignSession) withReadLock(fn func() error) error {
	return s.locks.ExecuteWithReadLock(s.ID, fn)
}

// Store exposes the committed bundle store for read access.
func (s *CampaignSession) Store() *ContentBundleStore {
	return s.store
}

// Descriptor returns the campaign descriptor.
func (s *CampaignSession) Descriptor() models.CampaignDescriptor {
	var d models.CampaignDescriptor
	_ = s.withReadLock(func() error {
		d = s.descriptor
		return nil
	})
	return d
}

// Restore installs a previously saved bundle, replacing the current one.
func (s *CampaignSession) Restore(b models.ContentBundle) {
	_ = s.withLock(func() error {
		s.store.ReplaceBundle(b)
		return nil
	})
}

// UpdateBrief replaces the descriptor and tone used by later generations.
func (s *CampaignSession) UpdateBrief(descriptor models.CampaignDescriptor, tone string) {
	_ = s.withLock(func() error {
		s.descriptor = descriptor.WithDefaults()
		if tone != "" {
			s.tone = tone
		}
		return nil
	})
}

func (s *CampaignSession) brief() (models.CampaignDescriptor, string) {
	var d models.CampaignDescriptor
	var tone string
	_ = s.withReadLock(func() error {
		d, tone = s.descriptor, s.tone
		return nil
	})
	return d, tone
}

// GenerateAll generates the whole bundle. The store always ends up holding a full bundle:
// the sample bundle replaces it when generation fails, and the error is returned.
func (s *CampaignSession) GenerateAll(ctx context.Context) (models.ContentBundle, error) {
	if s.gateway == nil {
		err := appErrors.NewProcessingError("no generation gateway configured", nil)
		sample := models.SampleBundle()
		_ = s.withLock(func() error {
			s.store.ReplaceBundle(*sample)
			return nil
		})
		s.notifier.Notify(NotifyError, fmt.Sprintf("Content generation failed, showing sample content instead: %v", err))
		return *sample, err
	}
	descriptor, tone := s.brief()
	_ = s.withLock(func() error { return s.store.SetLoading(LoadingAll, true) })

	bundle, genErr := s.gateway.GenerateAll(ctx, descriptor, tone)

	_ = s.withLock(func() error {
		s.store.ReplaceBundle(bundle)
		return s.store.SetLoading(LoadingAll, false)
	})

	if genErr != nil {
		s.notifier.Notify(NotifyError, fmt.Sprintf("Content generation failed, showing sample content instead: %v", genErr))
	} else {
		s.notifier.Notify(NotifySuccess, "Campaign content generated successfully")
	}
	return bundle, genErr
}

// RegenerateOne regenerates one artifact type. On failure the existing field is kept.
func (s *CampaignSession) RegenerateOne(ctx context.Context, t models.ArtifactType) (models.BundlePatch, error) {
	if _, err := models.ParseArtifactType(string(t)); err != nil {
		return models.BundlePatch{}, appErrors.NewValidationError("cannot regenerate", err)
	}
	if s.gateway == nil {
		return models.BundlePatch{}, appErrors.NewProcessingError("no generation gateway configured", nil)
	}

	descriptor, tone := s.brief()
	err := s.withLock(func() error {
		if !s.store.HasBundle() {
			return appErrors.NewConflictError("generate the campaign before regenerating a single artifact", nil)
		}
		return s.store.SetLoading(LoadingKey(t), true)
	})
	if err != nil {
		return models.BundlePatch{}, err
	}

	patch, genErr := s.gateway.RegenerateOne(ctx, t, descriptor, tone)

	applyErr := s.withLock(func() error {
		defer s.store.SetLoading(LoadingKey(t), false)
		if genErr != nil {
			return nil
		}
		return s.store.ReplaceField(patch)
	})
	if genErr == nil {
		genErr = applyErr
	}

	if genErr != nil {
		s.notifier.Notify(NotifyError, fmt.Sprintf("Failed to regenerate %s: %v", t.Label(), genErr))
		return models.BundlePatch{}, genErr
	}
	s.notifier.Notify(NotifySuccess, fmt.Sprintf("%s regenerated successfully", t.Label()))
	return patch, nil
}

// RegenerateMany regenerates several artifact types concurrently. Each type succeeds or
// fails on its own; the returned error joins the individual failures.
func (s *CampaignSession) RegenerateMany(ctx context.Context, types []models.ArtifactType) ([]RegenerateOutcome, error) {
	seen := make(map[models.ArtifactType]bool, len(types))
	unique := make([]models.ArtifactType, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	if len(unique) == 0 {
		return nil, appErrors.NewValidationError("no artifact types given", nil)
	}

	outcomes := make([]RegenerateOutcome, len(unique))
	errs := make([]error, len(unique))
	var g errgroup.Group
	for i, t := range unique {
		i, t := i, t
		g.Go(func() error {
			_, err := s.RegenerateOne(ctx, t)
			outcomes[i] = RegenerateOutcome{Type: t, OK: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", t, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, errors.Join(errs...)
}

// EnterEdit opens a draft of scope seeded from the committed bundle.
func (s *CampaignSession) EnterEdit(scope models.Scope) error {
	return s.withLock(func() error { return s.edits.EnterEdit(scope) })
}

// Mutate changes one draft field.
func (s *CampaignSession) Mutate(scope models.Scope, field, value string) error {
	return s.withLock(func() error { return s.edits.Mutate(scope, field, value) })
}

// AddItem appends a placeholder item to a draft collection.
func (s *CampaignSession) AddItem(item models.ItemScope) (int, error) {
	var n int
	err := s.withLock(func() error {
		var err error
		n, err = s.edits.AddItem(item)
		return err
	})
	return n, err
}

// RemoveItem deletes one item from a draft collection.
func (s *CampaignSession) RemoveItem(item models.ItemScope, index int) (int, error) {
	var n int
	err := s.withLock(func() error {
		var err error
		n, err = s.edits.RemoveItem(item, index)
		return err
	})
	return n, err
}

// Commit writes the draft of scope into the committed bundle.
func (s *CampaignSession) Commit(scope models.Scope) (CommitResult, error) {
	var res CommitResult
	err := s.withLock(func() error {
		var err error
		res, err = s.edits.Commit(scope)
		return err
	})
	if err != nil {
		return res, err
	}

	s.metrics.RecordCommit(res.Stale)
	if res.Stale {
		s.logger.Warn("edit committed over regenerated content", map[string]interface{}{
			"session_id": s.ID,
			"scope":      scope.String(),
		})
	}
	s.notifier.Notify(NotifySuccess, "Changes saved")
	return res, nil
}

// Cancel discards the draft of scope.
func (s *CampaignSession) Cancel(scope models.Scope) {
	_ = s.withLock(func() error {
		s.edits.Cancel(scope)
		return nil
	})
}

// IsEditing reports whether scope has an open draft.
func (s *CampaignSession) IsEditing(scope models.Scope) bool {
	var editing bool
	_ = s.withReadLock(func() error {
		editing = s.edits.IsEditing(scope)
		return nil
	})
	return editing
}

// Draft returns the open draft of scope.
func (s *CampaignSession) Draft(scope models.Scope) (interface{}, error) {
	var draft interface{}
	err := s.withReadLock(func() error {
		var err error
		draft, err = s.edits.Draft(scope)
		return err
	})
	return draft, err
}

// OpenPreview replaces the preview selection.
func (s *CampaignSession) OpenPreview(sel Selection) error {
	return s.withLock(func() error { return s.preview.Open(sel) })
}

// ClosePreview clears the preview selection.
func (s *CampaignSession) ClosePreview() {
	_ = s.withLock(func() error {
		s.preview.Close()
		return nil
	})
}

// RenderPreview renders the current selection from the committed bundle; nil when none is open.
func (s *CampaignSession) RenderPreview() (*PreviewView, error) {
	var view *PreviewView
	err := s.withReadLock(func() error {
		var err error
		view, err = s.preview.Render()
		return err
	})
	return view, err
}

// Export saves one artifact through the default file sink.
func (s *CampaignSession) Export(kind models.ExportKind, index int) (*models.ExportPayload, error) {
	return s.ExportTo(nil, kind, index)
}

// ExportTo saves one artifact through files, or the default sink when files is nil.
func (s *CampaignSession) ExportTo(files FileSink, kind models.ExportKind, index int) (*models.ExportPayload, error) {
	exporter, err := s.exporterFor(files)
	if err != nil {
		return nil, err
	}
	payload, err := exporter.ExportOne(s.store.Bundle(), kind, index)
	s.notifyExport(payload, err)
	return payload, err
}

// ExportBundle saves the aggregate document through the default file sink.
func (s *CampaignSession) ExportBundle(campaignName string) (*models.ExportPayload, error) {
	return s.ExportBundleTo(nil, campaignName)
}

// ExportBundleTo saves the aggregate document; an empty campaignName uses the descriptor name.
func (s *CampaignSession) ExportBundleTo(files FileSink, campaignName string) (*models.ExportPayload, error) {
	exporter, err := s.exporterFor(files)
	if err != nil {
		return nil, err
	}
	if campaignName == "" {
		campaignName = s.Descriptor().Name
	}
	payload, err := exporter.ExportBundle(s.store.Bundle(), campaignName)
	s.notifyExport(payload, err)
	return payload, err
}

// Copy copies one artifact to clip, or the default clipboard when clip is nil.
func (s *CampaignSession) Copy(clip ClipboardSink, kind models.ExportKind, index int) (*models.ExportPayload, error) {
	if s.exporter == nil {
		return nil, appErrors.NewExportError("no exporter configured", nil)
	}
	exporter := s.exporter
	if clip != nil {
		exporter = exporter.WithClipboard(clip)
	}
	payload, err := exporter.CopyOne(s.store.Bundle(), kind, index)
	if err != nil {
		s.notifier.Notify(NotifyError, fmt.Sprintf("Copy failed: %v", err))
		return nil, err
	}
	s.notifier.Notify(NotifySuccess, "Copied to clipboard")
	return payload, nil
}

func (s *CampaignSession) exporterFor(files FileSink) (*ExportService, error) {
	if s.exporter == nil {
		return nil, appErrors.NewExportError("no exporter configured", nil)
	}
	if files != nil {
		return s.exporter.WithFileSink(files), nil
	}
	return s.exporter, nil
}

func (s *CampaignSession) notifyExport(payload *models.ExportPayload, err error) {
	if err != nil {
		s.notifier.Notify(NotifyError, fmt.Sprintf("Export failed: %v", err))
		return
	}
	s.notifier.Notify(NotifySuccess, fmt.Sprintf("Exported %s", payload.Filename))
}

// State returns a snapshot of the session.
func (s *CampaignSession) State() SessionState {
	var st SessionState
	_ = s.withReadLock(func() error {
		st = SessionState{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			Descriptor: s.descriptor,
			Tone:       s.tone,
			Bundle:     s.store.Bundle(),
			Loading:    s.store.Loading(),
			Editing:    s.edits.EditingScopes(),
			Preview:    s.preview.Selection(),
		}
		return nil
	})
	return st
}
