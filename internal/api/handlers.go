// internal/api/handlers.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CampaignStudio/internal/config"
	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/llm"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/services"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// Handler serves the campaign session API.
type Handler struct {
	Sessions *services.SessionService
	LLM      *services.LLMService // nil when the HTTP backend is used
	Metrics  *utils.PipelineMetrics
	Hub      *NotificationHub
	Response *ResponseHelper
	Logger   *utils.Logger

	startedAt time.Time
}

// CreateSessionRequest opens a campaign session.
type CreateSessionRequest struct {
	Descriptor models.CampaignDescriptor `json:"descriptor"`
	Tone       string                    `json:"tone"`
	Generate   bool                      `json:"generate"`
}

// RegenerateRequest names the artifacts to regenerate.
type RegenerateRequest struct {
	Types []string `json:"types" binding:"required"`
}

// EditRequest carries one edit command. Scope is "ebook", "socialPosts[0]", ... for
// enter, mutate, commit and cancel, and "ebook.chapters" or "socialPosts[0].posts" for
// add and remove.
type EditRequest struct {
	Scope string `json:"scope" binding:"required"`
	Field string `json:"field"`
	Value string `json:"value"`
	Index int    `json:"index"`
}

// PreviewRequest opens a preview.
type PreviewRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Index int    `json:"index"`
}

// LLMConfigRequest switches the LLM provider.
type LLMConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
	// Models pins the model list instead of the provider's own.
	Models []string `json:"models"`
}

// NewHandler creates a Handler.
func NewHandler(sessions *services.SessionService, llmService *services.LLMService, metrics *utils.PipelineMetrics, hub *NotificationHub, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewPipelineMetrics(nil)
	}
	return &Handler{
		Sessions:  sessions,
		LLM:       llmService,
		Metrics:   metrics,
		Hub:       hub,
		Response:  NewResponseHelper(),
		Logger:    logger,
		startedAt: time.Now(),
	}
}

// session resolves :id, writing a 404 when it is unknown.
func (h *Handler) session(c *gin.Context) (*services.CampaignSession, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.Response.NotFound(c, "session", err.Error())
		return nil, false
	}
	return s, true
}

// ========================================
// Sessions
// ========================================

// CreateSession opens a session, optionally generating its first bundle.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Response.BadRequest(c, "Invalid request body", err.Error())
			return
		}
	}

	s := h.Sessions.Create(req.Descriptor, req.Tone)
	if req.Generate {
		// a failed generation still leaves the sample bundle in place
		if _, err := s.GenerateAll(c.Request.Context()); err != nil {
			h.Logger.Warn("initial generation fell back to sample content", map[string]interface{}{
				"session_id": s.ID,
				"error":      err.Error(),
			})
		}
	}
	h.Response.Created(c, s.State(), "Session created")
}

// GetSession returns the session snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.Response.Success(c, s.State())
}

// EndSession discards the session.
func (h *Handler) EndSession(c *gin.Context) {
	if err := h.Sessions.End(c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, nil, "Session ended")
}

// UpdateBrief replaces the descriptor and tone used by later generations.
func (h *Handler) UpdateBrief(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	s.UpdateBrief(req.Descriptor, req.Tone)
	h.Response.Success(c, s.State(), "Brief updated")
}

// ========================================
// Generation
// ========================================

// GenerateAll replaces the whole bundle. On failure the sample bundle is installed and
// the response still succeeds, flagged with fallback.
func (h *Handler) GenerateAll(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	bundle, err := s.GenerateAll(c.Request.Context())
	data := gin.H{"bundle": bundle, "fallback": err != nil}
	if err != nil {
		data["error"] = err.Error()
		h.Response.Success(c, data, "Content generation failed, showing sample content instead")
		return
	}
	h.Response.Success(c, data, "Campaign content generated successfully")
}

// RegenerateOne replaces one artifact.
func (h *Handler) RegenerateOne(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	t, err := models.ParseArtifactType(c.Param("type"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidArtifact, err.Error())
		return
	}
	if _, err := s.RegenerateOne(c.Request.Context(), t); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, s.State(), t.Label()+" regenerated successfully")
}

// RegenerateMany regenerates several artifacts concurrently; each succeeds or fails alone.
func (h *Handler) RegenerateMany(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	types := make([]models.ArtifactType, 0, len(req.Types))
	for _, raw := range req.Types {
		t, err := models.ParseArtifactType(raw)
		if err != nil {
			h.Response.Error(c, http.StatusBadRequest, ErrorInvalidArtifact, err.Error())
			return
		}
		types = append(types, t)
	}

	outcomes, err := s.RegenerateMany(c.Request.Context(), types)
	if appErrors.IsValidationError(err) || appErrors.IsConflictError(err) {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"outcomes": outcomes, "state": s.State()})
}

// ========================================
// Editing
// ========================================

func (h *Handler) bindEdit(c *gin.Context) (*services.CampaignSession, EditRequest, bool) {
	var req EditRequest
	s, ok := h.session(c)
	if !ok {
		return nil, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return nil, req, false
	}
	return s, req, true
}

func (h *Handler) parseScope(c *gin.Context, raw string) (models.Scope, bool) {
	scope, err := models.ParseScope(raw)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidScope, err.Error())
		return models.Scope{}, false
	}
	return scope, true
}

func (h *Handler) parseItemScope(c *gin.Context, raw string) (models.ItemScope, bool) {
	scope, err := models.ParseItemScope(raw)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidScope, err.Error())
		return models.ItemScope{}, false
	}
	return scope, true
}

// EnterEdit opens a draft of the scope.
func (h *Handler) EnterEdit(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	scope, ok := h.parseScope(c, req.Scope)
	if !ok {
		return
	}
	if err := s.EnterEdit(scope); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.draftResponse(c, s, scope)
}

// MutateEdit sets one field of an open draft.
func (h *Handler) MutateEdit(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	scope, ok := h.parseScope(c, req.Scope)
	if !ok {
		return
	}
	if err := s.Mutate(scope, req.Field, req.Value); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.draftResponse(c, s, scope)
}

// AddItem appends a placeholder chapter or post to an open draft.
func (h *Handler) AddItem(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	item, ok := h.parseItemScope(c, req.Scope)
	if !ok {
		return
	}
	n, err := s.AddItem(item)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.itemResponse(c, s, item, n)
}

// RemoveItem deletes a chapter or post from an open draft.
func (h *Handler) RemoveItem(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	item, ok := h.parseItemScope(c, req.Scope)
	if !ok {
		return
	}
	n, err := s.RemoveItem(item, req.Index)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.itemResponse(c, s, item, n)
}

// CommitEdit validates the draft and writes it into the bundle.
func (h *Handler) CommitEdit(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	scope, ok := h.parseScope(c, req.Scope)
	if !ok {
		return
	}
	result, err := s.Commit(scope)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"result": result, "state": s.State()}, "Changes saved")
}

// CancelEdit discards the draft.
func (h *Handler) CancelEdit(c *gin.Context) {
	s, req, ok := h.bindEdit(c)
	if !ok {
		return
	}
	scope, ok := h.parseScope(c, req.Scope)
	if !ok {
		return
	}
	s.Cancel(scope)
	h.Response.Success(c, s.State(), "Edit cancelled")
}

// GetDraft returns the open draft named by ?scope=.
func (h *Handler) GetDraft(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	scope, ok := h.parseScope(c, c.Query("scope"))
	if !ok {
		return
	}
	h.draftResponse(c, s, scope)
}

func (h *Handler) draftResponse(c *gin.Context, s *services.CampaignSession, scope models.Scope) {
	draft, err := s.Draft(scope)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"scope": scope.String(), "draft": draft})
}

func (h *Handler) itemResponse(c *gin.Context, s *services.CampaignSession, item models.ItemScope, n int) {
	draft, err := s.Draft(item.Scope)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"scope": item.String(), "count": n, "draft": draft})
}

// ========================================
// Preview
// ========================================

// OpenPreview replaces the preview selection.
func (h *Handler) OpenPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	kind, err := services.ParsePreviewKind(req.Kind)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if err := s.OpenPreview(services.Selection{Kind: kind, Index: req.Index}); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.renderPreview(c, s)
}

// GetPreview renders the open preview; the view is null when none is open.
func (h *Handler) GetPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.renderPreview(c, s)
}

// ClosePreview clears the preview selection.
func (h *Handler) ClosePreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.ClosePreview()
	h.Response.Success(c, gin.H{"selection": services.NoSelection}, "Preview closed")
}

func (h *Handler) renderPreview(c *gin.Context, s *services.CampaignSession) {
	view, err := s.RenderPreview()
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	data := gin.H{"selection": s.State().Preview, "view": view}
	if view != nil {
		data["markdown"] = view.Markdown()
	}
	h.Response.Success(c, data)
}

// ========================================
// Export
// ========================================

func (h *Handler) exportArgs(c *gin.Context) (models.ExportKind, int, bool) {
	kind, err := models.ParseExportKind(c.Param("kind"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid, err.Error())
		return "", 0, false
	}
	index := 0
	if raw := c.Query("index"); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil {
			h.Response.BadRequest(c, "index must be an integer", err.Error())
			return "", 0, false
		}
	} else if kind.Indexed() {
		h.Response.BadRequest(c, "index is required for "+string(kind))
		return "", 0, false
	}
	return kind, index, true
}

// ExportOne downloads one artifact. With ?save=true the file is written to the
// server's export directory instead and its metadata returned.
func (h *Handler) ExportOne(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	kind, index, ok := h.exportArgs(c)
	if !ok {
		return
	}

	if c.Query("save") == "true" {
		payload, err := s.Export(kind, index)
		h.savedResponse(c, payload, err)
		return
	}

	download := services.NewMemoryFileSink()
	payload, err := s.ExportTo(download, kind, index)
	h.downloadResponse(c, download, payload, err)
}

// ExportBundle downloads the aggregate markdown document; ?campaign= overrides the name.
func (h *Handler) ExportBundle(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	if c.Query("save") == "true" {
		payload, err := s.ExportBundle(c.Query("campaign"))
		h.savedResponse(c, payload, err)
		return
	}

	download := services.NewMemoryFileSink()
	payload, err := s.ExportBundleTo(download, c.Query("campaign"))
	h.downloadResponse(c, download, payload, err)
}

func (h *Handler) savedResponse(c *gin.Context, payload *models.ExportPayload, err error) {
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"filename":     payload.Filename,
		"mime_type":    payload.MimeType,
		"size":         payload.Size(),
		"generated_at": payload.GeneratedAt,
	}, "Exported "+payload.Filename)
}

func (h *Handler) downloadResponse(c *gin.Context, download *services.MemoryFileSink, payload *models.ExportPayload, err error) {
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	file, ok := download.Get(payload.Filename)
	if !ok {
		h.Response.Error(c, http.StatusInternalServerError, ErrorExportFailed, "export produced no file")
		return
	}
	h.Response.DownloadResponse(c, file.Content, file.Filename, file.MimeType)
}

// Copy returns the copy-ready text of one artifact.
func (h *Handler) Copy(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	kind, index, ok := h.exportArgs(c)
	if !ok {
		return
	}
	clip := &services.MemoryClipboard{}
	if _, err := s.Copy(clip, kind, index); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"text": clip.Text()}, "Copied to clipboard")
}

// ========================================
// WebSocket
// ========================================

// SessionWebSocket streams the notifications of one session.
func (h *Handler) SessionWebSocket(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.Hub.Serve(c.Writer, c.Request, s.ID); err != nil {
		// the upgrader has already written the HTTP error
		h.Logger.Warn("websocket upgrade failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
	}
}

// GetWebSocketStatus reports open notification streams.
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.Hub.GetStatus())
}

// ========================================
// LLM backend
// ========================================

// GetLLMStatus reports LLM readiness.
func (h *Handler) GetLLMStatus(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	status := gin.H{
		"backend": cfg.GenerationBackend,
		"config": gin.H{
			"provider":    cfg.LLMProvider,
			"has_api_key": cfg.LLMConfig["api_key"] != "",
			"model":       cfg.LLMConfig["default_model"],
		},
	}
	if h.LLM != nil {
		status["ready"] = h.LLM.IsReady()
		status["status"] = h.LLM.GetReadyState()
		status["provider"] = h.LLM.GetProviderName()
		status["default_model"] = h.LLM.GetDefaultModel()
	} else {
		status["ready"] = false
		status["status"] = "LLM backend disabled"
	}
	h.Response.Success(c, status)
}

// GetLLMProviders lists registered providers and their models.
// With ?refresh=true the active provider's model list is first reloaded from the provider.
func (h *Handler) GetLLMProviders(c *gin.Context) {
	active := ""
	if h.LLM != nil && h.LLM.IsReady() {
		active = h.LLM.GetProviderName()
	}
	if c.Query("refresh") == "true" {
		if active == "" {
			h.Response.Error(c, http.StatusServiceUnavailable, ErrorLLMServiceUnavailable, "No LLM provider is configured")
			return
		}
		if _, err := h.LLM.RefreshModels(c.Request.Context(), nil); err != nil {
			h.Logger.Warn("model list refresh failed", map[string]interface{}{"provider": active, "error": err.Error()})
			h.Response.Error(c, http.StatusBadGateway, ErrorLLMServiceUnavailable, "Could not refresh the model list", err.Error())
			return
		}
	}

	providers := make([]gin.H, 0)
	for _, name := range llm.ListProviders() {
		models := llm.DefaultRegistry.SupportedModels(name)
		if name == active {
			models = h.LLM.SupportedModels()
		}
		providers = append(providers, gin.H{
			"name":   name,
			"models": models,
			"active": name == active,
		})
	}
	h.Response.Success(c, gin.H{"providers": providers, "count": len(providers)})
}

// UpdateLLMConfig switches the provider, persisting the settings with sealed secrets.
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req LLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	if h.LLM == nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorLLMServiceUnavailable, "LLM backend disabled")
		return
	}
	if err := h.LLM.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "LLM configuration rejected", err.Error())
		return
	}
	if len(req.Models) > 0 {
		if _, err := h.LLM.RefreshModels(c.Request.Context(), req.Models); err != nil {
			h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "Model list rejected", err.Error())
			return
		}
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Response.InternalError(c, "LLM provider switched but the configuration was not saved", err.Error())
		return
	}
	h.Response.Success(c, gin.H{"provider": h.LLM.GetProviderName(), "ready": h.LLM.IsReady()}, "LLM configuration updated")
}

// ========================================
// Health and metrics
// ========================================

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"active_sessions": h.Sessions.Len(),
	})
}

// GetMetrics returns the pipeline metrics snapshot.
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.Collector().GetMetrics())
}
