// internal/services/generation_gateway.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// GenerationGateway calls the generation service and normalizes its responses.
// Concurrent calls are independent: nothing is de-duplicated, sequenced or cancelled.
type GenerationGateway struct {
	client  ContentClient
	timeout time.Duration
	metrics *utils.PipelineMetrics
	logger  *utils.Logger
}

// GatewayOption customizes a gateway.
type GatewayOption func(*GenerationGateway)

// WithTimeout bounds each generation request; zero disables the bound.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *GenerationGateway) { g.timeout = d }
}

// WithMetrics records generation metrics.
func WithMetrics(m *utils.PipelineMetrics) GatewayOption {
	return func(g *GenerationGateway) { g.metrics = m }
}

// WithLogger overrides the logger.
func WithLogger(l *utils.Logger) GatewayOption {
	return func(g *GenerationGateway) { g.logger = l }
}

// NewGenerationGateway creates a gateway over client.
func NewGenerationGateway(client ContentClient, opts ...GatewayOption) *GenerationGateway {
	g := &GenerationGateway{
		client:  client,
		timeout: 60 * time.Second,
		logger:  utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = utils.NewPipelineMetrics(nil)
	}
	return g
}

// GenerateAll requests a whole bundle. It always returns a fully populated bundle:
// on any failure the sample bundle is returned together with a recoverable error.
func (g *GenerationGateway) GenerateAll(ctx context.Context, descriptor models.CampaignDescriptor, tone string) (models.ContentBundle, error) {
	descriptor = descriptor.WithDefaults()
	start := time.Now()

	raw, err := g.call(ctx, NewRepurposeRequest(descriptor, TargetFormatMultiple, tone))
	if err != nil {
		return g.fallback(descriptor, start, err)
	}

	res := ParseBundleResponse(raw, descriptor)
	if !res.OK() {
		return g.fallback(descriptor, start, res.Err)
	}

	g.metrics.RecordGeneration(TargetFormatMultiple, true, time.Since(start))
	g.logger.Info("bundle generated", map[string]interface{}{
		"campaign":    descriptor.Name,
		"shape":       string(res.Shape),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return *res.Bundle, nil
}

func (g *GenerationGateway) fallback(descriptor models.CampaignDescriptor, start time.Time, err error) (models.ContentBundle, error) {
	g.metrics.RecordGeneration(TargetFormatMultiple, false, time.Since(start))
	g.metrics.RecordFallback(string(appErrors.TypeOf(err)))
	g.logger.Warn("bundle generation failed; using sample bundle", map[string]interface{}{
		"campaign": descriptor.Name,
		"error":    err.Error(),
	})
	return *models.SampleBundle(), err
}

// RegenerateOne requests one artifact type. On failure the patch is empty and the
// caller keeps its existing field; sample data is never substituted.
func (g *GenerationGateway) RegenerateOne(ctx context.Context, t models.ArtifactType, descriptor models.CampaignDescriptor, tone string) (models.BundlePatch, error) {
	if _, err := models.ParseArtifactType(string(t)); err != nil {
		return models.BundlePatch{}, appErrors.NewValidationError("cannot regenerate", err)
	}
	descriptor = descriptor.WithDefaults()
	start := time.Now()

	raw, err := g.call(ctx, NewRepurposeRequest(descriptor, string(t), tone))
	if err == nil {
		res := ParseArtifactResponse(t, raw, descriptor)
		if res.OK() {
			g.metrics.RecordGeneration(string(t), true, time.Since(start))
			g.logger.Info("artifact regenerated", map[string]interface{}{
				"artifact":    string(t),
				"shape":       string(res.Shape),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			return res.Patch, nil
		}
		err = res.Err
	}

	g.metrics.RecordGeneration(string(t), false, time.Since(start))
	g.metrics.RecordRegenerationFailure(string(t))
	g.logger.Warn("artifact regeneration failed", map[string]interface{}{
		"artifact": string(t),
		"error":    err.Error(),
	})
	return models.BundlePatch{}, err
}

// call runs one request and classifies unexpected errors as network errors.
func (g *GenerationGateway) call(ctx context.Context, req RepurposeRequest) ([]byte, error) {
	if g.client == nil {
		return nil, appErrors.NewNetworkError("no generation backend configured", nil)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.client.Repurpose(ctx, req)
	if err == nil {
		return raw, nil
	}
	if appErrors.TypeOf(err) != "" {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, appErrors.NewNetworkError(fmt.Sprintf("generation timed out after %s", g.timeout), err)
	}
	return nil, appErrors.NewNetworkError("generation request failed", err)
}
