package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"yashubustudio/custmapper/categorizer"
)

// PipelineOptions configures OpenPipeline.
type PipelineOptions struct {
	Logger  *zap.Logger
	Metrics *categorizer.Metrics
	// NoCheckpoint disables the resume journal.
	NoCheckpoint bool
	// Generator replaces the Gemini client built from the API key.
	Generator categorizer.Generator
}

// Pipeline is a categorizer.Pipeline together with the resources it owns.
type Pipeline struct {
	*categorizer.Pipeline
	checkpoint *categorizer.Checkpoint
}

// OpenPipeline wires the remote classifier, checkpoint journal and metrics
// into a pipeline for cfg. Without an API key the remote tier is disabled.
func OpenPipeline(ctx context.Context, cfg categorizer.Config, opts PipelineOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := opts.Generator
	if gen == nil && cfg.Remote.APIKey != "" {
		client, err := categorizer.NewGenAIGenerator(ctx, cfg.Remote.APIKey, cfg.Remote.Model)
		if err != nil {
			return nil, fmt.Errorf("init remote classifier: %w", err)
		}
		logger.Info("Remote classifier ready", zap.String("generator", client.Name()))
		gen = client
	}
	if gen == nil {
		logger.Warn("No API key configured (GEMINI_API_KEY), remote classification disabled")
	}

	p := &Pipeline{}
	pipelineOpts := []categorizer.Option{
		categorizer.WithLogger(logger),
		categorizer.WithMetrics(opts.Metrics),
	}
	if !opts.NoCheckpoint {
		cp, err := categorizer.OpenCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return nil, err
		}
		p.checkpoint = cp
		pipelineOpts = append(pipelineOpts, categorizer.WithCheckpoint(cp))
	}
	p.Pipeline = categorizer.NewPipeline(cfg, gen, pipelineOpts...)
	return p, nil
}

// Close releases the checkpoint journal.
func (p *Pipeline) Close() error {
	if p.checkpoint == nil {
		return nil
	}
	return p.checkpoint.Close()
}
