// Package assetflow provides a top-level convenience entry point for running
// the asset-plan pipeline from Go code without the HTTP server.
//
// Usage:
//
//	import "github.com/BaSui01/assetflow"
//
//	g, err := assetflow.New(assetflow.WithVendorKey("openai", os.Getenv("OPENAI_API_KEY")))
//	res, err := g.Generate(ctx, pipeline.RequestInput{Concept: "a cozy farming sim"}, nil)
//	os.WriteFile(res.Filename, res.Archive, 0o644)
//
// The generator wires the same vendor client, orchestrator and archive
// assembler as the assetflow binary.
package assetflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/llm"
	"github.com/BaSui01/assetflow/llm/tokenizer"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/pipeline/archive"
)

// Option configures the generator created by [New].
type Option func(*options)

type options struct {
	cfg    *config.Config
	keys   map[string]string
	logger *zap.Logger
}

// WithConfig replaces the default configuration. Vendor keys set with
// [WithVendorKey] are applied on top.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithVendorKey sets the API key for a vendor ("openai", "flux", "meshy", ...).
func WithVendorKey(vendor, key string) Option {
	return func(o *options) { o.keys[vendor] = key }
}

// WithConcurrency bounds the number of in-flight vendor calls per stage.
func WithConcurrency(n int) Option {
	return func(o *options) { o.cfg.Pipeline.Concurrency = n }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Generator runs plans and packs them into zip archives.
type Generator struct {
	orchestrator *pipeline.Orchestrator
	assembler    *archive.Assembler
	defaults     pipeline.Models
	limits       pipeline.Limits
}

// Result is a finished plan and its archive.
type Result struct {
	Plan     *pipeline.Plan
	Archive  []byte
	Report   archive.Report
	Filename string
}

// New creates a Generator. Unknown vendor names are a configuration error.
func New(opts ...Option) (*Generator, error) {
	o := &options{cfg: config.DefaultConfig(), keys: make(map[string]string)}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	for vendor, key := range o.keys {
		vc := o.cfg.Vendors.Vendor(vendor)
		if vc == nil {
			return nil, fmt.Errorf("unknown vendor %q", vendor)
		}
		vc.APIKey = key
	}

	client := llm.NewClient(o.cfg.Vendors, o.logger, llm.WithTokenizer(tokenizer.DefaultRegistry()))
	return &Generator{
		orchestrator: pipeline.NewOrchestrator(client, o.logger,
			pipeline.WithConcurrency(o.cfg.Pipeline.Concurrency)),
		assembler: archive.NewAssembler(archive.NewHTTPFetcher(o.cfg.Archive), o.logger),
		defaults:  pipeline.DefaultModels(o.cfg.Pipeline),
		limits:    pipeline.LimitsFromConfig(o.cfg.Pipeline),
	}, nil
}

// Generate validates the request, runs the pipeline and assembles the archive.
// progress may be nil.
func (g *Generator) Generate(ctx context.Context, in pipeline.RequestInput, progress pipeline.ProgressFunc) (*Result, error) {
	req, err := pipeline.NewRequestWithLimits(in, g.defaults, g.limits)
	if err != nil {
		return nil, err
	}
	plan, err := g.orchestrator.Run(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	data, report, err := g.assembler.Assemble(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &Result{
		Plan:     plan,
		Archive:  data,
		Report:   report,
		Filename: archive.Filename(plan),
	}, nil
}
