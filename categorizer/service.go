package categorizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline resolves unknown entities through the rule, few-shot and remote
// tiers and reconciles the results into the ledger. Batches run one at a time;
// a Pipeline must not be shared between concurrent runs.
type Pipeline struct {
	cfg        Config
	rules      *RuleClassifier
	remote     *RemoteClassifier
	selector   ExemplarSelector
	checkpoint *Checkpoint
	metrics    *Metrics
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	newRunID   func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSelector replaces the random exemplar selector.
func WithSelector(sel ExemplarSelector) Option {
	return func(p *Pipeline) {
		if sel != nil {
			p.selector = sel
		}
	}
}

// WithCheckpoint journals completed remote batches.
func WithCheckpoint(cp *Checkpoint) Option {
	return func(p *Pipeline) { p.checkpoint = cp }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSleeper replaces the inter-batch wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPipeline builds a pipeline from cfg. A nil generator disables the remote
// tier: everything the rules miss is left for manual review.
func NewPipeline(cfg Config, gen Generator, opts ...Option) *Pipeline {
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	p := &Pipeline{
		cfg:      cfg,
		rules:    NewRuleClassifier(cfg.Rules, cfg.GroupAliases),
		selector: NewRandomSelector(cfg.CategoryNames(), cfg.ExemplarsPerCategory, cfg.ExemplarSeed),
		logger:   zap.NewNop(),
		sleep:    sleepContext,
		newRunID: uuid.NewString,
	}
	if gen != nil {
		p.remote = NewRemoteClassifier(gen, cfg.Categories)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg.Clone()
}

// Run loads the ledger from the configured path, reconciles names into it and
// rewrites the file when anything was added. On error the file is untouched.
func (p *Pipeline) Run(ctx context.Context, names []string) (*Ledger, RunSummary, error) {
	ledger, err := LoadLedger(p.cfg.LedgerPath)
	if err != nil {
		return nil, RunSummary{}, err
	}
	if n := ledger.Dropped(); n > 0 {
		p.logger.Warn("Dropped duplicate ledger rows", zap.Int("rows", n))
	}
	summary, err := p.Reconcile(ctx, ledger, names)
	if err != nil {
		return ledger, summary, err
	}
	p.metrics.ledgerSize(ledger.Len())
	if summary.Added == 0 {
		p.logger.Info("All entities already in ledger, nothing to write",
			zap.Int("inputs", summary.Inputs), zap.Int("ledger", ledger.Len()))
		return ledger, summary, p.clearCheckpoint(ctx)
	}
	if err := ledger.Save(p.cfg.LedgerPath); err != nil {
		return ledger, summary, err
	}
	summary.Written = true
	p.logger.Info("Ledger updated",
		zap.String("path", p.cfg.LedgerPath),
		zap.Int("added", summary.Added),
		zap.Int("records", ledger.Len()))
	return ledger, summary, p.clearCheckpoint(ctx)
}

// Reconcile classifies the names absent from ledger and merges the outcomes
// into it. Existing records, Manual ones in particular, are never changed.
// Every unresolved name gets exactly one new record. If ctx is cancelled
// between batches the ledger is left unchanged and ctx.Err() is returned.
func (p *Pipeline) Reconcile(ctx context.Context, ledger *Ledger, names []string) (RunSummary, error) {
	summary := RunSummary{
		RunID:        p.newRunID(),
		Inputs:       len(names),
		ByProvenance: make(map[Provenance]int),
	}
	log := p.logger.With(zap.String("run", summary.RunID))

	unresolved := ledger.Unresolved(names)
	summary.Unresolved = len(unresolved)
	if len(unresolved) == 0 {
		return summary, nil
	}
	log.Info("Found new entities", zap.Int("count", len(unresolved)))

	resumed, unresolved, err := p.resume(ctx, unresolved)
	if err != nil {
		return summary, err
	}
	summary.Resumed = len(resumed)

	ruleHits, rest := p.rules.Resolve(unresolved)
	log.Info("Applied keyword rules", zap.Int("matched", len(ruleHits)), zap.Int("remaining", len(rest)))

	var remote []Record
	if len(rest) > 0 {
		exemplars := p.selector.Select(ledger)
		remote, err = p.classifyBatches(ctx, log, &summary, rest, exemplars)
		if err != nil {
			return summary, err
		}
	}

	results := make([]Record, 0, len(resumed)+len(ruleHits)+len(remote))
	results = append(results, resumed...)
	results = append(results, ruleHits...)
	results = append(results, remote...)
	summary.Added = ledger.Merge(results)
	for _, rec := range results {
		summary.ByProvenance[rec.Source]++
	}
	for src, n := range summary.ByProvenance {
		p.metrics.resolved(src, n)
	}
	return summary, nil
}

// resume takes journaled results for names that are still unresolved.
func (p *Pipeline) resume(ctx context.Context, names []string) ([]Record, []string, error) {
	if p.checkpoint == nil {
		return nil, names, nil
	}
	pending, err := p.checkpoint.Pending(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(pending) == 0 {
		return nil, names, nil
	}
	byKey := make(map[EntityKey]Record, len(pending))
	for _, rec := range pending {
		byKey[rec.Key()] = rec
	}
	var resumed []Record
	rest := make([]string, 0, len(names))
	for _, name := range names {
		if rec, ok := byKey[KeyOf(name)]; ok {
			resumed = append(resumed, rec)
			continue
		}
		rest = append(rest, name)
	}
	if len(resumed) > 0 {
		p.logger.Info("Resumed results from checkpoint", zap.Int("count", len(resumed)))
	}
	return resumed, rest, nil
}

// classifyBatches runs the remote tier behind a fresh breaker. Each batch
// contributes one record per name: the remote answer when there is one,
// otherwise Uncategorized/Check-Manually.
func (p *Pipeline) classifyBatches(ctx context.Context, log *zap.Logger, summary *RunSummary, names []string, exemplars Exemplars) ([]Record, error) {
	size := p.cfg.Remote.BatchSize
	total := (len(names) + size - 1) / size
	breaker := NewBreaker()
	if p.remote == nil {
		log.Warn("Remote classifier disabled, unresolved entities need manual review", zap.Int("count", len(names)))
	}

	out := make([]Record, 0, len(names))
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := names[i*size : min((i+1)*size, len(names))]
		summary.Batches++
		p.metrics.batch(breaker.State())

		var answers map[EntityKey]Classification
		switch {
		case p.remote == nil:
		case breaker.Allow():
			log.Debug("Classifying batch", zap.Int("batch", i+1), zap.Int("of", total), zap.Int("size", len(batch)))
			summary.RemoteCalls++
			res, err := p.remote.ClassifyBatch(ctx, batch, exemplars)
			switch {
			case err == nil:
				answers = res
				p.metrics.remoteCall("ok")
			case errors.Is(err, ErrQuotaExhausted):
				p.metrics.remoteCall("quota")
				breaker.Trip(i)
				p.metrics.breakerOpened()
				summary.BreakerOpen = true
				log.Warn("Remote quota exhausted, skipping remote calls for the rest of the run",
					zap.Int("batch", i+1), zap.Int("remaining", total-i-1), zap.Error(err))
			default:
				p.metrics.remoteCall("error")
				log.Warn("Remote classifier failed, skipping batch", zap.Int("batch", i+1), zap.Error(err))
			}
		default:
			if (i+1)%10 == 0 {
				log.Debug("Offline batch", zap.Int("batch", i+1), zap.Int("of", total))
			}
		}

		records := make([]Record, 0, len(batch))
		var classified []Record
		for _, name := range batch {
			rec := Record{
				Name:        name,
				ParentGroup: name,
				Category:    CategoryUncategorized,
				Source:      ProvenanceCheckManually,
			}
			if ans, ok := answers[KeyOf(name)]; ok {
				rec.Category = ans.Category
				rec.ParentGroup = ans.Group
				rec.Source = ProvenanceRemoteAI
				classified = append(classified, rec)
			}
			records = append(records, rec)
		}
		if p.checkpoint != nil && len(classified) > 0 {
			if err := p.checkpoint.SaveBatch(ctx, summary.RunID, i, classified); err != nil {
				log.Warn("Checkpoint write failed", zap.Int("batch", i+1), zap.Error(err))
			}
		}
		out = append(out, records...)

		if answers != nil && i < total-1 && p.cfg.Remote.BatchDelay > 0 {
			if err := p.sleep(ctx, p.cfg.Remote.BatchDelay); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// clearCheckpoint drops journaled results once they are in the saved ledger.
func (p *Pipeline) clearCheckpoint(ctx context.Context) error {
	if p.checkpoint == nil {
		return nil
	}
	if err := p.checkpoint.Clear(ctx); err != nil {
		return fmt.Errorf("ledger saved but %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
