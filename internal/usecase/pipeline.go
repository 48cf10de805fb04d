package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FeedbackLoop/internal/domain"
	"FeedbackLoop/internal/ports"
	"FeedbackLoop/internal/selector"
)

// Synthesis block appended after a successful run: label, generated-at, body.
const synthesisLabel = "CYCLE SYNTHESIS"

// PipelineDeps wires all driven adapters into the evaluation pipeline.
type PipelineDeps struct {
	Store       ports.TabularStore
	Selector    *selector.Selector
	Judge       ports.Judge
	WriteBack   ports.WriteBack
	Synthesizer ports.Synthesizer
	Reporter    ports.ReportEmitter
	Notifier    ports.Notifier
	Logger      *slog.Logger
}

// Pipeline implements the feedback-evaluation workflow: read all rows, judge
// each eligible one, write judgments back, then run the best-effort synthesis
// and report stages.
type Pipeline struct {
	store       ports.TabularStore
	selector    *selector.Selector
	judge       ports.Judge
	writeBack   ports.WriteBack
	synthesizer ports.Synthesizer
	reporter    ports.ReportEmitter
	notifier    ports.Notifier
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		store:       deps.Store,
		selector:    deps.Selector,
		judge:       deps.Judge,
		writeBack:   deps.WriteBack,
		synthesizer: deps.Synthesizer,
		reporter:    deps.Reporter,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
	}
}

// Run executes one batch. Per-row failures never abort the batch: a service
// failure is written as an error-string judgment and counts as processed,
// while a store-write failure marks the row failed and moves on. The
// returned error is reserved for failures that prevented the batch from
// happening at all.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.RunStats, error) {
	start := time.Now()
	var stats domain.RunStats

	if p.store == nil || p.selector == nil {
		p.info("pipeline not fully wired, nothing to do")
		return stats, nil
	}

	raw, err := p.store.ReadAllRows(ctx)
	if err != nil {
		// A failed read degrades to the normal empty-batch outcome; only an
		// escape from the outer driver body is fatal to the process.
		p.error("read rows", "error", err)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	rows := p.selector.Select(raw)
	stats.Eligible = len(rows)
	if len(rows) == 0 {
		stats.Duration = time.Since(start)
		p.info("no rows to process", "duration", stats.Duration.Round(time.Millisecond))
		return stats, nil
	}

	p.info("processing batch", "eligible", len(rows))

	var judged []domain.JudgedRow
	for _, row := range rows {
		p.info("processing row", "row", row.RowIndex, "issue_id", row.IssueID, "summary", row.Summary)

		judgment := p.judge.Judge(ctx, row)
		if p.writeBack.Persist(ctx, row.RowIndex, judgment) {
			stats.Processed++
			judged = append(judged, domain.JudgedRow{Row: row, Judgment: judgment})
		} else {
			stats.Failed++
		}
	}

	p.synthesize(ctx, judged, now)
	p.report(judged, now)

	stats.Duration = time.Since(start)
	p.info("batch complete",
		"processed", stats.Processed,
		"failed", stats.Failed,
		"duration", stats.Duration.Round(time.Millisecond))
	p.notify(ctx, stats)
	return stats, nil
}

// notify pushes the run summary to the operator channel, best-effort.
func (p *Pipeline) notify(ctx context.Context, stats domain.RunStats) {
	if p.notifier == nil {
		return
	}

	digest := fmt.Sprintf("Feedback evaluation run complete: %d processed, %d failed of %d eligible in %s.",
		stats.Processed, stats.Failed, stats.Eligible, stats.Duration.Round(time.Second))
	if err := p.notifier.PublishDigest(ctx, digest); err != nil {
		p.warn("publish run digest", "error", err)
	}
}

// synthesize appends the cross-row synthesis block. Best-effort: any failure
// is logged and the run still succeeds.
func (p *Pipeline) synthesize(ctx context.Context, judged []domain.JudgedRow, now time.Time) {
	if p.synthesizer == nil || len(judged) == 0 {
		return
	}

	text, err := p.synthesizer.Synthesize(ctx, judged)
	if err != nil {
		p.warn("synthesis skipped", "error", err)
		return
	}

	block := [][]string{
		{synthesisLabel},
		{"Generated at", now.Format(domain.TimestampLayout)},
		{text},
	}
	if err := p.store.AppendRows(ctx, block); err != nil {
		p.warn("append synthesis block", "error", err)
		return
	}

	p.info("synthesis appended", "rows", len(judged))
}

// report emits the run's static document. Best-effort as well.
func (p *Pipeline) report(judged []domain.JudgedRow, now time.Time) {
	if p.reporter == nil || len(judged) == 0 {
		return
	}

	if err := p.reporter.Emit(judged, now); err != nil {
		p.warn("report emission failed", "error", err)
	}
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) error(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
