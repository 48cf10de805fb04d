package writeback

import (
	"context"
	"log/slog"
	"time"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/domain"
	"FeedbackLoop/internal/ports"
)

// Writer persists a judgment into the three evaluation cells of its row.
type Writer struct {
	store  ports.TabularStore
	schema config.SchemaConfig
	logger *slog.Logger

	// Now is the wall clock for the timestamp cell; replaced in tests.
	Now func() time.Time
}

var _ ports.WriteBack = (*Writer)(nil)

// New wires the writer against the store for one deployment's layout.
func New(store ports.TabularStore, schema config.SchemaConfig, logger *slog.Logger) *Writer {
	return &Writer{store: store, schema: schema, logger: logger, Now: time.Now}
}

// Persist issues three cell writes in fixed order: judgment, processing
// marker, timestamp. The writes are not transactional; a crash in between
// leaves a row whose non-empty judgment still makes it ineligible on the
// next run, which is the accepted recovery behavior. A false return marks
// the row failed while the batch continues.
func (w *Writer) Persist(ctx context.Context, rowIndex int, judgment string) bool {
	if w.store == nil {
		return false
	}

	if err := w.store.WriteCell(ctx, rowIndex, w.schema.JudgmentColumn, judgment); err != nil {
		w.warn("write judgment cell", "row", rowIndex, "error", err)
		return false
	}

	if err := w.store.WriteCell(ctx, rowIndex, w.schema.MarkerColumn, domain.ProcessedMarker); err != nil {
		w.warn("write marker cell", "row", rowIndex, "error", err)
		return false
	}

	stamp := w.Now().Format(domain.TimestampLayout)
	if err := w.store.WriteCell(ctx, rowIndex, w.schema.TimestampColumn, stamp); err != nil {
		w.warn("write timestamp cell", "row", rowIndex, "error", err)
		return false
	}

	w.debug("row persisted", "row", rowIndex)
	return true
}

func (w *Writer) warn(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func (w *Writer) debug(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
