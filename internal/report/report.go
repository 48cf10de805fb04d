package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"FeedbackLoop/internal/domain"
	"FeedbackLoop/internal/ports"
)

const latestName = "latest.txt"

// Emitter renders a run's judgments into a static tabular document. It is a
// convenience projection, not the system of record: the driver logs and
// swallows anything it returns.
type Emitter struct {
	dir    string
	logger *slog.Logger
}

var _ ports.ReportEmitter = (*Emitter)(nil)

// New targets the output directory, created on first emit.
func New(dir string, logger *slog.Logger) *Emitter {
	return &Emitter{dir: dir, logger: logger}
}

// Emit writes a timestamped report file and overwrites the fixed latest
// alias. Prior reports are never deleted.
func (e *Emitter) Emit(judged []domain.JudgedRow, now time.Time) error {
	if len(judged) == 0 {
		return nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	content, err := render(judged, now)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	stamped := filepath.Join(e.dir, fmt.Sprintf("evaluation-%s.txt", now.Format("20060102-150405")))
	if err := os.WriteFile(stamped, content, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", stamped, err)
	}

	latest := filepath.Join(e.dir, latestName)
	if err := os.WriteFile(latest, content, 0o644); err != nil {
		return fmt.Errorf("update latest report: %w", err)
	}

	e.debug("report emitted", "path", stamped, "rows", len(judged))
	return nil
}

func render(judged []domain.JudgedRow, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Feedback evaluation report\nGenerated: %s\nRows evaluated: %d\n\n",
		now.Format(domain.TimestampLayout), len(judged))

	table := tablewriter.NewTable(&buf,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header([]string{"Issue", "Summary", "Priority", "Impact", "Feedback", "Evaluation"})
	for _, j := range judged {
		table.Append([]string{
			j.Row.IssueID,
			j.Row.Summary,
			j.Row.Priority,
			j.Row.Impact,
			j.Row.Feedback,
			j.Judgment,
		})
	}
	if err := table.Render(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *Emitter) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
