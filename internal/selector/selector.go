package selector

import (
	"log/slog"
	"strings"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/domain"
)

// Fixed positions of the descriptive fields shared by every schema variant.
const (
	colIssueID       = 1
	colSummary       = 2
	colPriority      = 3
	colJustification = 4
	colImpact        = 5
	colReleaseDate   = 6
	colFeedback      = 7
)

// Selector scans raw sheet rows and produces the ordered eligible batch.
type Selector struct {
	schema config.SchemaConfig
	logger *slog.Logger
}

// New builds a selector for one deployment's column layout.
func New(schema config.SchemaConfig, logger *slog.Logger) *Selector {
	return &Selector{schema: schema, logger: logger}
}

// Select drops the header row, pads short rows to the schema width and keeps
// rows whose identifying and trigger fields are set but whose judgment is
// still blank. Sheet order is preserved; row indices are 1-based absolute
// positions (header = 1, first data row = 2). An empty result is a normal
// empty-batch outcome, not an error.
func (s *Selector) Select(raw [][]string) []domain.FeedbackRow {
	if len(raw) < 2 {
		s.debug("no data rows in sheet", "rows", len(raw))
		return nil
	}

	var eligible []domain.FeedbackRow
	for i, row := range raw[1:] {
		padded := pad(row, s.schema.MinWidth)

		identifying := cell(padded, s.schema.IdentifyingColumn)
		trigger := cell(padded, s.schema.TriggerColumn)
		judgment := cell(padded, s.schema.JudgmentColumn)

		if identifying == "" || trigger == "" || judgment != "" {
			continue
		}

		fb := domain.FeedbackRow{
			RowIndex:      i + 2,
			IssueID:       cell(padded, colIssueID),
			Summary:       cell(padded, colSummary),
			Priority:      cell(padded, colPriority),
			Justification: cell(padded, colJustification),
			Impact:        cell(padded, colImpact),
			ReleaseDate:   cell(padded, colReleaseDate),
		}
		// The feedback column only exists in layouts wide enough to hold it
		// ahead of the evaluation cells.
		if s.schema.JudgmentColumn > colFeedback {
			fb.Feedback = cell(padded, colFeedback)
		}
		eligible = append(eligible, fb)
	}

	s.debug("selected eligible rows", "eligible", len(eligible), "data_rows", len(raw)-1)
	return eligible
}

// pad extends a short row with empty cells up to the schema width.
func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// cell returns the trimmed value at a 1-based column, or "" when out of range.
func cell(row []string, column int) string {
	if column < 1 || column > len(row) {
		return ""
	}
	return strings.TrimSpace(row[column-1])
}

func (s *Selector) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
