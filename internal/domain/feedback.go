package domain

import "time"

// ProcessedMarker is the literal written to the marker column once a row's
// judgment has been persisted.
const ProcessedMarker = "Processed"

// TimestampLayout is the wall-clock format used for the write-back timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FeedbackRow is one tracked feature decision read from the sheet.
type FeedbackRow struct {
	// RowIndex is the 1-based sheet position (header = 1, first data row = 2).
	// It is the write-back address and stable for the row's lifetime.
	RowIndex int

	IssueID       string
	Summary       string
	Priority      string
	Justification string
	Impact        string
	ReleaseDate   string
	Feedback      string

	Judgment        string
	ProcessingState string
	ProcessedAt     string
}

// JudgedRow pairs a row with the judgment produced for it in the current run.
type JudgedRow struct {
	Row      FeedbackRow
	Judgment string
}

// RunStats summarizes one pipeline execution.
type RunStats struct {
	Eligible  int
	Processed int
	Failed    int
	Duration  time.Duration
}
