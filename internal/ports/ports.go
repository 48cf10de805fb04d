package ports

import (
	"context"
	"fmt"
	"time"

	"FeedbackLoop/internal/domain"
)

// TabularStore is the external grid service holding feedback rows. Writes are
// remote and visible to subsequent reads; there is no local caching.
type TabularStore interface {
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, rowIndex, columnIndex int, value string) error
	AppendRows(ctx context.Context, rows [][]string) error
}

// Completion is one response from the completion service. Token counts are
// recorded for observability only.
type Completion struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// StatusError reports a non-success response from the completion service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned status %d", e.Code)
}

// Completer is the external text-completion service: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Judge evaluates one feedback row into a short judgment. Service failures
// surface as an error-string judgment, never as an error.
type Judge interface {
	Judge(ctx context.Context, row domain.FeedbackRow) string
}

// Synthesizer produces one cross-row synthesis over a run's judged rows.
type Synthesizer interface {
	Synthesize(ctx context.Context, judged []domain.JudgedRow) (string, error)
}

// WriteBack persists a judgment plus marker and timestamp to the row it came
// from. A false return means the row failed but the batch continues.
type WriteBack interface {
	Persist(ctx context.Context, rowIndex int, judgment string) bool
}

// ReportEmitter renders a run's judged rows into a static document.
type ReportEmitter interface {
	Emit(judged []domain.JudgedRow, now time.Time) error
}

// Notifier pushes run summaries to an operator channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
