package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"FeedbackLoop/internal/domain"
	"FeedbackLoop/internal/ports"
)

// Per-call budgets. The cross-row synthesis prompt is much larger than a
// single row, so it gets a wider window.
const (
	judgeTimeout     = 60 * time.Second
	synthesisTimeout = 120 * time.Second
)

// defaultPromptTemplate interpolates exactly one row's textual fields. When
// the layout has no feedback column, the impact field doubles as the
// post-release signal.
const defaultPromptTemplate = `These are the features that were released in the last cycle, along with the predicted feature priority, the justification for that priority, and the post-release signal received for the feature.

Feature Details:
- Issue ID: {{.IssueID}}
- Summary: {{.Summary}}
- Predicted Priority: {{.Priority}}
- Justification for Priority: {{.Justification}}
- Feature Impact: {{.Impact}}
- Release Date: {{.ReleaseDate}}

Post-Release Feedback:
{{if .Feedback}}{{.Feedback}}{{else}}{{.Impact}}{{end}}

Task: Summarize any deviations in the observed signal compared to the justification used for prioritizing this feature, as qualitative input for the next prioritization cycle.

Provide a concise summary (2-3 sentences) of key deviations or insights. Do not add headings and do not restate the inputs.`

// Evaluator turns feedback rows into judgments and a run-level synthesis by
// calling the completion service.
type Evaluator struct {
	completer ports.Completer
	tmpl      *template.Template
	logger    *slog.Logger
}

var _ ports.Judge = (*Evaluator)(nil)
var _ ports.Synthesizer = (*Evaluator)(nil)

// New parses the prompt template (the built-in one when override is empty)
// and wires the completion client.
func New(completer ports.Completer, templateOverride string, logger *slog.Logger) (*Evaluator, error) {
	text := templateOverride
	if strings.TrimSpace(text) == "" {
		text = defaultPromptTemplate
	}

	tmpl, err := template.New("judgment").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	return &Evaluator{completer: completer, tmpl: tmpl, logger: logger}, nil
}

// Judge builds the row's prompt and returns the completion text. A service
// failure is a terminal per-row outcome: the returned judgment is the error
// description itself, written to the store like any other judgment so the
// row always reflects "attempted".
func (e *Evaluator) Judge(ctx context.Context, row domain.FeedbackRow) string {
	if e.completer == nil {
		return "API Error: completion service not configured"
	}

	var sb strings.Builder
	if err := e.tmpl.Execute(&sb, row); err != nil {
		e.warn("render prompt", "issue_id", row.IssueID, "error", err)
		return "API Error: " + err.Error()
	}

	callCtx, cancel := context.WithTimeout(ctx, judgeTimeout)
	defer cancel()

	completion, err := e.completer.Complete(callCtx, sb.String())
	if err != nil {
		e.warn("completion failed", "issue_id", row.IssueID, "error", err)
		return errorJudgment(err)
	}

	if completion.PromptTokens > 0 || completion.CompletionTokens > 0 {
		e.debug("completion usage",
			"issue_id", row.IssueID,
			"prompt_tokens", completion.PromptTokens,
			"completion_tokens", completion.CompletionTokens)
	}

	return strings.TrimSpace(completion.Text)
}

// Synthesize asks for one structured cross-row summary over the rows judged
// in this run. Unlike Judge, failures propagate: the caller skips the
// best-effort synthesis stage instead of persisting an error string.
func (e *Evaluator) Synthesize(ctx context.Context, judged []domain.JudgedRow) (string, error) {
	if e.completer == nil {
		return "", fmt.Errorf("completion service not configured")
	}
	if len(judged) == 0 {
		return "", fmt.Errorf("no judged rows to synthesize")
	}

	callCtx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	completion, err := e.completer.Complete(callCtx, synthesisPrompt(judged))
	if err != nil {
		return "", fmt.Errorf("synthesis completion: %w", err)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return "", fmt.Errorf("synthesis completion is empty")
	}
	return text, nil
}

func synthesisPrompt(judged []domain.JudgedRow) string {
	var sb strings.Builder
	sb.WriteString("These are the per-feature evaluations produced in the current prioritization review cycle.\n\nEvaluated features:\n")
	for _, j := range judged {
		fmt.Fprintf(&sb, "- ID: %s | Summary: %s | Predicted Priority: %s | Evaluation: %s\n",
			j.Row.IssueID, j.Row.Summary, j.Row.Priority, j.Judgment)
	}
	sb.WriteString(`
Task: Synthesize these evaluations into input for the next prioritization cycle. Cover:
1. Patterns across the evaluations.
2. Critical learnings where priority calls diverged from observed outcomes.
3. Recommended adjustments to prioritization weighting.
4. Successes where prioritization was validated.

Keep the whole synthesis under 200 words and do not restate the inputs.`)
	return sb.String()
}

// errorJudgment formats a service failure as the judgment literal. Non-success
// statuses keep their numeric code so the stored value stays auditable.
func errorJudgment(err error) string {
	var statusErr *ports.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("API Error: %d", statusErr.Code)
	}
	return "API Error: " + err.Error()
}

func (e *Evaluator) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Evaluator) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
