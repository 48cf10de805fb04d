package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/domain"
	"FeedbackLoop/internal/selector"
	"FeedbackLoop/internal/writeback"
)

// fakeStore is an in-memory grid with sheet semantics: cell writes land in
// place and are visible to the next read.
type fakeStore struct {
	grid     [][]string
	readErr  error
	writeErr error

	cellWrites int
	appended   [][]string
}

func (f *fakeStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([][]string, len(f.grid))
	for i, row := range f.grid {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (f *fakeStore) WriteCell(ctx context.Context, rowIndex, columnIndex int, value string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if rowIndex < 1 || rowIndex > len(f.grid) {
		return fmt.Errorf("row %d out of range", rowIndex)
	}
	row := f.grid[rowIndex-1]
	for len(row) < columnIndex {
		row = append(row, "")
	}
	row[columnIndex-1] = value
	f.grid[rowIndex-1] = row
	f.cellWrites++
	return nil
}

func (f *fakeStore) AppendRows(ctx context.Context, rows [][]string) error {
	f.appended = append(f.appended, rows...)
	return nil
}

type stubJudge struct {
	judgments map[string]string
	fallback  string
}

func (s *stubJudge) Judge(ctx context.Context, row domain.FeedbackRow) string {
	if j, ok := s.judgments[row.IssueID]; ok {
		return j
	}
	if s.fallback != "" {
		return s.fallback
	}
	return "ok"
}

type stubSynthesizer struct {
	text  string
	err   error
	calls int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, judged []domain.JudgedRow) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubReporter struct {
	judged []domain.JudgedRow
	err    error
}

func (s *stubReporter) Emit(judged []domain.JudgedRow, now time.Time) error {
	s.judged = judged
	return s.err
}

type stubNotifier struct {
	digests []string
	err     error
}

func (s *stubNotifier) PublishDigest(ctx context.Context, digest string) error {
	s.digests = append(s.digests, digest)
	return s.err
}

func testSchema() config.SchemaConfig {
	return config.SchemaConfig{
		IdentifyingColumn: 1,
		TriggerColumn:     7,
		JudgmentColumn:    8,
		MarkerColumn:      9,
		TimestampColumn:   10,
		MinWidth:          10,
	}
}

func header() []string {
	return []string{"jira_id", "summary", "priority", "justification", "impact", "releasedate", "feedback", "evaluation", "status", "timestamp"}
}

func newTestPipeline(store *fakeStore, judge *stubJudge, synth *stubSynthesizer, reporter *stubReporter) *Pipeline {
	schema := testSchema()
	deps := PipelineDeps{
		Store:     store,
		Selector:  selector.New(schema, nil),
		Judge:     judge,
		WriteBack: writeback.New(store, schema, nil),
	}
	if synth != nil {
		deps.Synthesizer = synth
	}
	if reporter != nil {
		deps.Reporter = reporter
	}
	return NewPipeline(deps)
}

func TestRunTwoRowScenario(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "Search", "High", "Drives adoption", "users loved it", "2025-06-01", "users loved it"},
		{"", "Anonymous", "Low", "", "x", "", "x"},
	}}
	judge := &stubJudge{fallback: "Priority call held up."}

	stats, err := newTestPipeline(store, judge, nil, nil).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Eligible != 1 || stats.Processed != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rowA := store.grid[1]
	if rowA[7] != "Priority call held up." {
		t.Fatalf("unexpected judgment cell: %q", rowA[7])
	}
	if rowA[8] != "Processed" {
		t.Fatalf("unexpected marker cell: %q", rowA[8])
	}
	if _, parseErr := time.Parse(domain.TimestampLayout, rowA[9]); parseErr != nil {
		t.Fatalf("unexpected timestamp cell %q: %v", rowA[9], parseErr)
	}

	rowB := store.grid[2]
	if len(rowB) > 7 && (rowB[7] != "" || rowB[8] != "" || rowB[9] != "") {
		t.Fatalf("row B was touched: %v", rowB)
	}
}

func TestRunTwiceSecondRunIsNoOp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "Search", "High", "", "", "", "feedback a"},
		{"PROJ-2", "Export", "Low", "", "", "", "feedback b"},
	}}
	pipeline := newTestPipeline(store, &stubJudge{}, nil, nil)

	first, err := pipeline.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d", first.Processed)
	}

	writesAfterFirst := store.cellWrites
	second, err := pipeline.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if second.Eligible != 0 || second.Processed != 0 {
		t.Fatalf("second run should be empty, got %+v", second)
	}
	if store.cellWrites != writesAfterFirst {
		t.Fatalf("second run modified cells: %d -> %d", writesAfterFirst, store.cellWrites)
	}
}

func TestRunServiceFailureRowsStillCountProcessed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "", "", "", "", "", "fb"},
		{"PROJ-2", "", "", "", "", "", "fb"},
		{"PROJ-3", "", "", "", "", "", "fb"},
	}}
	judge := &stubJudge{fallback: "API Error: 429"}

	stats, err := newTestPipeline(store, judge, nil, nil).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Processed != 3 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for i := 1; i <= 3; i++ {
		if store.grid[i][7] != "API Error: 429" {
			t.Fatalf("row %d judgment: %q", i+1, store.grid[i][7])
		}
	}
}

func TestRunStoreWriteFailureCountsFailed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		grid: [][]string{
			header(),
			{"PROJ-1", "", "", "", "", "", "fb"},
			{"PROJ-2", "", "", "", "", "", "fb"},
		},
		writeErr: errors.New("quota exceeded"),
	}
	synth := &stubSynthesizer{text: "unused"}

	stats, err := newTestPipeline(store, &stubJudge{}, synth, nil).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Processed != 0 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if synth.calls != 0 {
		t.Fatal("synthesis should not run without judged rows")
	}
}

func TestRunAppendsSynthesisBlock(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "", "", "", "", "", "fb"},
	}}
	synth := &stubSynthesizer{text: "patterns and learnings"}
	now := time.Date(2025, time.July, 1, 6, 0, 0, 0, time.UTC)

	if _, err := newTestPipeline(store, &stubJudge{}, synth, nil).Run(context.Background(), now); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(store.appended) != 3 {
		t.Fatalf("expected 3 appended rows, got %d", len(store.appended))
	}
	if store.appended[0][0] != "CYCLE SYNTHESIS" {
		t.Fatalf("unexpected label row: %v", store.appended[0])
	}
	if store.appended[1][0] != "Generated at" || store.appended[1][1] != "2025-07-01 06:00:00" {
		t.Fatalf("unexpected generated-at row: %v", store.appended[1])
	}
	if store.appended[2][0] != "patterns and learnings" {
		t.Fatalf("unexpected body row: %v", store.appended[2])
	}
}

func TestRunSynthesisFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "", "", "", "", "", "fb"},
	}}
	synth := &stubSynthesizer{err: errors.New("overloaded")}

	stats, err := newTestPipeline(store, &stubJudge{}, synth, nil).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.appended) != 0 {
		t.Fatalf("no rows should be appended on synthesis failure, got %d", len(store.appended))
	}
}

func TestRunReadFailureIsEmptyBatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{readErr: errors.New("backend unavailable")}

	stats, err := newTestPipeline(store, &stubJudge{}, nil, nil).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("read failure must degrade, got error: %v", err)
	}
	if stats.Eligible != 0 || stats.Processed != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunPublishesSummaryDigest(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "", "", "", "", "", "fb"},
	}}
	notifier := &stubNotifier{err: errors.New("chat unreachable")}

	pipeline := newTestPipeline(store, &stubJudge{}, nil, nil)
	pipeline.notifier = notifier

	stats, err := pipeline.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("notifier failure must not fail the run: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(notifier.digests) != 1 || !strings.Contains(notifier.digests[0], "1 processed") {
		t.Fatalf("unexpected digests: %v", notifier.digests)
	}
}

func TestRunReporterFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{grid: [][]string{
		header(),
		{"PROJ-1", "Search", "", "", "", "", "fb"},
	}}
	reporter := &stubReporter{err: errors.New("disk full")}

	stats, err := newTestPipeline(store, &stubJudge{}, nil, reporter).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(reporter.judged) != 1 || reporter.judged[0].Row.IssueID != "PROJ-1" {
		t.Fatalf("reporter received wrong rows: %+v", reporter.judged)
	}
}
