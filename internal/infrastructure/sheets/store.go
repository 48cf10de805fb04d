package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/ports"
)

// Store implements ports.TabularStore over the Google Sheets API. All
// operations are remote; writes are visible to the next read.
type Store struct {
	svc           *gsheets.Service
	spreadsheetID string
	worksheetName string
	logger        *slog.Logger

	// resolved tab title, set on first use
	worksheet string
}

var _ ports.TabularStore = (*Store)(nil)

// New authenticates with the service-account credentials blob and the
// spreadsheets scope. Missing or invalid credentials fail here, before any
// row is touched.
func New(ctx context.Context, cfg config.SheetConfig, logger *slog.Logger) (*Store, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("sheets credentials not configured")
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id not configured")
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("authorize sheets client: %w", err)
	}

	return &Store{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		worksheetName: cfg.WorksheetName,
		logger:        logger,
	}, nil
}

// resolveWorksheet opens the configured tab by name, falling back to the
// document's first tab when the name is empty or unknown.
func (s *Store) resolveWorksheet(ctx context.Context) (string, error) {
	if s.worksheet != "" {
		return s.worksheet, nil
	}

	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("open spreadsheet %s: %w", s.spreadsheetID, err)
	}
	if len(meta.Sheets) == 0 {
		return "", fmt.Errorf("spreadsheet %s has no worksheets", s.spreadsheetID)
	}

	title := meta.Sheets[0].Properties.Title
	if s.worksheetName != "" {
		found := false
		for _, sh := range meta.Sheets {
			if sh.Properties != nil && sh.Properties.Title == s.worksheetName {
				title = sh.Properties.Title
				found = true
				break
			}
		}
		if !found {
			s.warn("worksheet not found, using first tab", "wanted", s.worksheetName, "using", title)
		}
	}

	s.worksheet = title
	return title, nil
}

// ReadAllRows returns the whole tab as strings, header row included.
func (s *Store) ReadAllRows(ctx context.Context) ([][]string, error) {
	tab, err := s.resolveWorksheet(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteTab(tab)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, cellString(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCell updates a single cell addressed by 1-based row and column.
func (s *Store) WriteCell(ctx context.Context, rowIndex, columnIndex int, value string) error {
	tab, err := s.resolveWorksheet(ctx)
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s!%s%d", quoteTab(tab), columnLetter(columnIndex), rowIndex)
	vr := &gsheets.ValueRange{Values: [][]interface{}{{value}}}

	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, target, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write cell %s: %w", target, err)
	}
	return nil
}

// AppendRows appends a block of rows after the tab's last data row. Existing
// rows are never overwritten.
func (s *Store) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tab, err := s.resolveWorksheet(ctx)
	if err != nil {
		return err
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, 0, len(row))
		for _, c := range row {
			cells = append(cells, c)
		}
		values = append(values, cells)
	}

	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteTab(tab), &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows: %w", len(rows), err)
	}
	return nil
}

// columnLetter converts a 1-based column index to its A1 letter form.
func columnLetter(column int) string {
	letters := ""
	for column > 0 {
		column--
		letters = string(rune('A'+column%26)) + letters
		column /= 26
	}
	return letters
}

// quoteTab wraps a tab title in single quotes so titles with spaces stay
// valid in A1 ranges.
func quoteTab(title string) string {
	return "'" + title + "'"
}

func cellString(cell interface{}) string {
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}

func (s *Store) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
