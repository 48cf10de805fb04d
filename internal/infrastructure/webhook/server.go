package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/ports"
)

// Server receives issue-tracker webhooks and appends feedback rows to the
// store. It is a pure producer: parse, map fields, append one row. The
// evaluation cells at the end of the row stay blank until the pipeline
// judges it.
type Server struct {
	store       ports.TabularStore
	schema      config.SchemaConfig
	impactField string
	logger      *slog.Logger
}

// New wires the receiver against the store for one deployment's layout.
func New(store ports.TabularStore, schema config.SchemaConfig, impactField string, logger *slog.Logger) *Server {
	return &Server{store: store, schema: schema, impactField: impactField, logger: logger}
}

// Routes returns the handler mux for serve mode.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/jira-to-gsheet", s.handleIssueWebhook)
	mux.HandleFunc("/", s.handleHealth)
	return mux
}

type issuePayload struct {
	Issue struct {
		Key    string                     `json:"key"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"issue"`
}

func (s *Server) handleIssueWebhook(w http.ResponseWriter, r *http.Request) {
	allowCrossOrigin(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"status":  "error",
			"message": "method not allowed",
		})
		return
	}

	var payload issuePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.warn("decode webhook payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "invalid JSON payload",
		})
		return
	}

	issueID := payload.Issue.Key
	if issueID == "" {
		issueID = "UNKNOWN"
	}
	summary := stringField(payload.Issue.Fields, "summary")
	releaseDate := stringField(payload.Issue.Fields, "releasedate")
	impact := stringField(payload.Issue.Fields, s.impactField)

	s.info("received issue webhook", "issue_id", issueID, "summary", summary)

	row := make([]string, s.schema.MinWidth)
	row[0] = issueID
	if len(row) > 1 {
		row[1] = summary
	}
	if len(row) > 4 {
		row[4] = impact
	}
	if len(row) > 5 {
		row[5] = releaseDate
	}

	if err := s.store.AppendRows(r.Context(), [][]string{row}); err != nil {
		s.warn("append webhook row", "issue_id", issueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "failed to write row to the sheet",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "row appended",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"message": "feedback webhook service is active",
	})
}

// stringField pulls a plain string field out of the raw issue fields,
// returning "" for missing or non-string values.
func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// allowCrossOrigin mirrors the permissive CORS policy of the original intake
// endpoint; the webhook is also posted from a browser form.
func allowCrossOrigin(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
