package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(modeEnv, "")

	cfg := Load()

	if cfg.Mode != ModeRun {
		t.Fatalf("unexpected default mode: %s", cfg.Mode)
	}
	if cfg.Schema.MinWidth != 10 || cfg.Schema.JudgmentColumn != 8 {
		t.Fatalf("unexpected default schema: %+v", cfg.Schema)
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unexpected default timezone: %s", cfg.Scheduler.Location())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEEDBACK_LOOP_MODE", "serve")
	t.Setenv("GOOGLE_SHEET_NAME", "Prod Feedback")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-prod-1")
	t.Setenv("GOOGLE_CREDENTIALS_JSON", `{"type":"service_account"}`)
	t.Setenv("LLM_API_KEY", "key-1")
	t.Setenv("LLM_MODEL", "google/gemini-2.5-pro")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-1")
	t.Setenv("TELEGRAM_CHAT_ID", "chat-1")

	cfg := Load()

	if cfg.Mode != ModeServe {
		t.Fatalf("unexpected mode: %s", cfg.Mode)
	}
	if cfg.Sheet.WorksheetName != "Prod Feedback" || cfg.Sheet.SpreadsheetID != "sheet-prod-1" {
		t.Fatalf("unexpected sheet config: %+v", cfg.Sheet)
	}
	if cfg.Sheet.CredentialsJSON == "" {
		t.Fatal("credentials override not applied")
	}
	if cfg.LLM.APIKey != "key-1" || cfg.LLM.Model != "google/gemini-2.5-pro" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Notifications.Telegram.BotToken != "bot-1" || cfg.Notifications.Telegram.ChatID != "chat-1" {
		t.Fatalf("unexpected telegram config: %+v", cfg.Notifications.Telegram)
	}
}

func TestLoadYAMLFileMergedUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
mode: schedule
sheet:
  spreadsheetId: sheet-from-file
schema:
  identifyingColumn: 1
  triggerColumn: 5
  judgmentColumn: 7
  markerColumn: 8
  timestampColumn: 9
  minWidth: 9
scheduler:
  cronExpression: "30 5 * * 1"
  timezone: Europe/Berlin
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("FEEDBACK_LOOP_CONFIG", path)
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-from-env")

	cfg := Load()

	if cfg.Mode != ModeSchedule {
		t.Fatalf("unexpected mode: %s", cfg.Mode)
	}
	// Environment wins over the file.
	if cfg.Sheet.SpreadsheetID != "sheet-from-env" {
		t.Fatalf("unexpected spreadsheet id: %s", cfg.Sheet.SpreadsheetID)
	}
	if cfg.Schema.TriggerColumn != 5 || cfg.Schema.MinWidth != 9 {
		t.Fatalf("schema override not applied: %+v", cfg.Schema)
	}
	if cfg.Scheduler.CronExpression != "30 5 * * 1" {
		t.Fatalf("unexpected cron expression: %s", cfg.Scheduler.CronExpression)
	}
	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("unexpected timezone: %s", cfg.Scheduler.Location())
	}
}

func TestLoadUnknownTimezoneRevertsToUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "scheduler:\n  timezone: Not/AZone\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("FEEDBACK_LOOP_CONFIG", path)

	cfg := Load()
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("expected UTC fallback, got %s", cfg.Scheduler.Location())
	}
}
