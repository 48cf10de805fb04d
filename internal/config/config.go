package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv      = "FEEDBACK_LOOP_CONFIG"
	modeEnv            = "FEEDBACK_LOOP_MODE"
	sheetNameEnv       = "GOOGLE_SHEET_NAME"
	spreadsheetIDEnv   = "GOOGLE_SPREADSHEET_ID"
	credentialsJSONEnv = "GOOGLE_CREDENTIALS_JSON"
	llmAPIKeyEnv       = "LLM_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	llmEndpointEnv     = "LLM_ENDPOINT"
	llmSiteURLEnv      = "LLM_SITE_URL"
	llmSiteNameEnv     = "LLM_SITE_NAME"
	reportDirEnv       = "REPORT_DIR"
	serverPortEnv      = "PORT"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
)

// Run modes selectable via config or FEEDBACK_LOOP_MODE.
const (
	ModeRun      = "run"
	ModeSchedule = "schedule"
	ModeServe    = "serve"
)

// Config holds high-level settings required across the application.
type Config struct {
	Mode          string             `yaml:"mode"`
	Sheet         SheetConfig        `yaml:"sheet"`
	Schema        SchemaConfig       `yaml:"schema"`
	LLM           LLMConfig          `yaml:"llm"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Report        ReportConfig       `yaml:"report"`
	Server        ServerConfig       `yaml:"server"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// NotificationConfig encapsulates outbound operator channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires the run-summary chat notifications.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SheetConfig describes how to reach the Google Sheets store.
type SheetConfig struct {
	// SpreadsheetID addresses the document; WorksheetName selects the tab,
	// falling back to the first tab when empty or unknown.
	SpreadsheetID   string `yaml:"spreadsheetId"`
	WorksheetName   string `yaml:"worksheetName"`
	CredentialsJSON string `yaml:"credentialsJson"`
}

// SchemaConfig pins the column layout of one deployment. All indices are
// 1-based sheet columns. Deployments differ in width (6, 9 or 10 columns) and
// in which field triggers evaluation, so none of this is hard-coded.
type SchemaConfig struct {
	IdentifyingColumn int `yaml:"identifyingColumn"`
	TriggerColumn     int `yaml:"triggerColumn"`
	JudgmentColumn    int `yaml:"judgmentColumn"`
	MarkerColumn      int `yaml:"markerColumn"`
	TimestampColumn   int `yaml:"timestampColumn"`
	MinWidth          int `yaml:"minWidth"`
}

// LLMConfig defines how to contact the completion service.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	// SiteURL and SiteName fill the optional attribution headers some
	// completion gateways use for request accounting.
	SiteURL  string `yaml:"siteUrl"`
	SiteName string `yaml:"siteName"`
	// PromptTemplate overrides the built-in judgment prompt when set.
	PromptTemplate string `yaml:"promptTemplate"`
}

// SchedulerConfig defines when schedule mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ReportConfig controls where evaluation reports land.
type ReportConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the webhook receiver in serve mode.
type ServerConfig struct {
	Port string `yaml:"port"`
	// ImpactField names the Jira custom field carrying measured impact.
	ImpactField string `yaml:"impactField"`
}

// LoggingConfig selects the console log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(modeEnv); v != "" {
		c.Mode = v
	}

	if v := os.Getenv(sheetNameEnv); v != "" {
		c.Sheet.WorksheetName = v
	}
	if v := os.Getenv(spreadsheetIDEnv); v != "" {
		c.Sheet.SpreadsheetID = v
	}
	if v := os.Getenv(credentialsJSONEnv); v != "" {
		c.Sheet.CredentialsJSON = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv(llmSiteURLEnv); v != "" {
		c.LLM.SiteURL = v
	}
	if v := os.Getenv(llmSiteNameEnv); v != "" {
		c.LLM.SiteName = v
	}

	if v := os.Getenv(reportDirEnv); v != "" {
		c.Report.Dir = v
	}
	if v := os.Getenv(serverPortEnv); v != "" {
		c.Server.Port = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Mode != "" {
		base.Mode = override.Mode
	}

	if override.Sheet.SpreadsheetID != "" {
		base.Sheet.SpreadsheetID = override.Sheet.SpreadsheetID
	}
	if override.Sheet.WorksheetName != "" {
		base.Sheet.WorksheetName = override.Sheet.WorksheetName
	}
	if override.Sheet.CredentialsJSON != "" {
		base.Sheet.CredentialsJSON = override.Sheet.CredentialsJSON
	}

	// Schema overrides are all-or-nothing: a partially specified layout is
	// more dangerous than a default one.
	if override.Schema.IdentifyingColumn != 0 {
		base.Schema = override.Schema
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SiteURL != "" {
		base.LLM.SiteURL = override.LLM.SiteURL
	}
	if override.LLM.SiteName != "" {
		base.LLM.SiteName = override.LLM.SiteName
	}
	if override.LLM.PromptTemplate != "" {
		base.LLM.PromptTemplate = override.LLM.PromptTemplate
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Report.Dir != "" {
		base.Report.Dir = override.Report.Dir
	}

	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}
	if override.Server.ImpactField != "" {
		base.Server.ImpactField = override.Server.ImpactField
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Mode: ModeRun,
		Sheet: SheetConfig{
			WorksheetName: "Feedback",
		},
		// Ten-column layout: jira_id, summary, priority, justification,
		// feature_impact, releasedate, feedback, evaluation, status, timestamp.
		Schema: SchemaConfig{
			IdentifyingColumn: 1,
			TriggerColumn:     7,
			JudgmentColumn:    8,
			MarkerColumn:      9,
			TimestampColumn:   10,
			MinWidth:          10,
		},
		LLM: LLMConfig{
			Endpoint: "https://openrouter.ai/api/v1/chat/completions",
			Model:    "google/gemini-2.0-flash-001",
		},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Report:    ReportConfig{Dir: "reports"},
		Server:    ServerConfig{Port: "5000", ImpactField: "customfield_10045"},
		Logging:   LoggingConfig{Level: "info"},
	}
}
