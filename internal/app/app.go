package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/evaluator"
	"FeedbackLoop/internal/infrastructure/llm"
	"FeedbackLoop/internal/infrastructure/scheduler"
	"FeedbackLoop/internal/infrastructure/sheets"
	"FeedbackLoop/internal/infrastructure/telegram"
	"FeedbackLoop/internal/infrastructure/webhook"
	"FeedbackLoop/internal/logging"
	"FeedbackLoop/internal/ports"
	"FeedbackLoop/internal/report"
	"FeedbackLoop/internal/selector"
	"FeedbackLoop/internal/usecase"
	"FeedbackLoop/internal/writeback"
)

// Application wires configuration to the run modes.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.TabularStore
	pipeline *usecase.Pipeline
}

// New authenticates against the store and builds the pipeline. Credential
// failures surface here, before any row is touched.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := sheets.New(ctx, cfg.Sheet, baseLogger.With("component", "sheets"))
	if err != nil {
		return nil, fmt.Errorf("store access: %w", err)
	}

	var completer ports.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(cfg.LLM)
	} else {
		baseLogger.Warn("LLM_API_KEY not set, judgments will record the misconfiguration")
	}

	ev, err := evaluator.New(completer, cfg.LLM.PromptTemplate, baseLogger.With("component", "evaluator"))
	if err != nil {
		return nil, fmt.Errorf("build evaluator: %w", err)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.New(cfg.Notifications.Telegram)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:       store,
		Selector:    selector.New(cfg.Schema, baseLogger.With("component", "selector")),
		Judge:       ev,
		WriteBack:   writeback.New(store, cfg.Schema, baseLogger.With("component", "writeback")),
		Synthesizer: ev,
		Reporter:    report.New(cfg.Report.Dir, baseLogger.With("component", "report")),
		Notifier:    notifier,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, logger: baseLogger, store: store, pipeline: pipeline}, nil
}

// Run dispatches on the configured mode: a single batch, the cron schedule,
// or the webhook receiver.
func (a *Application) Run(ctx context.Context) error {
	switch a.cfg.Mode {
	case config.ModeServe:
		return a.serve(ctx)
	case config.ModeSchedule:
		return a.schedule(ctx)
	case config.ModeRun, "":
		now := time.Now().In(a.cfg.Scheduler.Location())
		_, err := a.pipeline.Run(ctx, now)
		return err
	default:
		return fmt.Errorf("unknown mode %q", a.cfg.Mode)
	}
}

func (a *Application) schedule(ctx context.Context) error {
	driver := scheduler.New(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"),
	)
	sched := usecase.NewScheduler(driver, a.pipeline)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func (a *Application) serve(ctx context.Context) error {
	receiver := webhook.New(
		a.store,
		a.cfg.Schema,
		a.cfg.Server.ImpactField,
		a.logger.With("component", "webhook"),
	)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           receiver.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("webhook server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
