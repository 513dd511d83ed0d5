package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cognivers/pipeline/internal/config"
	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/platform/gemini"
	"github.com/cognivers/pipeline/internal/platform/postgres"
	"github.com/cognivers/pipeline/internal/sandbox"
	"github.com/cognivers/pipeline/internal/service"
	"github.com/cognivers/pipeline/internal/store"
	"github.com/cognivers/pipeline/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	resultStore    store.ResultStore
	processorStore store.ProcessorStore
	responseStore  store.ResponseStore
	taskStore      task.TaskStore

	// Services
	dispatchService *service.DispatchService
	executorService *service.ExecutorService

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.resultStore = postgres.NewPostgresResultStore(db, logger)
	app.processorStore = postgres.NewPostgresProcessorStore(db, logger)
	app.responseStore = postgres.NewPostgresResponseStore(db, logger)

	txRunner, err := store.NewSQLTxRunner(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction runner: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	generator, err := gemini.NewGeminiGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	logger.Info("Generation backend initialized", "model", cfg.LLM.ModelName)

	postSandbox := sandbox.NewExecSandbox(cfg.Sandbox, logger)

	app.dispatchService, err = service.NewDispatchService(
		txRunner,
		app.resultStore,
		app.processorStore,
		app.responseStore,
		app.eventEmitter,
		logger,
		cfg.Worker.QueueAllConcurrency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch service: %w", err)
	}

	app.executorService, err = service.NewExecutorService(
		app.resultStore,
		app.processorStore,
		app.responseStore,
		generator,
		postSandbox,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor service: %w", err)
	}

	// The factory turns both fresh events and recovered task rows back
	// into executable tasks, so the task store gets it too.
	taskFactory, err := task.NewTaskFactory(app.dispatchService, app.executorService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, taskFactory, logger)

	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:            cfg.Worker.Count,
		QueueSize:              cfg.Worker.QueueSize,
		StuckTaskAge:           cfg.Worker.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Worker.StuckCheckInterval,
	}, logger)

	eventHandler, err := task.NewTaskEventHandler(taskFactory, app.taskRunner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task event handler: %w", err)
	}

	if emitter, ok := app.eventEmitter.(*events.InMemoryEventEmitter); ok {
		emitter.RegisterHandler(eventHandler)
	} else {
		return nil, fmt.Errorf("unexpected event emitter type, cannot register task handler")
	}

	// Start only after the handler is registered so recovered tasks and
	// fresh events share one pipeline.
	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
