package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker that processes one task at a time so two scans
// never overlap in a process.
func NewWorker(redisOpt asynq.RedisConnOpt, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      map[string]int{QueueDefault: 1},
		Concurrency: 1,
		LogLevel:    asynq.WarnLevel,
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start begins processing in the background.
func (w *worker) Start() error {
	w.log.InfoContext(context.Background(), "jobs worker: starting processing loop")
	return w.server.Start(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *worker) Shutdown() {
	w.log.InfoContext(context.Background(), "jobs worker: shutting down")
	w.server.Shutdown()
}
