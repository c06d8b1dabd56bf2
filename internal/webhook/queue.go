package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickrr/pickrr/internal/request"
)

const (
	maxAttempts  = 3
	baseDelay    = 5 * time.Second
	pollInterval = 5 * time.Second
)

// Queue is the at-least-once fallback for webhook jobs whose fast path
// failed. Jobs live in SQLite so they survive restarts.
type Queue struct {
	db  *sql.DB
	log *slog.Logger
}

// NewQueue creates a Queue.
func NewQueue(db *sql.DB, log *slog.Logger) *Queue {
	return &Queue{db: db, log: log.With("component", "webhook-queue")}
}

// Enqueue stores a job for retry, first attempt after the base delay.
func (q *Queue) Enqueue(job Job) error {
	now := time.Now().UTC()
	_, err := q.db.Exec(`
		INSERT INTO webhook_jobs (upstream_id, catalog_id, media_kind, title, requested_by, attempts, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		job.UpstreamID, job.CatalogID, string(job.MediaKind), job.Title, job.RequestedBy,
		now.Add(baseDelay), now)
	if err != nil {
		return fmt.Errorf("enqueue webhook job: %w", err)
	}
	return nil
}

type queuedJob struct {
	id       int64
	attempts int
	job      Job
}

func (q *Queue) due(now time.Time) ([]queuedJob, error) {
	rows, err := q.db.Query(`
		SELECT id, upstream_id, catalog_id, media_kind, title, requested_by, attempts
		FROM webhook_jobs
		WHERE next_attempt_at <= ?
		ORDER BY next_attempt_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []queuedJob
	for rows.Next() {
		var qj queuedJob
		var kind string
		if err := rows.Scan(&qj.id, &qj.job.UpstreamID, &qj.job.CatalogID, &kind,
			&qj.job.Title, &qj.job.RequestedBy, &qj.attempts); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		qj.job.MediaKind = request.MediaKind(kind)
		jobs = append(jobs, qj)
	}
	return jobs, rows.Err()
}

func (q *Queue) remove(id int64) error {
	_, err := q.db.Exec(`DELETE FROM webhook_jobs WHERE id = ?`, id)
	return err
}

func (q *Queue) reschedule(id int64, attempts int, now time.Time) error {
	delay := baseDelay << attempts
	_, err := q.db.Exec(`
		UPDATE webhook_jobs SET attempts = ?, next_attempt_at = ? WHERE id = ?`,
		attempts, now.Add(delay), id)
	return err
}

// Pending returns the number of jobs waiting for retry.
func (q *Queue) Pending() (int, error) {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM webhook_jobs`).Scan(&n)
	return n, err
}

// Worker drains the queue in the background.
type Worker struct {
	queue    *Queue
	ingester *Ingester
	log      *slog.Logger
	interval time.Duration
}

// NewWorker creates a Worker.
func NewWorker(queue *Queue, ingester *Ingester, log *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		ingester: ingester,
		log:      log.With("component", "webhook-queue"),
		interval: pollInterval,
	}
}

// Run polls for due jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.ProcessDue(ctx)
		}
	}
}

// ProcessDue runs one pass over due jobs. Retries use exponential backoff;
// a job that exhausts its attempts is dropped with a log line, never
// resurfaced to any caller.
func (w *Worker) ProcessDue(ctx context.Context) {
	now := time.Now().UTC()
	jobs, err := w.queue.due(now)
	if err != nil {
		w.log.Error("poll queue", "error", err)
		return
	}

	for _, qj := range jobs {
		err := w.ingester.Ingest(ctx, qj.job)
		if err == nil {
			if rerr := w.queue.remove(qj.id); rerr != nil {
				w.log.Error("remove completed job", "id", qj.id, "error", rerr)
			}
			continue
		}

		attempts := qj.attempts + 1
		if attempts >= maxAttempts {
			w.log.Error("dropping webhook job after retries",
				"upstream_id", qj.job.UpstreamID, "attempts", attempts, "error", err)
			if rerr := w.queue.remove(qj.id); rerr != nil {
				w.log.Error("remove exhausted job", "id", qj.id, "error", rerr)
			}
			continue
		}

		w.log.Warn("webhook job failed, rescheduling",
			"upstream_id", qj.job.UpstreamID, "attempt", attempts, "error", err)
		if rerr := w.queue.reschedule(qj.id, attempts, now); rerr != nil {
			w.log.Error("reschedule job", "id", qj.id, "error", rerr)
		}
	}
}
