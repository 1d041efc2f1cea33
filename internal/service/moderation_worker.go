package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/repository"
	"github.com/replate/replate-backend/internal/storage"
	"github.com/replate/replate-backend/internal/vision"
)

// ModerationWorker runs the asynchronous classification pipeline: a bounded
// job queue drained by a fixed pool of workers. A lost or dropped job leaves
// the announcement in PENDING_REVIEW, which a human reviewer can always
// resolve, so no job is ever retried.
type ModerationWorker struct {
	announcements repository.AnnouncementRepository
	store         storage.Gateway
	classifier    vision.Classifier
	threshold     float64
	jobTimeout    time.Duration

	jobs    chan ClassifyJob
	workers int
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewModerationWorker returns a worker pool of the given size over a bounded
// queue. Jobs offered to a full queue are dropped.
func NewModerationWorker(
	announcements repository.AnnouncementRepository,
	store storage.Gateway,
	classifier vision.Classifier,
	threshold float64,
	workers, queueSize int,
	jobTimeout time.Duration,
) *ModerationWorker {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ModerationWorker{
		announcements: announcements,
		store:         store,
		classifier:    classifier,
		threshold:     threshold,
		jobTimeout:    jobTimeout,
		jobs:          make(chan ClassifyJob, queueSize),
		workers:       workers,
	}
}

// Start launches the worker goroutines. It is safe to call once; the pool
// drains until Shutdown closes the queue or ctx is cancelled.
func (w *ModerationWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.run(ctx)
		}
		slog.Info("moderation workers started",
			slog.Int("workers", w.workers), slog.Int("queue_size", cap(w.jobs)))
	})
}

// Enqueue offers a job to the queue without blocking. It returns false when
// the queue is full or already closed.
func (w *ModerationWorker) Enqueue(job ClassifyJob) (accepted bool) {
	defer func() {
		if recover() != nil {
			accepted = false
		}
	}()
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones to finish, or
// for ctx to expire.
func (w *ModerationWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.jobs) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ModerationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// process runs one classification pass. Between scheduling and this call the
// announcement may have been edited, re-moderated or deleted, so the current
// record is re-read first and the final write is conditional on the image key
// and status it was scheduled against.
func (w *ModerationWorker) process(ctx context.Context, job ClassifyJob) {
	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	a, err := w.announcements.GetByID(jobCtx, job.AnnouncementID)
	if err != nil {
		if models.IsNotFound(err) {
			slog.DebugContext(jobCtx, "announcement gone before classification",
				slog.Uint64("announcement_id", uint64(job.AnnouncementID)))
			return
		}
		slog.ErrorContext(jobCtx, "failed to load announcement for classification",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)), slog.String("error", err.Error()))
		return
	}
	if a.ImageKey != job.ImageKey {
		slog.DebugContext(jobCtx, "stale classification job, image replaced",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)))
		return
	}

	img, err := w.store.Load(storage.FolderAnnouncements, job.ImageKey)
	if err != nil {
		slog.WarnContext(jobCtx, "failed to load image for classification, leaving pending",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)), slog.String("error", err.Error()))
		return
	}

	score, err := w.classifier.AnalyzeImage(jobCtx, img)
	if err != nil {
		// Fail open to human review: the announcement stays PENDING_REVIEW
		// with a nil score and no retry.
		slog.WarnContext(jobCtx, "image classification failed, leaving pending",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)), slog.String("error", err.Error()))
		return
	}

	status := models.StatusPendingReview
	if score < w.threshold {
		status = models.StatusApproved
	}

	applied, err := w.announcements.ApplyClassification(jobCtx, job.AnnouncementID, job.ImageKey, status, score)
	if err != nil {
		slog.ErrorContext(jobCtx, "failed to persist classification",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)), slog.String("error", err.Error()))
		return
	}
	if !applied {
		slog.DebugContext(jobCtx, "classification result discarded, record changed",
			slog.Uint64("announcement_id", uint64(job.AnnouncementID)))
		return
	}

	slog.InfoContext(jobCtx, "announcement classified",
		slog.Uint64("announcement_id", uint64(job.AnnouncementID)),
		slog.Float64("score", score),
		slog.String("status", status))
}
