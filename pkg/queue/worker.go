package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spark/pkg/logger"
	"spark/pkg/payment/types"
)

// Sender delivers one receipt
type Sender interface {
	Send(ctx context.Context, r *types.Receipt) error
}

// WorkerConfig tunes a Worker
type WorkerConfig struct {
	WorkerCount     int           // concurrent workers
	MaxRetries      int           // extra attempts after the first failure
	RetryInterval   time.Duration // pause between attempts
	PopTimeout      time.Duration // how long one BRPOP blocks
	SendTimeout     time.Duration // bound on one Send
	ShutdownTimeout time.Duration
}

// Worker drains the receipt queue
type Worker struct {
	queue    *QueueService
	sender   Sender
	stopChan chan struct{}
	wg       sync.WaitGroup
	config   WorkerConfig
}

// NewWorker creates a worker group; zero config fields take defaults
func NewWorker(q *QueueService, sender Sender, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = 5 * time.Second
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 20 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	return &Worker{
		queue:    q,
		sender:   sender,
		stopChan: make(chan struct{}),
		config:   config,
	}
}

// Start launches the workers
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

func (w *Worker) startWorker(id int) {
	defer w.wg.Done()

	logger.InfoString("Worker", "Start", fmt.Sprintf("worker %d started", id))

	for {
		select {
		case <-w.stopChan:
			logger.InfoString("Worker", "Stop", fmt.Sprintf("worker %d stopping", id))
			return
		default:
		}

		if _, err := w.ProcessNext(context.Background()); err != nil {
			logger.ErrorString("Worker", "Error", fmt.Sprintf("worker %d: %v", id, err))
			w.pause(time.Second)
		}
	}
}

// ProcessNext pops and delivers at most one job. It reports whether a job was handled.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Pop(ctx, w.config.PopTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	defer func() {
		w.queue.metrics.RecordProcessingTime(time.Since(start))
	}()

	if err := w.queue.UpdateStatus(ctx, job.ID, JobRunning); err != nil {
		logger.WarnString("Worker", "UpdateStatus", err.Error())
	}

	if err := w.deliver(ctx, job); err != nil {
		w.queue.metrics.RecordError(OpProcess)
		logger.ErrorString("Worker", "Receipt", fmt.Sprintf("job %s to %s failed after %d attempts: %v",
			job.ID, job.Receipt.Email, job.Attempts, err))
		if err := w.queue.UpdateStatus(ctx, job.ID, JobFailed); err != nil {
			logger.WarnString("Worker", "UpdateStatus", err.Error())
		}
		return true, nil
	}

	w.queue.metrics.RecordSuccess(OpProcess)
	if err := w.queue.UpdateStatus(ctx, job.ID, JobCompleted); err != nil {
		logger.WarnString("Worker", "UpdateStatus", err.Error())
	}
	return true, nil
}

// deliver tries the sender up to 1+MaxRetries times
func (w *Worker) deliver(ctx context.Context, job *ReceiptJob) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 && !w.pause(w.config.RetryInterval) {
			return fmt.Errorf("stopped before retry: %w", lastErr)
		}

		job.Attempts++
		sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
		lastErr = w.sender.Send(sendCtx, &job.Receipt)
		cancel()
		if lastErr == nil {
			return nil
		}
		logger.WarnString("Worker", "Retry", fmt.Sprintf("job %s attempt %d: %v", job.ID, job.Attempts, lastErr))
	}
	return lastErr
}

// pause sleeps for d and reports false if the worker was stopped meanwhile
func (w *Worker) pause(d time.Duration) bool {
	select {
	case <-w.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

// Stop signals the workers and waits for in-flight jobs
func (w *Worker) Stop() {
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Worker", "Stop", "all workers stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Worker", "Stop", "worker shutdown timed out")
	}
}
