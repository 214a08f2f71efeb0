package bootstrap

import (
	"time"

	"spark/pkg/config"
	"spark/pkg/logger"
	"spark/pkg/queue"
	"spark/pkg/receipt"
	"spark/pkg/redis"
)

// SetupQueue starts the receipt workers. It returns nils when receipts are
// delivered directly instead.
func SetupQueue() (*queue.QueueService, *queue.Worker) {
	if !config.GetBool("queue.enabled") {
		logger.InfoString("Queue", "Setup", "receipt queue disabled")
		return nil, nil
	}
	if !redis.Enabled() {
		logger.WarnString("Queue", "Setup", "receipt queue enabled but redis is not configured, delivering directly")
		return nil, nil
	}

	queueService := queue.NewQueueServiceFromConfig()

	// workers post to the internal receipt endpoint synchronously so failures can be retried
	sender := receipt.NewHTTPNotifier(
		config.GetString("receipt.url"),
		config.GetString("receipt.internal_secret"),
		time.Duration(config.GetInt("receipt.timeout", 15))*time.Second,
		false,
	)

	worker := queue.NewWorker(queueService, sender, queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 4),
		MaxRetries:      config.GetInt("queue.retry_times", 3),
		RetryInterval:   time.Duration(config.GetInt("queue.retry_delay", 2)) * time.Second,
		ShutdownTimeout: 30 * time.Second,
	})
	worker.Start()

	logger.InfoString("Queue", "Setup", "receipt workers started")
	return queueService, worker
}
