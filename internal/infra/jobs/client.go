package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// Client enqueues and withdraws scan tasks using Asynq.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
	timeout   time.Duration
	logger    *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Queue         string
	MaxRetry      int
	Timeout       time.Duration
}

// NewClient creates a new job client for enqueueing scan tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("job queue name is required")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     cfg.Queue,
		maxRetry:  cfg.MaxRetry,
		timeout:   cfg.Timeout,
		logger:    log.With("component", "job_client"),
	}, nil
}

// Close closes the client connections.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.inspector.Close()
}

// EnqueueScan enqueues a scan execution task. The task id is the scan
// id so the task can be withdrawn when the scan is deleted.
func (c *Client) EnqueueScan(ctx context.Context, payload ScanTaskPayload) error {
	task, err := NewScanExecuteTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(payload.ScanID),
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		c.logger.Error("failed to enqueue scan",
			"scan_id", payload.ScanID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("scan task queued",
		"task_id", info.ID,
		"scan_id", payload.ScanID,
		"queue", info.Queue,
	)
	return nil
}

// RemoveScan withdraws a scan task from the queue. A task that already
// ran (or never existed) is not an error; a task caught mid-run is told
// to stop and aborts once it notices its record is gone.
func (c *Client) RemoveScan(ctx context.Context, scanID shared.ID) error {
	id := scanID.String()

	err := c.inspector.DeleteTask(c.queue, id)
	switch {
	case err == nil:
		c.logger.Info("scan task removed", "scan_id", id)
		return nil
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return nil
	}

	// DeleteTask refuses tasks that are currently running. Cancel the
	// run instead; anything else is a real store failure.
	info, infoErr := c.inspector.GetTaskInfo(c.queue, id)
	if infoErr == nil && info.State == asynq.TaskStateActive {
		if cancelErr := c.inspector.CancelProcessing(id); cancelErr != nil {
			c.logger.Warn("failed to cancel running scan task",
				"scan_id", id,
				"error", cancelErr,
			)
		} else {
			c.logger.Info("running scan task cancelled", "scan_id", id)
		}
		return nil
	}

	return fmt.Errorf("failed to remove scan task: %w", err)
}
