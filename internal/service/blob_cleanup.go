package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/pkg/jobs"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

// JobTypeBlobCleanup identifies queued blob deletions.
const JobTypeBlobCleanup = "blob_cleanup"

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

// BlobCleaner deletes blobs left behind by bulk record deletions.
type BlobCleaner struct {
	blobs   blobDeleter
	queue   cleanupQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewBlobCleaner constructs the cleaner. Attach a queue with UseQueue once it
// has been built around Handle.
func NewBlobCleaner(blobs blobDeleter, metrics *MetricsService, logger *zap.Logger) *BlobCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobCleaner{blobs: blobs, metrics: metrics, logger: logger}
}

// UseQueue routes Schedule through q instead of deleting inline.
func (c *BlobCleaner) UseQueue(q cleanupQueue) {
	c.queue = q
}

// Schedule enqueues deletion of each owned blob URL, falling back to an
// inline delete when the queue is unavailable.
func (c *BlobCleaner) Schedule(ctx context.Context, urls []string) {
	if c == nil {
		return
	}
	for _, url := range urls {
		if url == "" || !c.blobs.Owns(url) {
			continue
		}
		if c.queue != nil {
			err := c.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeBlobCleanup, Payload: url})
			if err == nil {
				continue
			}
			c.logger.Warn("blob cleanup queue unavailable, deleting inline", zap.String("url", url), zap.Error(err))
		}
		if err := c.Delete(ctx, url); err != nil {
			c.metrics.RecordBlobFailure("bulk_delete")
			c.logger.Warn("failed to delete blob", zap.String("url", url), zap.Error(err))
		}
	}
}

// Handle is the jobs.Handler for JobTypeBlobCleanup.
func (c *BlobCleaner) Handle(ctx context.Context, job jobs.Job) error {
	url, ok := job.Payload.(string)
	if !ok {
		c.logger.Error("unexpected blob cleanup payload", zap.String("job_id", job.ID), zap.Any("payload", job.Payload))
		return nil
	}
	err := c.Delete(ctx, url)
	if err != nil {
		c.metrics.RecordBlobFailure("cleanup_queue")
	}
	return err
}

// Abandon is the jobs.GiveUpFunc for the cleanup queue. The blob is left
// orphaned in the store and only the metric and log record it.
func (c *BlobCleaner) Abandon(job jobs.Job, err error) {
	c.metrics.RecordBlobFailure("cleanup_abandoned")
	c.logger.Error("blob cleanup abandoned", zap.String("job_id", job.ID), zap.Any("url", job.Payload), zap.Int("attempts", job.Attempt), zap.Error(err))
}

// Delete removes the blob behind url. A blob that is already gone, or a URL
// with no derivable key, is not an error worth retrying.
func (c *BlobCleaner) Delete(ctx context.Context, url string) error {
	key, err := storage.DeriveKey(url)
	if err != nil {
		c.logger.Warn("cannot derive blob key", zap.String("url", url), zap.Error(err))
		return nil
	}
	if err := c.blobs.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	c.logger.Debug("blob deleted", zap.String("key", key))
	return nil
}
