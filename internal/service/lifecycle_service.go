package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

const (
	transitionSoftDelete = "soft_delete"
	transitionRestore    = "restore"
	transitionHardDelete = "hard_delete"

	defaultSweepBatch = 100
)

type lifecycleStore interface {
	Lookup(ctx context.Context, id string) (*models.LifecycleRecord, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	ClearDeleted(ctx context.Context, id string, at time.Time) error
	Remove(ctx context.Context, id string) error
	Purge(ctx context.Context, id string, cutoff time.Time) (*models.LifecycleRecord, error)
	ListPurgeable(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.LifecycleRecord, error)
}

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
	Owns(url string) bool
}

type sweepLease interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// LifecycleConfig tunes the retention sweep.
type LifecycleConfig struct {
	BatchSize     int
	SweepInterval time.Duration
}

// LifecycleService moves records between active, soft-deleted and purged.
type LifecycleService struct {
	documents lifecycleStore
	subjects  lifecycleStore
	blobs     blobDeleter
	lease     sweepLease
	feeds     *FeedCache
	audit     auditLogger
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       LifecycleConfig
	now       func() time.Time
}

// NewLifecycleService constructs the lifecycle manager. lease may be nil.
func NewLifecycleService(documents, subjects lifecycleStore, blobs blobDeleter, lease sweepLease, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg LifecycleConfig) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	return &LifecycleService{
		documents: documents,
		subjects:  subjects,
		blobs:     blobs,
		lease:     lease,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// UseFeedCache invalidates the cached listing a record belongs to after each
// transition.
func (s *LifecycleService) UseFeedCache(feeds *FeedCache) {
	s.feeds = feeds
}

// SoftDelete hides an active record and starts its retention window.
func (s *LifecycleService) SoftDelete(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) (*models.LifecycleRecord, error) {
	rec, store, err := s.load(ctx, target, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := store.MarkDeleted(ctx, id, at); err != nil {
		return nil, s.transitionError(err, target, "already deleted")
	}
	rec.Deleted = true
	rec.DeletedAt = &at

	s.metrics.RecordTransition(target.Kind, transitionSoftDelete)
	s.feeds.Invalidate(ctx, feedNamespace(target.Kind, rec.Type))
	s.record(ctx, principal, models.AuditActionSoftDelete, target, rec)
	s.logger.Info("record soft-deleted", zap.String("kind", string(target.Kind)), zap.String("id", id))
	return rec, nil
}

// Restore brings a soft-deleted record back to active.
func (s *LifecycleService) Restore(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) (*models.LifecycleRecord, error) {
	rec, store, err := s.load(ctx, target, id)
	if err != nil {
		return nil, err
	}
	if err := store.ClearDeleted(ctx, id, s.now().UTC()); err != nil {
		return nil, s.transitionError(err, target, "is not deleted")
	}
	rec.Deleted = false
	rec.DeletedAt = nil

	s.metrics.RecordTransition(target.Kind, transitionRestore)
	s.feeds.Invalidate(ctx, feedNamespace(target.Kind, rec.Type))
	s.record(ctx, principal, models.AuditActionRestore, target, rec)
	s.logger.Info("record restored", zap.String("kind", string(target.Kind)), zap.String("id", id))
	return rec, nil
}

// HardDelete removes a record immediately, whatever its state. The blob is
// deleted first; a blob failure is logged and does not keep the record.
func (s *LifecycleService) HardDelete(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) error {
	rec, store, err := s.load(ctx, target, id)
	if err != nil {
		return err
	}
	s.deleteBlob(ctx, rec, transitionHardDelete)
	if err := store.Remove(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(target)
		}
		return internal(err, "failed to delete record")
	}

	s.metrics.RecordTransition(target.Kind, transitionHardDelete)
	s.feeds.Invalidate(ctx, feedNamespace(target.Kind, rec.Type))
	s.record(ctx, principal, models.AuditActionHardDelete, target, rec)
	s.logger.Info("record hard-deleted", zap.String("kind", string(target.Kind)), zap.String("id", id))
	return nil
}

// State reports the lifecycle state of a record. A record that no longer
// exists is reported as purged.
func (s *LifecycleService) State(ctx context.Context, target models.LifecycleTarget, id string) (models.LifecycleState, error) {
	rec, _, err := s.load(ctx, target, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return models.StatePurged, nil
		}
		return "", err
	}
	return rec.State(), nil
}

// Sweep permanently removes every record soft-deleted at or before
// now - RetentionWindow. Per-record failures are logged and skipped; the
// returned error reports collections that could not be scanned.
func (s *LifecycleService) Sweep(ctx context.Context) (*models.PurgeReport, error) {
	report := &models.PurgeReport{StartedAt: s.now().UTC()}

	if s.lease != nil {
		release, acquired, err := s.lease.TryAcquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn("sweep lease unavailable, continuing without it", zap.Error(err))
		case !acquired:
			report.Skipped = true
			report.FinishedAt = s.now().UTC()
			s.logger.Info("sweep skipped, another sweep holds the lease")
			return report, nil
		default:
			defer release()
		}
	}

	report.Cutoff = report.StartedAt.Add(-models.RetentionWindow)

	var scanErrs []error
	collections := []struct {
		name  string
		store lifecycleStore
	}{
		{name: "documents", store: s.documents},
		{name: "subjects", store: s.subjects},
	}
	for _, col := range collections {
		if err := s.sweepCollection(ctx, col.name, col.store, report); err != nil {
			if ctx.Err() != nil {
				report.FinishedAt = s.now().UTC()
				return report, ctx.Err()
			}
			scanErrs = append(scanErrs, err)
		}
	}

	report.FinishedAt = s.now().UTC()
	s.metrics.ObserveSweep(report)
	recordAudit(ctx, s.audit, s.logger, "lifecycle-sweep", nil, &models.AuditLog{
		Action:    models.AuditActionPurge,
		Resource:  "lifecycle",
		NewValues: jsonString(report),
	})
	s.logger.Info("sweep finished",
		zap.Time("cutoff", report.Cutoff),
		zap.Int("scanned", report.Scanned),
		zap.Int("purged", report.Purged),
		zap.Int("blobs_deleted", report.BlobsDeleted),
		zap.Int("blob_failures", report.BlobFailures),
		zap.Int("missing", report.Missing),
		zap.Int("failures", report.Failures),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	if len(scanErrs) > 0 {
		return report, errors.Join(scanErrs...)
	}
	return report, nil
}

func (s *LifecycleService) sweepCollection(ctx context.Context, name string, store lifecycleStore, report *models.PurgeReport) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := store.ListPurgeable(ctx, report.Cutoff, after, s.cfg.BatchSize)
		if err != nil {
			s.logger.Error("failed to list purgeable records", zap.String("collection", name), zap.Error(err))
			return fmt.Errorf("scan %s: %w", name, err)
		}
		for i := range batch {
			report.Scanned++
			s.purgeOne(ctx, name, store, &batch[i], report)
		}
		if len(batch) < s.cfg.BatchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

// purgeOne removes the row first so a record restored after it was listed
// keeps its blob.
func (s *LifecycleService) purgeOne(ctx context.Context, collection string, store lifecycleStore, candidate *models.LifecycleRecord, report *models.PurgeReport) {
	removed, err := store.Purge(ctx, candidate.ID, report.Cutoff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			report.Missing++
			s.logger.Debug("purge candidate vanished or was restored", zap.String("collection", collection), zap.String("id", candidate.ID))
			return
		}
		report.Failures++
		s.logger.Warn("failed to purge record", zap.String("collection", collection), zap.String("id", candidate.ID), zap.Error(err))
		return
	}

	deleted, failed := s.deleteBlob(ctx, removed, "purge")
	if deleted {
		report.BlobsDeleted++
	}
	if failed {
		report.BlobFailures++
	}
	report.Purged++
	s.metrics.RecordPurge(collection)
	s.logger.Info("record purged",
		zap.String("collection", collection),
		zap.String("id", removed.ID),
		zap.String("title", removed.Title),
		zap.Bool("blob_deleted", deleted))
}

// deleteBlob best-effort deletes the blob referenced by rec. Blobs that were
// not issued by the gateway, such as external links, are left alone.
func (s *LifecycleService) deleteBlob(ctx context.Context, rec *models.LifecycleRecord, source string) (deleted, failed bool) {
	if rec == nil || rec.BlobURL == nil || *rec.BlobURL == "" || s.blobs == nil {
		return false, false
	}
	url := *rec.BlobURL
	if !s.blobs.Owns(url) {
		s.logger.Debug("blob not owned by gateway, skipping", zap.String("id", rec.ID), zap.String("url", url))
		return false, false
	}
	key, err := storage.DeriveKey(url)
	if err != nil {
		s.metrics.RecordBlobFailure(source)
		s.logger.Warn("cannot derive blob key", zap.String("id", rec.ID), zap.String("url", url), zap.Error(err))
		return false, true
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("blob already gone", zap.String("id", rec.ID), zap.String("key", key))
			return false, false
		}
		s.metrics.RecordBlobFailure(source)
		s.logger.Warn("failed to delete blob", zap.String("id", rec.ID), zap.String("key", key), zap.Error(err))
		return false, true
	}
	return true, false
}

// StartScheduler runs Sweep every SweepInterval until ctx is cancelled. A
// non-positive interval disables the in-process scheduler.
func (s *LifecycleService) StartScheduler(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("scheduled sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *LifecycleService) storeFor(kind models.DocumentKind) lifecycleStore {
	if kind == models.KindSubject {
		return s.subjects
	}
	return s.documents
}

func (s *LifecycleService) load(ctx context.Context, target models.LifecycleTarget, id string) (*models.LifecycleRecord, lifecycleStore, error) {
	if !isRecordID(id) {
		return nil, nil, notFound(target)
	}
	store := s.storeFor(target.Kind)
	rec, err := store.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, notFound(target)
		}
		return nil, nil, internal(err, "failed to load record")
	}
	if !target.Matches(rec.Type) {
		return nil, nil, notFound(target)
	}
	return rec, store, nil
}

func (s *LifecycleService) transitionError(err error, target models.LifecycleTarget, conflictMsg string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return notFound(target)
	case errors.Is(err, repository.ErrStateConflict):
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %s", targetNoun(target), conflictMsg))
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "an active subject with the same details already exists")
	default:
		return internal(err, "failed to update record")
	}
}

func (s *LifecycleService) record(ctx context.Context, principal *models.Principal, action string, target models.LifecycleTarget, rec *models.LifecycleRecord) {
	recordAudit(ctx, s.audit, s.logger, "lifecycle-service", principal, &models.AuditLog{
		Action:     action,
		Resource:   string(target.Kind),
		ResourceID: strPtr(rec.ID),
		NewValues:  jsonString(map[string]interface{}{"title": rec.Title, "deleted": rec.Deleted}),
	})
}

func notFound(target models.LifecycleTarget) error {
	return appErrors.Clone(appErrors.ErrNotFound, targetNoun(target)+" not found")
}

func targetNoun(target models.LifecycleTarget) string {
	switch target.Kind {
	case models.KindSubject:
		return "Subject"
	case models.KindNotification:
		return "Notification"
	default:
		return "Document"
	}
}
