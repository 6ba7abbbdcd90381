package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

type lifecycleStoreStub struct {
	mu       sync.Mutex
	records  map[string]*models.LifecycleRecord
	listErr  error
	purgeErr error
}

func newLifecycleStoreStub(records ...models.LifecycleRecord) *lifecycleStoreStub {
	s := &lifecycleStoreStub{records: map[string]*models.LifecycleRecord{}}
	for i := range records {
		rec := records[i]
		s.records[rec.ID] = &rec
	}
	return s
}

func (s *lifecycleStoreStub) Lookup(ctx context.Context, id string) (*models.LifecycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (s *lifecycleStoreStub) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	if rec.Deleted {
		return repository.ErrStateConflict
	}
	rec.Deleted = true
	rec.DeletedAt = &at
	return nil
}

func (s *lifecycleStoreStub) ClearDeleted(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !rec.Deleted {
		return repository.ErrStateConflict
	}
	rec.Deleted = false
	rec.DeletedAt = nil
	return nil
}

func (s *lifecycleStoreStub) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.records, id)
	return nil
}

func (s *lifecycleStoreStub) Purge(ctx context.Context, id string, cutoff time.Time) (*models.LifecycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purgeErr != nil {
		return nil, s.purgeErr
	}
	rec, ok := s.records[id]
	if !ok || !rec.Deleted || rec.DeletedAt == nil || rec.DeletedAt.After(cutoff) {
		return nil, sql.ErrNoRows
	}
	delete(s.records, id)
	return rec, nil
}

func (s *lifecycleStoreStub) ListPurgeable(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.LifecycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.LifecycleRecord, 0)
	for _, rec := range s.records {
		if rec.Deleted && rec.DeletedAt != nil && !rec.DeletedAt.After(cutoff) && rec.ID > afterID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *lifecycleStoreStub) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

type blobStub struct {
	mu      sync.Mutex
	deleted []string
	err     error
	foreign bool
}

func (b *blobStub) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *blobStub) Owns(url string) bool {
	return !b.foreign
}

type leaseStub struct {
	acquired bool
	err      error
	released int
}

func (l *leaseStub) TryAcquire(ctx context.Context) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

var (
	fileTarget    = models.LifecycleTarget{Kind: models.KindSubjectFile}
	examTarget    = models.LifecycleTarget{Kind: models.KindNotification, Category: models.DocumentTypeExamination}
	subjectTarget = models.LifecycleTarget{Kind: models.KindSubject}
	testAdmin     = &models.Principal{AccountID: "admin-1", Role: models.RoleAdmin}
)

const (
	docID        = "0b6a3f5e-8f7d-4c1e-9a52-3c1d2e4f5a01"
	noticeID     = "0b6a3f5e-8f7d-4c1e-9a52-3c1d2e4f5a02"
	subjectID    = "0b6a3f5e-8f7d-4c1e-9a52-3c1d2e4f5a03"
	deletedDocID = "0b6a3f5e-8f7d-4c1e-9a52-3c1d2e4f5a04"
	ghostID      = "0b6a3f5e-8f7d-4c1e-9a52-3c1d2e4f5a05"
)

func blobURL(key string) *string {
	url := "https://res.cloudinary.com/demo/raw/upload/v1700000000/" + key + ".pdf"
	return &url
}

func deletedAt(t time.Time) *time.Time {
	return &t
}

func newLifecycleFixture(docs, subjects *lifecycleStoreStub, blobs *blobStub, lease sweepLease) *LifecycleService {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewLifecycleService(docs, subjects, blobs, lease, &auditStub{}, nil, nil, LifecycleConfig{BatchSize: 2})
	svc.now = func() time.Time { return now }
	return svc
}

func TestLifecycleSoftDeleteAndRestoreRoundTrip(t *testing.T) {
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: docID, Type: models.DocumentTypeSubject, Title: "Algebra", BlobURL: blobURL("eduportal_files/alg")})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, nil)
	ctx := context.Background()

	rec, err := svc.SoftDelete(ctx, fileTarget, docID, testAdmin)
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
	require.NotNil(t, rec.DeletedAt)

	state, err := svc.State(ctx, fileTarget, docID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSoftDeleted, state)

	_, err = svc.SoftDelete(ctx, fileTarget, docID, testAdmin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	rec, err = svc.Restore(ctx, fileTarget, docID, testAdmin)
	require.NoError(t, err)
	assert.False(t, rec.Deleted)
	assert.Nil(t, rec.DeletedAt)

	_, err = svc.Restore(ctx, fileTarget, docID, testAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	state, err = svc.State(ctx, fileTarget, docID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, state)
}

func TestLifecycleRejectsWrongKind(t *testing.T) {
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: noticeID, Type: models.DocumentTypeCirculars, Title: "Holiday"})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, nil)

	_, err := svc.SoftDelete(context.Background(), examTarget, noticeID, testAdmin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SoftDelete(context.Background(), fileTarget, noticeID, testAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SoftDelete(context.Background(), models.LifecycleTarget{Kind: models.KindNotification, Category: models.DocumentTypeCirculars}, noticeID, testAdmin)
	assert.NoError(t, err)
}

func TestLifecycleMissingRecordIsNotFoundAndPurged(t *testing.T) {
	svc := newLifecycleFixture(newLifecycleStoreStub(), newLifecycleStoreStub(), &blobStub{}, nil)

	_, err := svc.Restore(context.Background(), subjectTarget, ghostID, testAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	state, err := svc.State(context.Background(), subjectTarget, ghostID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePurged, state)
}

func TestLifecycleHardDeleteRemovesBlobThenRecord(t *testing.T) {
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: docID, Type: models.DocumentTypeSubject, BlobURL: blobURL("eduportal_files/abc")})
	blobs := &blobStub{}
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), blobs, nil)

	require.NoError(t, svc.HardDelete(context.Background(), fileTarget, docID, testAdmin))
	assert.False(t, docs.has(docID))
	assert.Equal(t, []string{"eduportal_files/abc"}, blobs.deleted)

	err := svc.HardDelete(context.Background(), fileTarget, docID, testAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLifecycleHardDeleteSurvivesBlobFailure(t *testing.T) {
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: docID, Type: models.DocumentTypeSubject, BlobURL: blobURL("k")})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{err: errors.New("provider down")}, nil)

	require.NoError(t, svc.HardDelete(context.Background(), fileTarget, docID, testAdmin))
	assert.False(t, docs.has(docID))
}

func TestLifecycleSweepHonoursRetentionBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-models.RetentionWindow)
	docs := newLifecycleStoreStub(
		models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, BlobURL: blobURL("eduportal_files/a"), Deleted: true, DeletedAt: deletedAt(cutoff)},
		models.LifecycleRecord{ID: "b", Type: models.DocumentTypeSubject, Deleted: true, DeletedAt: deletedAt(cutoff.Add(time.Second))},
		models.LifecycleRecord{ID: "c", Type: models.DocumentTypeJobs, Deleted: true, DeletedAt: deletedAt(cutoff.Add(-24 * time.Hour))},
		models.LifecycleRecord{ID: "d", Type: models.DocumentTypeSubject},
	)
	subjects := newLifecycleStoreStub(
		models.LifecycleRecord{ID: subjectID, Deleted: true, DeletedAt: deletedAt(cutoff.Add(-time.Hour))},
		models.LifecycleRecord{ID: "s2", Deleted: true, DeletedAt: deletedAt(cutoff.Add(-2 * time.Hour))},
		models.LifecycleRecord{ID: "s3", Deleted: true, DeletedAt: deletedAt(cutoff.Add(-3 * time.Hour))},
	)
	blobs := &blobStub{}
	svc := newLifecycleFixture(docs, subjects, blobs, nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cutoff, report.Cutoff)
	assert.Equal(t, 5, report.Purged)
	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 1, report.BlobsDeleted)
	assert.Equal(t, []string{"eduportal_files/a"}, blobs.deleted)

	assert.False(t, docs.has("a"))
	assert.True(t, docs.has("b"))
	assert.False(t, docs.has("c"))
	assert.True(t, docs.has("d"))
	assert.False(t, subjects.has("s3"))

	again, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Purged)
	assert.Len(t, blobs.deleted, 1)
}

func TestLifecycleSweepCountsBlobFailureButPurgesRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, BlobURL: blobURL("k"), Deleted: true, DeletedAt: deletedAt(now.AddDate(-1, 0, 0))})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{err: errors.New("timeout")}, nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Equal(t, 1, report.BlobFailures)
	assert.False(t, docs.has("a"))
}

func TestLifecycleSweepSkipsForeignBlobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, BlobURL: blobURL("k"), Deleted: true, DeletedAt: deletedAt(now.AddDate(-1, 0, 0))})
	blobs := &blobStub{foreign: true}
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), blobs, nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Empty(t, blobs.deleted)
}

func TestLifecycleSweepCountsVanishedCandidates(t *testing.T) {
	docs := newLifecycleStoreStub()
	docs.purgeErr = sql.ErrNoRows
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs.records["a"] = &models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, Deleted: true, DeletedAt: deletedAt(now.AddDate(-1, 0, 0))}
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
	assert.Zero(t, report.Purged)
}

func TestLifecycleSweepReportsScanFailure(t *testing.T) {
	docs := newLifecycleStoreStub()
	docs.listErr = errors.New("connection reset")
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, nil)

	report, err := svc.Sweep(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Contains(t, err.Error(), "scan documents")
}

func TestLifecycleSweepSkippedWhenLeaseHeld(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, Deleted: true, DeletedAt: deletedAt(now.AddDate(-1, 0, 0))})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, &leaseStub{acquired: false})

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.True(t, docs.has("a"))
}

func TestLifecycleSweepReleasesLease(t *testing.T) {
	lease := &leaseStub{acquired: true}
	svc := newLifecycleFixture(newLifecycleStoreStub(), newLifecycleStoreStub(), &blobStub{}, lease)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, lease.released)
}

func TestLifecycleSweepProceedsWhenLeaseErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: "a", Type: models.DocumentTypeSubject, Deleted: true, DeletedAt: deletedAt(now.AddDate(-1, 0, 0))})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, &leaseStub{err: errors.New("redis down")})

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
}

func TestLifecycleConcurrentSoftDeleteSucceedsOnce(t *testing.T) {
	docs := newLifecycleStoreStub(models.LifecycleRecord{ID: docID, Type: models.DocumentTypeSubject})
	svc := newLifecycleFixture(docs, newLifecycleStoreStub(), &blobStub{}, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SoftDelete(context.Background(), fileTarget, docID, testAdmin)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appErrors.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)
}

func TestLifecycleRestoreDuplicateSubjectIsConflict(t *testing.T) {
	subjects := &duplicateRestoreStore{lifecycleStoreStub: newLifecycleStoreStub(models.LifecycleRecord{ID: subjectID, Deleted: true, DeletedAt: deletedAt(time.Now())})}
	svc := newLifecycleFixture(newLifecycleStoreStub(), nil, &blobStub{}, nil)
	svc.subjects = subjects

	_, err := svc.Restore(context.Background(), subjectTarget, subjectID, testAdmin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

type duplicateRestoreStore struct {
	*lifecycleStoreStub
}

func (d *duplicateRestoreStore) ClearDeleted(ctx context.Context, id string, at time.Time) error {
	return repository.ErrDuplicate
}

func TestDeriveKeyMatchesBlobURLHelper(t *testing.T) {
	key, err := storage.DeriveKey(*blobURL("eduportal_files/report"))
	require.NoError(t, err)
	assert.Equal(t, "eduportal_files/report", key)
}
