package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

const (
	uploadOutcomeStored   = "stored"
	uploadOutcomeRejected = "rejected"
	uploadOutcomeFailed   = "failed"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Update(ctx context.Context, id string, patch models.DocumentPatch) (*models.Document, error)
	DeleteByType(ctx context.Context, docType models.DocumentType) ([]string, error)
	DeleteByClassGroup(ctx context.Context, classGroup string) ([]string, error)
	SoftDeleteLegacy(ctx context.Context, years, semesters []int, at time.Time) (int64, error)
}

// DocumentConfig carries upload limits and the accepted academic calendar.
type DocumentConfig struct {
	AllowedYears     []int
	AllowedSemesters []int
	MaxUploadSize    int64
	UploadTimeout    time.Duration
}

// DocumentService manages subject files and notifications.
type DocumentService struct {
	repo     documentStore
	audit    auditLogger
	blobs    storage.Gateway
	cleaner  *BlobCleaner
	feeds    *FeedCache
	validate *validator.Validate
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      DocumentConfig
	now      func() time.Time
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentStore, audit auditLogger, blobs storage.Gateway, cleaner *BlobCleaner, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg DocumentConfig) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = time.Minute
	}
	return &DocumentService{
		repo:     repo,
		audit:    audit,
		blobs:    blobs,
		cleaner:  cleaner,
		validate: validate,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// UseFeedCache serves active listings through feeds and invalidates them on
// every write.
func (s *DocumentService) UseFeedCache(feeds *FeedCache) {
	s.feeds = feeds
}

// UploadSubjectFile stores a study file and records it against a class group.
func (s *DocumentService) UploadSubjectFile(ctx context.Context, req dto.UploadSubjectFileRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error) {
	if file == nil {
		return nil, invalid("No file uploaded")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.ClassGroup = strings.TrimSpace(req.ClassGroup)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err, "invalid upload")
	}
	if err := s.checkAcademicTerm(*req.Year, *req.Semester); err != nil {
		return nil, err
	}

	doc := &models.Document{
		Type:       models.DocumentTypeSubject,
		Title:      req.Title,
		ClassGroup: req.ClassGroup,
		Year:       req.Year,
		Semester:   req.Semester,
	}
	return s.store(ctx, doc, file, principal)
}

// UploadNotification stores a notification in category. A file, a link, or
// both must be supplied.
func (s *DocumentService) UploadNotification(ctx context.Context, category models.DocumentType, req dto.UploadNotificationRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error) {
	if !category.IsNotification() {
		return nil, invalid("unknown notification category")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Link = strings.TrimSpace(req.Link)
	req.ClassGroup = strings.TrimSpace(req.ClassGroup)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err, "invalid notification")
	}
	link := req.Link
	if file == nil && link == "" {
		return nil, invalid("Either a file or a link is required.")
	}

	classGroup := req.ClassGroup
	if classGroup == "" {
		classGroup = models.ClassGroupAll
	}
	doc := &models.Document{
		Type:       category,
		Title:      req.Title,
		ClassGroup: classGroup,
	}
	if link != "" {
		doc.Link = &link
	}
	return s.store(ctx, doc, file, principal)
}

// store uploads the optional file then persists doc. A failed insert removes
// the freshly uploaded blob.
func (s *DocumentService) store(ctx context.Context, doc *models.Document, file *dto.UploadFile, principal *models.Principal) (*models.Document, error) {
	if principal != nil {
		uploader := principal.AccountID
		doc.UploadedBy = &uploader
		doc.UploadedByRole = principal.Role
	}

	var ref *storage.BlobReference
	if file != nil {
		var err error
		ref, err = s.upload(ctx, file)
		if err != nil {
			return nil, err
		}
		doc.FileURL = &ref.URL
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if ref != nil {
			s.compensate(ref)
		}
		s.metrics.RecordUpload(uploadOutcomeFailed)
		return nil, internal(err, "failed to save document")
	}

	s.metrics.RecordUpload(uploadOutcomeStored)
	s.feeds.Invalidate(ctx, string(doc.Type))
	recordAudit(ctx, s.audit, s.logger, "document-service", principal, &models.AuditLog{
		Action:     models.AuditActionUpload,
		Resource:   string(doc.Type),
		ResourceID: strPtr(doc.ID),
		NewValues:  jsonString(doc),
	})
	s.logger.Info("document uploaded",
		zap.String("id", doc.ID),
		zap.String("type", string(doc.Type)),
		zap.String("class_group", doc.ClassGroup),
		zap.Bool("has_file", doc.FileURL != nil))
	return doc, nil
}

func (s *DocumentService) upload(ctx context.Context, file *dto.UploadFile) (*storage.BlobReference, error) {
	if err := storage.CheckMediaType(file.ContentType); err != nil {
		s.metrics.RecordUpload(uploadOutcomeRejected)
		return nil, invalid("Video uploads are not allowed")
	}
	if s.cfg.MaxUploadSize > 0 && file.Size > s.cfg.MaxUploadSize {
		s.metrics.RecordUpload(uploadOutcomeRejected)
		return nil, invalid(fmt.Sprintf("file exceeds the maximum upload size of %s", units.BytesSize(float64(s.cfg.MaxUploadSize))))
	}
	contentType, body, err := storage.ResolveContentType(file.ContentType, file.Body)
	if err != nil {
		return nil, internal(err, "failed to read upload")
	}
	if err := storage.CheckMediaType(contentType); err != nil {
		s.metrics.RecordUpload(uploadOutcomeRejected)
		return nil, invalid("Video uploads are not allowed")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()
	ref, err := s.blobs.Upload(uploadCtx, storage.Object{
		Name:        file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		Body:        body,
	})
	if err != nil {
		s.metrics.RecordUpload(uploadOutcomeFailed)
		s.logger.Error("blob upload failed", zap.String("filename", file.Filename), zap.Error(err))
		return nil, appErrors.WithCause(appErrors.ErrStorage, err)
	}
	return ref, nil
}

func (s *DocumentService) compensate(ref *storage.BlobReference) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.UploadTimeout)
	defer cancel()
	if err := s.blobs.Delete(ctx, ref.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordBlobFailure("compensation")
		s.logger.Warn("failed to remove orphaned blob", zap.String("key", ref.Key), zap.Error(err))
	}
}

// List returns active documents matching filter.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	filter.Deleted = false
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	params := fmt.Sprintf("%s|%s|%s|%d|%d", filter.ClassGroup, optionalInt(filter.Year), optionalInt(filter.Semester), filter.Page, filter.PageSize)
	var cached documentPage
	key, hit := s.feeds.lookup(ctx, string(filter.Type), params, &cached)
	if hit {
		return cached.Items, &cached.Pagination, nil
	}

	docs, page, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	s.feeds.save(ctx, key, documentPage{Items: docs, Pagination: *page})
	return docs, page, nil
}

// ListDeleted returns soft-deleted documents of docType, most recently deleted first.
func (s *DocumentService) ListDeleted(ctx context.Context, docType models.DocumentType, page, pageSize int) ([]models.Document, *models.Pagination, error) {
	return s.list(ctx, models.DocumentFilter{Type: docType, Deleted: true, Page: page, PageSize: pageSize})
}

func (s *DocumentService) list(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list documents")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return docs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an active document of docType.
func (s *DocumentService) Get(ctx context.Context, id string, docType models.DocumentType) (*models.Document, error) {
	if !isRecordID(id) {
		return nil, documentNotFound(docType)
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, documentNotFound(docType)
		}
		return nil, internal(err, "failed to load document")
	}
	if doc.Deleted || doc.Type != docType {
		return nil, documentNotFound(docType)
	}
	return doc, nil
}

// DownloadURL resolves where a download of an active document should redirect.
func (s *DocumentService) DownloadURL(ctx context.Context, id string, docType models.DocumentType) (string, error) {
	doc, err := s.Get(ctx, id, docType)
	if err != nil {
		return "", err
	}
	target := doc.Target()
	if target == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no file or link attached")
	}
	return target, nil
}

// Update edits the metadata of an active document.
func (s *DocumentService) Update(ctx context.Context, id string, docType models.DocumentType, req dto.UpdateDocumentRequest, principal *models.Principal) (*models.Document, error) {
	req.Title = trimmed(req.Title)
	req.ClassGroup = trimmed(req.ClassGroup)
	req.Link = trimmed(req.Link)
	if blank(req.Title) || blank(req.ClassGroup) {
		return nil, invalid("title and classGroup cannot be empty")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err, "invalid document update")
	}
	if req.Year != nil && !containsInt(s.cfg.AllowedYears, *req.Year) {
		return nil, invalid(fmt.Sprintf("year must be one of: %s", joinInts(s.cfg.AllowedYears)))
	}
	if req.Semester != nil && !containsInt(s.cfg.AllowedSemesters, *req.Semester) {
		return nil, invalid(fmt.Sprintf("semester must be one of: %s", joinInts(s.cfg.AllowedSemesters)))
	}
	if _, err := s.Get(ctx, id, docType); err != nil {
		return nil, err
	}

	patch := models.DocumentPatch{
		Title:      req.Title,
		ClassGroup: req.ClassGroup,
		Year:       req.Year,
		Semester:   req.Semester,
		Link:       req.Link,
	}
	doc, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, documentNotFound(docType)
		}
		return nil, internal(err, "failed to update document")
	}
	s.feeds.Invalidate(ctx, string(doc.Type))

	recordAudit(ctx, s.audit, s.logger, "document-service", principal, &models.AuditLog{
		Action:     models.AuditActionUpdate,
		Resource:   string(doc.Type),
		ResourceID: strPtr(doc.ID),
		NewValues:  jsonString(req),
	})
	return doc, nil
}

// BulkDelete hard-deletes every subject file and schedules their blobs for
// removal.
func (s *DocumentService) BulkDelete(ctx context.Context, principal *models.Principal) (*dto.BulkDeleteResult, error) {
	urls, err := s.repo.DeleteByType(ctx, models.DocumentTypeSubject)
	if err != nil {
		return nil, internal(err, "failed to delete documents")
	}
	s.cleaner.Schedule(ctx, urls)
	s.feeds.Invalidate(ctx, string(models.DocumentTypeSubject))
	s.auditBulk(ctx, principal, "all", len(urls))
	return &dto.BulkDeleteResult{Message: "All PDFs and model papers deleted", DeletedCount: int64(len(urls))}, nil
}

// DeleteByClassGroup hard-deletes the subject files of one class group.
func (s *DocumentService) DeleteByClassGroup(ctx context.Context, classGroup string, principal *models.Principal) (*dto.BulkDeleteResult, error) {
	classGroup = strings.TrimSpace(classGroup)
	if classGroup == "" {
		return nil, invalid("classGroup param required")
	}
	urls, err := s.repo.DeleteByClassGroup(ctx, classGroup)
	if err != nil {
		return nil, internal(err, "failed to delete documents")
	}
	s.cleaner.Schedule(ctx, urls)
	s.feeds.Invalidate(ctx, string(models.DocumentTypeSubject))
	s.auditBulk(ctx, principal, classGroup, len(urls))
	return &dto.BulkDeleteResult{
		Message:      fmt.Sprintf("All PDFs/model papers for subject '%s' deleted", classGroup),
		DeletedCount: int64(len(urls)),
	}, nil
}

// CleanupLegacy soft-deletes subject files whose year or semester falls
// outside the accepted calendar so they can be restored if needed.
func (s *DocumentService) CleanupLegacy(ctx context.Context, principal *models.Principal) (*dto.LegacyCleanupResult, error) {
	count, err := s.repo.SoftDeleteLegacy(ctx, s.cfg.AllowedYears, s.cfg.AllowedSemesters, s.now().UTC())
	if err != nil {
		return nil, internal(err, "failed to clean up legacy documents")
	}
	s.feeds.Invalidate(ctx, string(models.DocumentTypeSubject))
	recordAudit(ctx, s.audit, s.logger, "document-service", principal, &models.AuditLog{
		Action:    models.AuditActionLegacyCleanup,
		Resource:  string(models.DocumentTypeSubject),
		NewValues: jsonString(map[string]interface{}{"deleted": count}),
	})
	s.logger.Info("legacy documents soft-deleted", zap.Int64("count", count))
	return &dto.LegacyCleanupResult{Message: "Legacy PDFs moved to deleted items", DeletedCount: count}, nil
}

func (s *DocumentService) auditBulk(ctx context.Context, principal *models.Principal, scope string, count int) {
	recordAudit(ctx, s.audit, s.logger, "document-service", principal, &models.AuditLog{
		Action:    models.AuditActionBulkDelete,
		Resource:  string(models.DocumentTypeSubject),
		NewValues: jsonString(map[string]interface{}{"scope": scope, "deleted": count}),
	})
	s.logger.Info("documents bulk deleted", zap.String("scope", scope), zap.Int("count", count))
}

func (s *DocumentService) checkAcademicTerm(year, semester int) error {
	if !containsInt(s.cfg.AllowedYears, year) {
		return invalid(fmt.Sprintf("year must be one of: %s", joinInts(s.cfg.AllowedYears)))
	}
	if !containsInt(s.cfg.AllowedSemesters, semester) {
		return invalid(fmt.Sprintf("semester must be one of: %s", joinInts(s.cfg.AllowedSemesters)))
	}
	return nil
}

func documentNotFound(docType models.DocumentType) error {
	if docType.IsNotification() {
		return appErrors.Clone(appErrors.ErrNotFound, "Notification not found")
	}
	return appErrors.Clone(appErrors.ErrNotFound, "PDF not found")
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
