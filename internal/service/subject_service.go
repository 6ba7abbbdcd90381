package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

const duplicateSubjectMessage = "Subject with this name already exists for the selected group and type."

type subjectStore interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindActiveDuplicate(ctx context.Context, subject *models.Subject) (*models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// SubjectService manages subject containers.
type SubjectService struct {
	repo     subjectStore
	audit    auditLogger
	feeds    *FeedCache
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSubjectService constructs the service.
func NewSubjectService(repo subjectStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, audit: audit, validate: validate, logger: logger}
}

// UseFeedCache serves the active subject listing through feeds.
func (s *SubjectService) UseFeedCache(feeds *FeedCache) {
	s.feeds = feeds
}

// Create registers a subject. An active subject with the same name, year,
// semester, group and data type is a conflict.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest, principal *models.Principal) (*models.Subject, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Group = strings.TrimSpace(req.Group)
	req.DataType = strings.TrimSpace(req.DataType)
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Missing required fields")
	}

	subject := &models.Subject{
		Name:     req.Name,
		Year:     req.Year,
		Semester: req.Semester,
		Group:    req.Group,
		DataType: req.DataType,
		Files:    req.Files,
	}

	existing, err := s.repo.FindActiveDuplicate(ctx, subject)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internal(err, "failed to check for duplicate subject")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, duplicateSubjectMessage)
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, duplicateSubjectMessage)
		}
		return nil, internal(err, "failed to create subject")
	}
	s.feeds.Invalidate(ctx, subjectNamespace)

	recordAudit(ctx, s.audit, s.logger, "subject-service", principal, &models.AuditLog{
		Action:     models.AuditActionUpload,
		Resource:   string(models.KindSubject),
		ResourceID: strPtr(subject.ID),
		NewValues:  jsonString(subject),
	})
	s.logger.Info("subject created", zap.String("id", subject.ID), zap.String("name", subject.Name))
	return subject, nil
}

// List returns active subjects matching filter.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	filter.Deleted = false
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	params := fmt.Sprintf("%s|%s|%s|%s|%d|%d", optionalInt(filter.Year), optionalInt(filter.Semester), filter.Group, filter.DataType, filter.Page, filter.PageSize)
	var cached subjectPage
	key, hit := s.feeds.lookup(ctx, subjectNamespace, params, &cached)
	if hit {
		return cached.Items, &cached.Pagination, nil
	}

	subjects, page, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	s.feeds.save(ctx, key, subjectPage{Items: subjects, Pagination: *page})
	return subjects, page, nil
}

// ListDeleted returns soft-deleted subjects, most recently deleted first.
func (s *SubjectService) ListDeleted(ctx context.Context, page, pageSize int) ([]models.Subject, *models.Pagination, error) {
	return s.list(ctx, models.SubjectFilter{Deleted: true, Page: page, PageSize: pageSize})
}

func (s *SubjectService) list(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list subjects")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update edits an active subject.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest, principal *models.Principal) (*models.Subject, error) {
	if !isRecordID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
	}
	req.Name = trimmed(req.Name)
	req.Group = trimmed(req.Group)
	req.DataType = trimmed(req.DataType)
	if blank(req.Name) || blank(req.Group) || blank(req.DataType) {
		return nil, invalid("name, group and dataType cannot be empty")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject update")
	}
	subject, err := s.repo.Update(ctx, id, models.SubjectPatch{
		Name:     req.Name,
		Year:     req.Year,
		Semester: req.Semester,
		Group:    req.Group,
		DataType: req.DataType,
		Files:    req.Files,
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, duplicateSubjectMessage)
		default:
			return nil, internal(err, "failed to update subject")
		}
	}
	s.feeds.Invalidate(ctx, subjectNamespace)

	recordAudit(ctx, s.audit, s.logger, "subject-service", principal, &models.AuditLog{
		Action:     models.AuditActionUpdate,
		Resource:   string(models.KindSubject),
		ResourceID: strPtr(subject.ID),
		NewValues:  jsonString(req),
	})
	return subject, nil
}

// BulkDelete hard-deletes every subject.
func (s *SubjectService) BulkDelete(ctx context.Context, principal *models.Principal) (*dto.BulkDeleteResult, error) {
	count, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to delete subjects")
	}
	s.feeds.Invalidate(ctx, subjectNamespace)
	recordAudit(ctx, s.audit, s.logger, "subject-service", principal, &models.AuditLog{
		Action:    models.AuditActionBulkDelete,
		Resource:  string(models.KindSubject),
		NewValues: jsonString(map[string]interface{}{"deleted": count}),
	})
	s.logger.Info("subjects bulk deleted", zap.Int64("count", count))
	return &dto.BulkDeleteResult{Message: "All subjects deleted", DeletedCount: count}, nil
}
