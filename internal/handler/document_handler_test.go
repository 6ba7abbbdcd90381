package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/middleware"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/service"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

type fakeDocumentSrv struct {
	uploadReq   dto.UploadSubjectFileRequest
	uploadBody  string
	uploadedBy  *models.Principal
	notifyReq   dto.UploadNotificationRequest
	notifyFile  bool
	listFilter  models.DocumentFilter
	getErr      error
	downloadURL string
	bulkResult  *dto.BulkDeleteResult
	classGroup  string
	deletedType models.DocumentType
}

func (f *fakeDocumentSrv) UploadSubjectFile(_ context.Context, req dto.UploadSubjectFileRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error) {
	f.uploadReq = req
	f.uploadedBy = principal
	if file != nil {
		raw, _ := io.ReadAll(file.Body)
		f.uploadBody = string(raw)
	}
	return &models.Document{ID: "doc-1", Title: req.Title}, nil
}

func (f *fakeDocumentSrv) UploadNotification(_ context.Context, category models.DocumentType, req dto.UploadNotificationRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error) {
	f.notifyReq = req
	f.notifyFile = file != nil
	return &models.Document{ID: "note-1", Type: category, Title: req.Title}, nil
}

func (f *fakeDocumentSrv) List(_ context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	f.listFilter = filter
	return []models.Document{{ID: "doc-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeDocumentSrv) ListDeleted(_ context.Context, docType models.DocumentType, page, pageSize int) ([]models.Document, *models.Pagination, error) {
	f.deletedType = docType
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeDocumentSrv) Get(_ context.Context, id string, docType models.DocumentType) (*models.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.Document{ID: id, Type: docType}, nil
}

func (f *fakeDocumentSrv) DownloadURL(_ context.Context, id string, docType models.DocumentType) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.downloadURL, nil
}

func (f *fakeDocumentSrv) Update(_ context.Context, id string, docType models.DocumentType, req dto.UpdateDocumentRequest, principal *models.Principal) (*models.Document, error) {
	doc := &models.Document{ID: id}
	if req.Title != nil {
		doc.Title = *req.Title
	}
	return doc, nil
}

func (f *fakeDocumentSrv) BulkDelete(context.Context, *models.Principal) (*dto.BulkDeleteResult, error) {
	return f.bulkResult, nil
}

func (f *fakeDocumentSrv) DeleteByClassGroup(_ context.Context, classGroup string, _ *models.Principal) (*dto.BulkDeleteResult, error) {
	f.classGroup = classGroup
	return &dto.BulkDeleteResult{Message: "deleted", DeletedCount: 2}, nil
}

func (f *fakeDocumentSrv) CleanupLegacy(context.Context, *models.Principal) (*dto.LegacyCleanupResult, error) {
	return &dto.LegacyCleanupResult{}, nil
}

type fakeLifecycle struct {
	softDeleted []models.LifecycleTarget
	restored    []models.LifecycleTarget
	hardDeleted []string
	softErr     error
}

func (f *fakeLifecycle) SoftDelete(_ context.Context, target models.LifecycleTarget, id string, _ *models.Principal) (*models.LifecycleRecord, error) {
	if f.softErr != nil {
		return nil, f.softErr
	}
	f.softDeleted = append(f.softDeleted, target)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.LifecycleRecord{ID: id, Deleted: true, DeletedAt: &at}, nil
}

func (f *fakeLifecycle) Restore(_ context.Context, target models.LifecycleTarget, id string, _ *models.Principal) (*models.LifecycleRecord, error) {
	f.restored = append(f.restored, target)
	return &models.LifecycleRecord{ID: id}, nil
}

func (f *fakeLifecycle) HardDelete(_ context.Context, _ models.LifecycleTarget, id string, _ *models.Principal) error {
	f.hardDeleted = append(f.hardDeleted, id)
	return nil
}

type roleGate struct{}

func (roleGate) Authorize(principal *models.Principal, capability models.Capability) error {
	if !principal.Can(capability) {
		return appErrors.ErrForbidden
	}
	return nil
}

var (
	adminPrincipal   = &models.Principal{AccountID: "admin-1", Role: models.RoleAdmin}
	teacherPrincipal = &models.Principal{AccountID: "teacher-1", Role: models.RoleTeacher}
)

func newTestContext(method, target string, body io.Reader, principal *models.Principal) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if principal != nil {
		c.Set(middleware.ContextPrincipalKey, principal)
	}
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestUploadSubjectFileParsesMultipart(t *testing.T) {
	svc := &fakeDocumentSrv{}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("title", "Algebra notes"))
	require.NoError(t, writer.WriteField("classGroup", "MPC"))
	require.NoError(t, writer.WriteField("year", "2"))
	require.NoError(t, writer.WriteField("semester", "1"))
	part, err := writer.CreateFormFile("file", "algebra.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/pdfs/upload", &body, teacherPrincipal)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.UploadSubjectFile(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Algebra notes", svc.uploadReq.Title)
	require.NotNil(t, svc.uploadReq.Year)
	assert.Equal(t, 2, *svc.uploadReq.Year)
	assert.Equal(t, "%PDF-1.4 content", svc.uploadBody)
	assert.Equal(t, teacherPrincipal, svc.uploadedBy)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "File uploaded successfully", data["message"])
}

func TestUploadNotificationWithoutFile(t *testing.T) {
	svc := &fakeDocumentSrv{}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("title", "Hall tickets"))
	require.NoError(t, writer.WriteField("link", "https://example.com/hall"))
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/examination/upload", &body, teacherPrincipal)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.UploadNotification(models.DocumentTypeExamination)(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, svc.notifyFile)
	assert.Equal(t, "https://example.com/hall", svc.notifyReq.Link)
}

func TestListSubjectFilesPassesFilters(t *testing.T) {
	svc := &fakeDocumentSrv{}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	c, rec := newTestContext(http.MethodGet, "/pdfs?classGroup=MPC&year=1&semester=2", nil, nil)
	h.ListSubjectFiles(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DocumentTypeSubject, svc.listFilter.Type)
	assert.Equal(t, "MPC", svc.listFilter.ClassGroup)
	payload := decodeEnvelope(t, rec)
	assert.NotNil(t, payload["pagination"])
}

func TestDeleteSubjectFileSoftByDefault(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	h := NewDocumentHandler(&fakeDocumentSrv{}, lifecycle, roleGate{})

	c, rec := newTestContext(http.MethodDelete, "/pdfs/doc-1", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	h.DeleteSubjectFile(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, lifecycle.softDeleted, 1)
	assert.Equal(t, models.KindSubjectFile, lifecycle.softDeleted[0].Kind)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "2026-04-01T00:00:00Z", data["purgeEligibleAt"])
}

func TestDeleteSubjectFileHardRequiresAdmin(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	h := NewDocumentHandler(&fakeDocumentSrv{}, lifecycle, roleGate{})

	c, rec := newTestContext(http.MethodDelete, "/pdfs/doc-1?hard=true", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	h.DeleteSubjectFile(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, lifecycle.hardDeleted)

	c, rec = newTestContext(http.MethodDelete, "/pdfs/doc-1?hard=true", nil, adminPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	h.DeleteSubjectFile(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc-1"}, lifecycle.hardDeleted)
}

func TestDeleteNotificationConflict(t *testing.T) {
	lifecycle := &fakeLifecycle{softErr: appErrors.Clone(appErrors.ErrConflict, "Notification already deleted")}
	h := NewDocumentHandler(&fakeDocumentSrv{}, lifecycle, roleGate{})

	c, rec := newTestContext(http.MethodDelete, "/jobs/n1", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	h.DeleteNotification(models.DocumentTypeJobs)(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already deleted")
}

func TestRestoreNotificationTargetsCategory(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	h := NewDocumentHandler(&fakeDocumentSrv{}, lifecycle, roleGate{})

	c, rec := newTestContext(http.MethodPost, "/circulars/n1/restore", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	h.RestoreNotification(models.DocumentTypeCirculars)(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, lifecycle.restored, 1)
	assert.Equal(t, models.LifecycleTarget{Kind: models.KindNotification, Category: models.DocumentTypeCirculars}, lifecycle.restored[0])
}

func TestDownloadNotificationRedirects(t *testing.T) {
	svc := &fakeDocumentSrv{downloadURL: "https://cdn.example.com/file.pdf"}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	c, rec := newTestContext(http.MethodGet, "/examination/n1/download", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	h.DownloadNotification(models.DocumentTypeExamination)(c)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://cdn.example.com/file.pdf", rec.Header().Get("Location"))
}

func TestGetNotificationNotFound(t *testing.T) {
	svc := &fakeDocumentSrv{getErr: appErrors.Clone(appErrors.ErrNotFound, "Notification not found")}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	c, rec := newTestContext(http.MethodGet, "/jobs/n1", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	h.GetNotification(models.DocumentTypeJobs)(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteClassGroupFiles(t *testing.T) {
	svc := &fakeDocumentSrv{}
	h := NewDocumentHandler(svc, &fakeLifecycle{}, roleGate{})

	c, rec := newTestContext(http.MethodDelete, "/pdfs/subject/MPC", nil, adminPrincipal)
	c.Params = gin.Params{{Key: "classGroup", Value: "MPC"}}
	h.DeleteClassGroupFiles(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MPC", svc.classGroup)
}

func TestDeleteMalformedIDIsNotFound(t *testing.T) {
	lifecycle := service.NewLifecycleService(nil, nil, nil, nil, nil, nil, nil, service.LifecycleConfig{})
	h := NewDocumentHandler(&fakeDocumentSrv{}, lifecycle, roleGate{})

	c, rec := newTestContext(http.MethodDelete, "/pdfs/abc", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.DeleteSubjectFile(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/jobs/abc/restore", nil, teacherPrincipal)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.RestoreNotification(models.DocumentTypeJobs)(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}
