package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edupacket-api/internal/models"
)

const (
	documentsTable  = "documents"
	documentColumns = `id, type, title, file_url, link, uploaded_by, uploaded_by_role, class_group, year, semester, deleted, deleted_at, created_at, updated_at`
)

// DocumentRepository persists subject files and notifications.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores a new active document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	doc.Deleted = false
	doc.DeletedAt = nil

	const query = `INSERT INTO documents (` + documentColumns + `)
	VALUES (:id, :type, :title, :file_url, :link, :uploaded_by, :uploaded_by_role, :class_group, :year, :semester, :deleted, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document regardless of its lifecycle state.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns one page of documents matching the filter and the total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	conditions := []string{"deleted = $1"}
	args := []interface{}{filter.Deleted}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ClassGroup != "" {
		args = append(args, filter.ClassGroup)
		conditions = append(conditions, fmt.Sprintf("class_group = $%d", len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Semester != nil {
		args = append(args, *filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	orderBy := " ORDER BY created_at DESC, id"
	if filter.Deleted {
		orderBy = " ORDER BY deleted_at DESC, id"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := "SELECT " + documentColumns + " FROM documents" + where + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// Update applies a patch to an active document and returns the stored row.
func (r *DocumentRepository) Update(ctx context.Context, id string, patch models.DocumentPatch) (*models.Document, error) {
	const query = `UPDATE documents SET
		title = COALESCE($2, title),
		class_group = COALESCE($3, class_group),
		year = COALESCE($4, year),
		semester = COALESCE($5, semester),
		link = COALESCE($6, link),
		updated_at = $7
	WHERE id = $1 AND deleted = FALSE
	RETURNING ` + documentColumns
	var doc models.Document
	err := r.db.GetContext(ctx, &doc, query, id, patch.Title, patch.ClassGroup, patch.Year, patch.Semester, patch.Link, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update document: %w", err)
	}
	return &doc, nil
}

// DeleteByType removes every document of the given type and returns the blob
// URLs they referenced.
func (r *DocumentRepository) DeleteByType(ctx context.Context, docType models.DocumentType) ([]string, error) {
	const query = `DELETE FROM documents WHERE type = $1 RETURNING file_url`
	return r.deleteReturningURLs(ctx, query, docType)
}

// DeleteByClassGroup removes every subject file of a class group.
func (r *DocumentRepository) DeleteByClassGroup(ctx context.Context, classGroup string) ([]string, error) {
	const query = `DELETE FROM documents WHERE type = 'subject' AND class_group = $1 RETURNING file_url`
	return r.deleteReturningURLs(ctx, query, classGroup)
}

func (r *DocumentRepository) deleteReturningURLs(ctx context.Context, query string, arg interface{}) ([]string, error) {
	var rows []sql.NullString
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("bulk delete documents: %w", err)
	}
	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Valid && row.String != "" {
			urls = append(urls, row.String)
		}
	}
	return urls, nil
}

// SoftDeleteLegacy soft-deletes active subject files whose year or semester is
// missing or outside the allowed sets.
func (r *DocumentRepository) SoftDeleteLegacy(ctx context.Context, years, semesters []int, at time.Time) (int64, error) {
	const query = `UPDATE documents SET deleted = TRUE, deleted_at = $1, updated_at = $1
	WHERE type = 'subject' AND deleted = FALSE
	AND (year IS NULL OR semester IS NULL OR NOT (year = ANY($2)) OR NOT (semester = ANY($3)))`
	res, err := r.db.ExecContext(ctx, query, at, pq.Array(years), pq.Array(semesters))
	if err != nil {
		return 0, fmt.Errorf("soft delete legacy documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check legacy rows: %w", err)
	}
	return affected, nil
}

// Lookup returns the lifecycle projection of a document.
func (r *DocumentRepository) Lookup(ctx context.Context, id string) (*models.LifecycleRecord, error) {
	const query = `SELECT id, type, title, file_url AS blob_url, deleted, deleted_at FROM documents WHERE id = $1`
	var rec models.LifecycleRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkDeleted moves an active document to the soft-deleted state.
func (r *DocumentRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return transition(ctx, r.db, documentsTable, id, true, at)
}

// ClearDeleted moves a soft-deleted document back to active.
func (r *DocumentRepository) ClearDeleted(ctx context.Context, id string, at time.Time) error {
	return transition(ctx, r.db, documentsTable, id, false, at)
}

// Remove hard-deletes a document row.
func (r *DocumentRepository) Remove(ctx context.Context, id string) error {
	return removeRow(ctx, r.db, documentsTable, id)
}

// Purge removes a document only while it is still soft-deleted at or before
// cutoff, returning the removed row. A restored or vanished row yields
// sql.ErrNoRows.
func (r *DocumentRepository) Purge(ctx context.Context, id string, cutoff time.Time) (*models.LifecycleRecord, error) {
	const query = `DELETE FROM documents WHERE id = $1 AND deleted = TRUE AND deleted_at <= $2
	RETURNING id, type, title, file_url AS blob_url, deleted, deleted_at`
	var rec models.LifecycleRecord
	if err := r.db.GetContext(ctx, &rec, query, id, cutoff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("purge document: %w", err)
	}
	return &rec, nil
}

// ListPurgeable returns soft-deleted documents deleted at or before cutoff,
// ordered by id and starting after afterID.
func (r *DocumentRepository) ListPurgeable(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.LifecycleRecord, error) {
	if afterID == "" {
		afterID = minID
	}
	const query = `SELECT id, type, title, file_url AS blob_url, deleted, deleted_at FROM documents
	WHERE deleted = TRUE AND deleted_at <= $1 AND id > $2
	ORDER BY id LIMIT $3`
	records := make([]models.LifecycleRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, cutoff, afterID, limit); err != nil {
		return nil, fmt.Errorf("list purgeable documents: %w", err)
	}
	return records, nil
}

// DeletedEntries lists every soft-deleted document for the ledger export.
func (r *DocumentRepository) DeletedEntries(ctx context.Context) ([]models.DeletedEntry, error) {
	const query = `SELECT id, CASE WHEN type = 'subject' THEN 'subject-file' ELSE 'notification' END AS kind,
	type, title, deleted_at FROM documents WHERE deleted = TRUE ORDER BY deleted_at DESC`
	entries := make([]models.DeletedEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list deleted documents: %w", err)
	}
	return entries, nil
}
