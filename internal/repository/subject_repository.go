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
	subjectsTable  = "subjects"
	subjectColumns = `id, name, year, semester, "group", data_type, files, deleted, deleted_at, created_at, updated_at`
)

// SubjectRepository persists subject containers.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a subject. An active duplicate yields ErrDuplicate.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	subject.UpdatedAt = subject.CreatedAt
	if subject.Files == nil {
		subject.Files = pq.StringArray{}
	}

	const query = `INSERT INTO subjects (` + subjectColumns + `)
	VALUES (:id, :name, :year, :semester, :group, :data_type, :files, FALSE, NULL, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// FindActiveDuplicate returns the active subject sharing every identifying
// field with s, if any.
func (r *SubjectRepository) FindActiveDuplicate(ctx context.Context, s *models.Subject) (*models.Subject, error) {
	const query = `SELECT ` + subjectColumns + ` FROM subjects
	WHERE name = $1 AND year = $2 AND semester = $3 AND "group" = $4 AND data_type = $5 AND deleted = FALSE
	LIMIT 1`
	var existing models.Subject
	if err := r.db.GetContext(ctx, &existing, query, s.Name, s.Year, s.Semester, s.Group, s.DataType); err != nil {
		return nil, err
	}
	return &existing, nil
}

// List returns one page of subjects matching the filter and the total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	conditions := []string{"deleted = $1"}
	args := []interface{}{filter.Deleted}

	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Semester != nil {
		args = append(args, *filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	if filter.Group != "" {
		args = append(args, filter.Group)
		conditions = append(conditions, fmt.Sprintf(`"group" = $%d`, len(args)))
	}
	if filter.DataType != "" {
		args = append(args, filter.DataType)
		conditions = append(conditions, fmt.Sprintf("data_type = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	orderBy := " ORDER BY name, id"
	if filter.Deleted {
		orderBy = " ORDER BY deleted_at DESC, id"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := "SELECT " + subjectColumns + " FROM subjects" + where + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	subjects := make([]models.Subject, 0)
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, total, nil
}

// Update applies a patch to an active subject.
func (r *SubjectRepository) Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error) {
	var files interface{}
	if patch.Files != nil {
		files = pq.StringArray(*patch.Files)
	}
	const query = `UPDATE subjects SET
		name = COALESCE($2, name),
		year = COALESCE($3, year),
		semester = COALESCE($4, semester),
		"group" = COALESCE($5, "group"),
		data_type = COALESCE($6, data_type),
		files = COALESCE($7, files),
		updated_at = $8
	WHERE id = $1 AND deleted = FALSE
	RETURNING ` + subjectColumns
	var subject models.Subject
	err := r.db.GetContext(ctx, &subject, query, id, patch.Name, patch.Year, patch.Semester, patch.Group, patch.DataType, files, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update subject: %w", err)
	}
	return &subject, nil
}

// DeleteAll removes every subject and returns how many were removed.
func (r *SubjectRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects`)
	if err != nil {
		return 0, fmt.Errorf("delete subjects: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check subject delete rows: %w", err)
	}
	return affected, nil
}

// Lookup returns the lifecycle projection of a subject. Subjects carry no blob.
func (r *SubjectRepository) Lookup(ctx context.Context, id string) (*models.LifecycleRecord, error) {
	const query = `SELECT id, '' AS type, name AS title, NULL AS blob_url, deleted, deleted_at FROM subjects WHERE id = $1`
	var rec models.LifecycleRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkDeleted moves an active subject to the soft-deleted state.
func (r *SubjectRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return transition(ctx, r.db, subjectsTable, id, true, at)
}

// ClearDeleted moves a soft-deleted subject back to active. Restoring next to
// an active duplicate violates the partial unique index.
func (r *SubjectRepository) ClearDeleted(ctx context.Context, id string, at time.Time) error {
	err := transition(ctx, r.db, subjectsTable, id, false, at)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Remove hard-deletes a subject row.
func (r *SubjectRepository) Remove(ctx context.Context, id string) error {
	return removeRow(ctx, r.db, subjectsTable, id)
}

// Purge removes a subject only while it is still soft-deleted at or before
// cutoff, returning the removed row. A restored or vanished row yields
// sql.ErrNoRows.
func (r *SubjectRepository) Purge(ctx context.Context, id string, cutoff time.Time) (*models.LifecycleRecord, error) {
	const query = `DELETE FROM subjects WHERE id = $1 AND deleted = TRUE AND deleted_at <= $2
	RETURNING id, '' AS type, name AS title, NULL AS blob_url, deleted, deleted_at`
	var rec models.LifecycleRecord
	if err := r.db.GetContext(ctx, &rec, query, id, cutoff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("purge subject: %w", err)
	}
	return &rec, nil
}

// ListPurgeable returns soft-deleted subjects deleted at or before cutoff.
func (r *SubjectRepository) ListPurgeable(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.LifecycleRecord, error) {
	if afterID == "" {
		afterID = minID
	}
	const query = `SELECT id, '' AS type, name AS title, NULL AS blob_url, deleted, deleted_at FROM subjects
	WHERE deleted = TRUE AND deleted_at <= $1 AND id > $2
	ORDER BY id LIMIT $3`
	records := make([]models.LifecycleRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, cutoff, afterID, limit); err != nil {
		return nil, fmt.Errorf("list purgeable subjects: %w", err)
	}
	return records, nil
}

// DeletedEntries lists every soft-deleted subject for the ledger export.
func (r *SubjectRepository) DeletedEntries(ctx context.Context) ([]models.DeletedEntry, error) {
	const query = `SELECT id, 'subject' AS kind, '' AS type, name AS title, deleted_at
	FROM subjects WHERE deleted = TRUE ORDER BY deleted_at DESC`
	entries := make([]models.DeletedEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list deleted subjects: %w", err)
	}
	return entries, nil
}
