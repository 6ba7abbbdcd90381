package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupacket-api/internal/models"
)

var documentRowColumns = []string{"id", "type", "title", "file_url", "link", "uploaded_by", "uploaded_by_role", "class_group", "year", "semester", "deleted", "deleted_at", "created_at", "updated_at"}

func TestDocumentCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))

	url := "https://res.cloudinary.com/demo/image/upload/v1/eduportal_files/a.pdf"
	doc := &models.Document{Type: models.DocumentTypeSubject, Title: "Algebra", FileURL: &url, ClassGroup: "A"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListAppliesFiltersAndPaging(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	year := 2
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE deleted = $1 AND type = $2 AND class_group = $3 AND year = $4")).
		WithArgs(false, models.DocumentTypeSubject, "A", 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id LIMIT $5 OFFSET $6")).
		WithArgs(false, models.DocumentTypeSubject, "A", 2, 100, 0).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("d1", "subject", "Algebra", "https://x/v1/a.pdf", nil, nil, "teacher", "A", 2, 1, false, nil, now, now))

	docs, total, err := repo.List(context.Background(), models.DocumentFilter{Type: models.DocumentTypeSubject, ClassGroup: "A", Year: &year})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "Algebra", docs[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListDeletedOrdersByDeletedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE deleted = $1 AND type = $2")).
		WithArgs(true, models.DocumentTypeJobs).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY deleted_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs(true, models.DocumentTypeJobs, 10, 10).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	docs, total, err := repo.List(context.Background(), models.DocumentFilter{Type: models.DocumentTypeJobs, Deleted: true, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentMarkDeletedSuccess(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted = FALSE")).
		WithArgs("d1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDeleted(context.Background(), "d1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentMarkDeletedAlreadyDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("UPDATE documents SET deleted = TRUE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.MarkDeleted(context.Background(), "d1", time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentClearDeletedMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET deleted = FALSE, deleted_at = NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.ClearDeleted(context.Background(), "ghost", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRemoveMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.True(t, IsMissing(repo.Remove(context.Background(), "gone")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListPurgeableUsesInclusiveCutoff(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE deleted = TRUE AND deleted_at <= $1 AND id > $2")).
		WithArgs(cutoff, minID, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "title", "blob_url", "deleted", "deleted_at"}).
			AddRow("d1", "circulars", "Notice", "https://x/v1/k.pdf", true, cutoff))

	records, err := repo.ListPurgeable(context.Background(), cutoff, "", 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].BlobURL)
	assert.Equal(t, models.DocumentTypeCirculars, records[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentDeleteByClassGroupReturnsURLs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM documents WHERE type = 'subject' AND class_group = $1 RETURNING file_url")).
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows([]string{"file_url"}).AddRow("https://x/v1/a.pdf").AddRow(nil))

	urls, err := repo.DeleteByClassGroup(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/v1/a.pdf"}, urls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentSoftDeleteLegacy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("NOT (year = ANY($2)) OR NOT (semester = ANY($3))")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.SoftDeleteLegacy(context.Background(), []int{1, 2, 3}, []int{1, 2}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
