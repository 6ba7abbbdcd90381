package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupacket-api/internal/models"
)

func TestSubjectCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Subject{Name: "Physics", Year: 1, Semester: 1, Group: "A", DataType: "notes"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectFindActiveDuplicateNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`AND data_type = $5 AND deleted = FALSE`)).
		WithArgs("Physics", 1, 1, "A", "notes").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveDuplicate(context.Background(), &models.Subject{Name: "Physics", Year: 1, Semester: 1, Group: "A", DataType: "notes"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	sem := 2
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM subjects WHERE deleted = $1 AND semester = $2 AND "group" = $3`)).
		WithArgs(false, 2, "B").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name, id LIMIT $4 OFFSET $5")).
		WithArgs(false, 2, "B", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "year", "semester", "group", "data_type", "files", "deleted", "deleted_at", "created_at", "updated_at"}).
			AddRow("s1", "Chemistry", 1, 2, "B", "notes", "{a.pdf,b.pdf}", false, nil, now, now))

	subjects, total, err := repo.List(context.Background(), models.SubjectFilter{Semester: &sem, Group: "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, subjects, 1)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, []string(subjects[0].Files))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectMarkDeletedConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET deleted = TRUE")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.MarkDeleted(context.Background(), "s1", time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectClearDeletedDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET deleted = FALSE")).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.ClearDeleted(context.Background(), "s1", time.Now())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectLookupHasNoBlob(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("NULL AS blob_url")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "title", "blob_url", "deleted", "deleted_at"}).
			AddRow("s1", "", "Physics", nil, true, now))

	rec, err := repo.Lookup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, rec.BlobURL)
	assert.Equal(t, models.StateSoftDeleted, rec.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}
