package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

type subjectRepoStub struct {
	duplicate  *models.Subject
	createErr  error
	created    []*models.Subject
	updateErr  error
	listFilter models.SubjectFilter
	listCalls  int
	deleted    int64
}

func (s *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	if s.createErr != nil {
		return s.createErr
	}
	subject.ID = "subject-1"
	s.created = append(s.created, subject)
	return nil
}

func (s *subjectRepoStub) FindActiveDuplicate(ctx context.Context, subject *models.Subject) (*models.Subject, error) {
	if s.duplicate == nil {
		return nil, sql.ErrNoRows
	}
	return s.duplicate, nil
}

func (s *subjectRepoStub) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	s.listFilter = filter
	s.listCalls++
	return []models.Subject{{ID: "subject-1"}}, 1, nil
}

func (s *subjectRepoStub) Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	subject := &models.Subject{ID: id, Name: "Physics"}
	if patch.Name != nil {
		subject.Name = *patch.Name
	}
	return subject, nil
}

func (s *subjectRepoStub) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleted, nil
}

func validSubjectRequest() dto.CreateSubjectRequest {
	return dto.CreateSubjectRequest{Name: "Physics", Year: 1, Semester: 2, Group: "MPC", DataType: "notes"}
}

func TestSubjectCreate(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, &auditStub{}, nil, nil)

	subject, err := svc.Create(context.Background(), validSubjectRequest(), testTeacher)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", subject.ID)
	assert.Len(t, repo.created, 1)
}

func TestSubjectCreateRequiresAllFields(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)
	req := validSubjectRequest()
	req.DataType = ""

	_, err := svc.Create(context.Background(), req, testTeacher)
	require.Error(t, err)
	assert.Equal(t, "Missing required fields", appErrors.FromError(err).Message)
}

func TestSubjectCreateDuplicateIsConflict(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{duplicate: &models.Subject{ID: "existing"}}, nil, nil, nil)
	_, err := svc.Create(context.Background(), validSubjectRequest(), testTeacher)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	svc = NewSubjectService(&subjectRepoStub{createErr: repository.ErrDuplicate}, nil, nil, nil)
	_, err = svc.Create(context.Background(), validSubjectRequest(), testTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestSubjectListForcesActiveView(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, nil, nil, nil)

	subjects, page, err := svc.List(context.Background(), models.SubjectFilter{Deleted: true, Group: "MPC"})
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	assert.False(t, repo.listFilter.Deleted)
	assert.Equal(t, "MPC", repo.listFilter.Group)
	assert.Equal(t, 1, page.TotalCount)

	_, _, err = svc.ListDeleted(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, repo.listFilter.Deleted)
}

func TestSubjectUpdateMapsErrors(t *testing.T) {
	name := " Chemistry "
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)
	subject, err := svc.Update(context.Background(), subjectID, dto.UpdateSubjectRequest{Name: &name}, testTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", subject.Name)

	svc = NewSubjectService(&subjectRepoStub{updateErr: sql.ErrNoRows}, nil, nil, nil)
	_, err = svc.Update(context.Background(), subjectID, dto.UpdateSubjectRequest{Name: &name}, testTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewSubjectService(&subjectRepoStub{updateErr: repository.ErrDuplicate}, nil, nil, nil)
	_, err = svc.Update(context.Background(), subjectID, dto.UpdateSubjectRequest{Name: &name}, testTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestSubjectBulkDelete(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{deleted: 7}, nil, nil, nil)
	result, err := svc.BulkDelete(context.Background(), testAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.DeletedCount)
	assert.Equal(t, "All subjects deleted", result.Message)
}

func TestSubjectRejectsBlankFields(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, nil, nil, nil)

	req := validSubjectRequest()
	req.Name = "  "
	_, err := svc.Create(context.Background(), req, testTeacher)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.created)

	blankGroup := " \t"
	_, err = svc.Update(context.Background(), subjectID, dto.UpdateSubjectRequest{Group: &blankGroup}, testTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubjectUpdateMalformedIDIsNotFound(t *testing.T) {
	name := "Chemistry"
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)
	_, err := svc.Update(context.Background(), "s-1", dto.UpdateSubjectRequest{Name: &name}, testTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
