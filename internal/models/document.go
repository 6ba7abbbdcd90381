package models

import "time"

// DocumentType is the stored discriminator of a documents row.
type DocumentType string

const (
	DocumentTypeSubject     DocumentType = "subject"
	DocumentTypeExamination DocumentType = "examination"
	DocumentTypeCirculars   DocumentType = "circulars"
	DocumentTypeJobs        DocumentType = "jobs"
)

// NotificationCategories lists the notification feeds in display order.
var NotificationCategories = []DocumentType{DocumentTypeExamination, DocumentTypeCirculars, DocumentTypeJobs}

// IsNotification reports whether t is a notification category.
func (t DocumentType) IsNotification() bool {
	return t == DocumentTypeExamination || t == DocumentTypeCirculars || t == DocumentTypeJobs
}

// Kind maps the stored type to its lifecycle kind.
func (t DocumentType) Kind() DocumentKind {
	if t.IsNotification() {
		return KindNotification
	}
	return KindSubjectFile
}

// ClassGroupAll marks notifications addressed to every class group.
const ClassGroupAll = "all"

// Document is a subject file or a notification.
type Document struct {
	ID             string       `db:"id" json:"id"`
	Type           DocumentType `db:"type" json:"type"`
	Title          string       `db:"title" json:"title"`
	FileURL        *string      `db:"file_url" json:"fileUrl,omitempty"`
	Link           *string      `db:"link" json:"link,omitempty"`
	UploadedBy     *string      `db:"uploaded_by" json:"uploadedBy,omitempty"`
	UploadedByRole Role         `db:"uploaded_by_role" json:"uploadedByRole"`
	ClassGroup     string       `db:"class_group" json:"classGroup"`
	Year           *int         `db:"year" json:"year,omitempty"`
	Semester       *int         `db:"semester" json:"semester,omitempty"`
	Deleted        bool         `db:"deleted" json:"deleted"`
	DeletedAt      *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// Target returns the URL a download should redirect to.
func (d *Document) Target() string {
	if d.FileURL != nil && *d.FileURL != "" {
		return *d.FileURL
	}
	if d.Link != nil {
		return *d.Link
	}
	return ""
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Type       DocumentType
	ClassGroup string
	Year       *int
	Semester   *int
	Deleted    bool
	Page       int
	PageSize   int
}

// DocumentPatch carries editable document fields; nil leaves a field unchanged.
type DocumentPatch struct {
	Title      *string
	ClassGroup *string
	Year       *int
	Semester   *int
	Link       *string
}
