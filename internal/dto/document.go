package dto

import "io"

// UploadFile is a file part received from a multipart request.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadSubjectFileRequest carries the form fields of a subject file upload.
type UploadSubjectFileRequest struct {
	Title      string `form:"title" validate:"required,max=255"`
	ClassGroup string `form:"classGroup" validate:"required,max=100"`
	Year       *int   `form:"year" validate:"required"`
	Semester   *int   `form:"semester" validate:"required"`
}

// UploadNotificationRequest carries the form fields of a notification upload.
type UploadNotificationRequest struct {
	Title      string `form:"title" validate:"required,max=255"`
	Link       string `form:"link" validate:"omitempty,url"`
	ClassGroup string `form:"classGroup" validate:"omitempty,max=100"`
}

// UpdateDocumentRequest edits document metadata; omitted fields are unchanged.
type UpdateDocumentRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=255"`
	ClassGroup *string `json:"classGroup" validate:"omitempty,min=1,max=100"`
	Year       *int    `json:"year"`
	Semester   *int    `json:"semester"`
	Link       *string `json:"link" validate:"omitempty,url"`
}

// DocumentQuery holds list filters for subject files.
type DocumentQuery struct {
	ClassGroup string `form:"classGroup"`
	Year       *int   `form:"year"`
	Semester   *int   `form:"semester"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

// BulkDeleteResult reports how many records a bulk delete removed.
type BulkDeleteResult struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// LegacyCleanupResult reports the outcome of a legacy cleanup run.
type LegacyCleanupResult struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}
