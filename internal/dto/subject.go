package dto

// CreateSubjectRequest registers a subject container.
type CreateSubjectRequest struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Year     int      `json:"year" validate:"required"`
	Semester int      `json:"semester" validate:"required"`
	Group    string   `json:"group" validate:"required,max=100"`
	DataType string   `json:"dataType" validate:"required,max=100"`
	Files    []string `json:"files"`
}

// UpdateSubjectRequest edits a subject; omitted fields are unchanged.
type UpdateSubjectRequest struct {
	Name     *string   `json:"name" validate:"omitempty,min=1,max=255"`
	Year     *int      `json:"year"`
	Semester *int      `json:"semester"`
	Group    *string   `json:"group" validate:"omitempty,min=1,max=100"`
	DataType *string   `json:"dataType" validate:"omitempty,min=1,max=100"`
	Files    *[]string `json:"files"`
}

// SubjectQuery holds list filters for subjects.
type SubjectQuery struct {
	Year     *int   `form:"year"`
	Semester *int   `form:"semester"`
	Group    string `form:"group"`
	DataType string `form:"dataType"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
