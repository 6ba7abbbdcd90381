package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject is a named container grouping study material.
type Subject struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Year      int            `db:"year" json:"year"`
	Semester  int            `db:"semester" json:"semester"`
	Group     string         `db:"group" json:"group"`
	DataType  string         `db:"data_type" json:"dataType"`
	Files     pq.StringArray `db:"files" json:"files"`
	Deleted   bool           `db:"deleted" json:"deleted"`
	DeletedAt *time.Time     `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// SubjectFilter narrows subject listings.
type SubjectFilter struct {
	Year     *int
	Semester *int
	Group    string
	DataType string
	Deleted  bool
	Page     int
	PageSize int
}

// SubjectPatch carries editable subject fields.
type SubjectPatch struct {
	Name     *string
	Year     *int
	Semester *int
	Group    *string
	DataType *string
	Files    *[]string
}
