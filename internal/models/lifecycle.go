package models

import "time"

// RetentionWindow is how long a soft-deleted record stays restorable.
const RetentionWindow = 90 * 24 * time.Hour

// DocumentKind groups records for lifecycle operations.
type DocumentKind string

const (
	KindSubjectFile  DocumentKind = "subject-file"
	KindNotification DocumentKind = "notification"
	KindSubject      DocumentKind = "subject"
)

// LifecycleState is the derived state of a record.
type LifecycleState string

const (
	StateActive      LifecycleState = "active"
	StateSoftDeleted LifecycleState = "soft-deleted"
	StatePurged      LifecycleState = "purged"
)

// LifecycleTarget addresses a record by kind and, for notifications, category.
type LifecycleTarget struct {
	Kind     DocumentKind
	Category DocumentType
}

// Matches reports whether a stored record type belongs to the target.
func (t LifecycleTarget) Matches(recordType DocumentType) bool {
	switch t.Kind {
	case KindSubject:
		return recordType == ""
	case KindSubjectFile:
		return recordType == DocumentTypeSubject
	case KindNotification:
		if t.Category != "" {
			return recordType == t.Category
		}
		return recordType.IsNotification()
	}
	return false
}

// LifecycleRecord is the minimal projection the lifecycle manager works on.
type LifecycleRecord struct {
	ID        string       `db:"id"`
	Type      DocumentType `db:"type"`
	Title     string       `db:"title"`
	BlobURL   *string      `db:"blob_url"`
	Deleted   bool         `db:"deleted"`
	DeletedAt *time.Time   `db:"deleted_at"`
}

// State derives the lifecycle state of a stored record.
func (r *LifecycleRecord) State() LifecycleState {
	if r.Deleted {
		return StateSoftDeleted
	}
	return StateActive
}

// PurgeEligibleAt is when a soft-deleted record becomes purgeable.
func (r *LifecycleRecord) PurgeEligibleAt() *time.Time {
	if r.DeletedAt == nil {
		return nil
	}
	at := r.DeletedAt.Add(RetentionWindow)
	return &at
}

// PurgeReport summarises one sweep.
type PurgeReport struct {
	Cutoff       time.Time `json:"cutoff"`
	Scanned      int       `json:"scanned"`
	Purged       int       `json:"purged"`
	BlobsDeleted int       `json:"blobsDeleted"`
	BlobFailures int       `json:"blobFailures"`
	Missing      int       `json:"missing"`
	Failures     int       `json:"failures"`
	Skipped      bool      `json:"skipped"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// DeletedEntry is one line of the deleted-items ledger.
type DeletedEntry struct {
	ID        string       `db:"id" json:"id"`
	Kind      DocumentKind `db:"kind" json:"kind"`
	Type      DocumentType `db:"type" json:"type,omitempty"`
	Title     string       `db:"title" json:"title"`
	DeletedAt time.Time    `db:"deleted_at" json:"deletedAt"`
}
