package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
	"github.com/noah-isme/edupacket-api/pkg/export"
)

const ledgerDateLayout = "2006-01-02 15:04 MST"

type deletedLedgerSource interface {
	DeletedEntries(ctx context.Context) ([]models.DeletedEntry, error)
}

// ExportResult is a rendered ledger ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the ledger of soft-deleted records.
type ExportService struct {
	documents deletedLedgerSource
	subjects  deletedLedgerSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs the service.
func NewExportService(documents, subjects deletedLedgerSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{documents: documents, subjects: subjects, logger: logger, now: time.Now}
}

// ExportDeleted lists every soft-deleted record with the date it becomes
// eligible for purge, most recently deleted first.
func (s *ExportService) ExportDeleted(ctx context.Context, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, invalid("format must be csv or pdf")
	}

	entries, err := s.documents.DeletedEntries(ctx)
	if err != nil {
		return nil, internal(err, "failed to load deleted documents")
	}
	subjects, err := s.subjects.DeletedEntries(ctx)
	if err != nil {
		return nil, internal(err, "failed to load deleted subjects")
	}
	entries = append(entries, subjects...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeletedAt.After(entries[j].DeletedAt)
	})

	table := export.Table{
		Title:   "Deleted items",
		Columns: []string{"ID", "Kind", "Category", "Title", "Deleted At", "Purge Eligible At"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		deletedAt := entry.DeletedAt.UTC()
		table.Rows = append(table.Rows, []string{
			entry.ID,
			string(entry.Kind),
			string(entry.Type),
			entry.Title,
			deletedAt.Format(ledgerDateLayout),
			deletedAt.Add(models.RetentionWindow).Format(ledgerDateLayout),
		})
	}

	body, err := export.Render(format, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("deleted ledger exported", zap.String("format", string(format)), zap.Int("rows", len(entries)))
	return &ExportResult{
		Filename:    fmt.Sprintf("deleted-items-%s.%s", s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}
