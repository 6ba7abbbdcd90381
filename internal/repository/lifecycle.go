package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// minID sorts before every UUID and seeds keyset scans.
const minID = "00000000-0000-0000-0000-000000000000"

// transition flips the deleted flag of one row only when it currently holds
// the opposite value. A zero-row result is classified as missing or conflict.
func transition(ctx context.Context, db *sqlx.DB, table, id string, toDeleted bool, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted = FALSE, deleted_at = NULL, updated_at = $2 WHERE id = $1 AND deleted = TRUE`, table)
	if toDeleted {
		query = fmt.Sprintf(`UPDATE %s SET deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted = FALSE`, table)
	}
	res, err := db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("update %s lifecycle: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s lifecycle rows: %w", table, err)
	}
	if affected > 0 {
		return nil
	}
	return classifyMiss(ctx, db, table, id)
}

func classifyMiss(ctx context.Context, db *sqlx.DB, table, id string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := db.GetContext(ctx, &exists, query, id); err != nil {
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrStateConflict
}

func removeRow(ctx context.Context, db *sqlx.DB, table, id string) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("delete %s row: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s delete rows: %w", table, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsMissing reports whether err means the row does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
