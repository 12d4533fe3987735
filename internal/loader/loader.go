package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// Conflict policies.
const (
	ConflictDoNothing = "do_nothing"
	ConflictUpdate    = "update"
)

// Loader bulk-inserts normalized rows into a time-series table under a
// conflict policy. Table and column names are resolved exclusively through
// the canonicalColumns whitelist; only values are ever bound as parameters.
type Loader struct {
	db          *sqlx.DB
	disableBulk bool
}

// NewLoader constructs a Loader. disableBulk forces the row-by-row path
// even under ConflictDoNothing, an escape hatch for when the bulk path
// needs to be disabled.
func NewLoader(db *sqlx.DB, disableBulk bool) *Loader {
	return &Loader{db: db, disableBulk: disableBulk}
}

// Result reports what a Load call did, distinguishing rows *affected* from
// rows *attempted*.
type Result struct {
	Attempted int
	Affected  int
	Skipped   int
}

// Load inserts rows into the table for assetType under policy. Returns the
// number of rows affected (inserted or updated), not rows attempted.
func (l *Loader) Load(ctx context.Context, assetType string, rows []NormalizedRow, policy string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, nil
	}

	table, ok := domain.TableForAssetType(assetType)
	if !ok {
		return Result{}, fmt.Errorf("loader: unrecognized asset type %q", assetType)
	}
	columns, ok := canonicalColumns[table]
	if !ok {
		return Result{}, fmt.Errorf("loader: no canonical columns for table %q", table)
	}

	result := Result{Attempted: len(rows)}

	useBulk := policy == ConflictDoNothing && !l.disableBulk
	if useBulk {
		affected, err := l.loadBulk(ctx, table, columns, rows)
		if err != nil {
			return result, err
		}
		result.Affected = affected
		result.Skipped = result.Attempted - affected
		return result, nil
	}

	affected, err := l.loadRowByRow(ctx, table, columns, rows, policy)
	if err != nil {
		return result, err
	}
	result.Affected = affected
	result.Skipped = result.Attempted - affected
	return result, nil
}

// loadBulk stages rows into a temporary table, then moves them with
// INSERT ... SELECT ... ON CONFLICT (asset_id, time) DO NOTHING, so
// duplicates only increment a local skipped counter.
func (l *Loader) loadBulk(ctx context.Context, table string, columns []string, rows []NormalizedRow) (int, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("loader: begin bulk load: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stagingTable := "staging_" + table
	allColumns := append([]string{"asset_id", "time"}, columns...)

	createStaging := fmt.Sprintf(
		`CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`,
		stagingTable, table,
	)
	if _, err := tx.ExecContext(ctx, createStaging); err != nil {
		return 0, fmt.Errorf("loader: create staging table: %w", err)
	}

	insertCols := strings.Join(allColumns, ", ")

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		stagingTable, insertCols, placeholderList(len(allColumns)),
	))
	if err != nil {
		return 0, fmt.Errorf("loader: prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, 0, len(allColumns))
		args = append(args, row.AssetID, row.Time)
		for _, col := range columns {
			args = append(args, row.Columns[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("loader: insert into staging: %w", err)
		}
	}

	moveQuery := fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (asset_id, time) DO NOTHING`,
		table, insertCols, insertCols, stagingTable,
	)
	res, err := tx.ExecContext(ctx, moveQuery)
	if err != nil {
		return 0, fmt.Errorf("loader: move staged rows: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("loader: move staged rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("loader: commit bulk load: %w", err)
	}

	return int(affected), nil
}

// loadRowByRow inserts one row at a time, used for the update policy or
// when the bulk path is disabled.
func (l *Loader) loadRowByRow(ctx context.Context, table string, columns []string, rows []NormalizedRow, policy string) (int, error) {
	allColumns := append([]string{"asset_id", "time"}, columns...)
	insertCols := strings.Join(allColumns, ", ")

	var conflictClause string
	switch policy {
	case ConflictUpdate:
		sets := make([]string, len(columns))
		for i, col := range columns {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
		conflictClause = fmt.Sprintf("ON CONFLICT (asset_id, time) DO UPDATE SET %s", strings.Join(sets, ", "))
	default:
		conflictClause = "ON CONFLICT (asset_id, time) DO NOTHING"
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) %s`,
		table, insertCols, placeholderList(len(allColumns)), conflictClause,
	)

	stmt, err := l.db.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("loader: prepare row insert: %w", err)
	}
	defer stmt.Close()

	affected := 0
	for _, row := range rows {
		args := make([]any, 0, len(allColumns))
		args = append(args, row.AssetID, row.Time)
		for _, col := range columns {
			args = append(args, row.Columns[col])
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return affected, fmt.Errorf("loader: insert row: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, fmt.Errorf("loader: insert row: %w", err)
		}
		affected += int(n)
	}

	return affected, nil
}

func placeholderList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
