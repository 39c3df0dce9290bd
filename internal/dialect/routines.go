package dialect

import (
	"context"
	"database/sql"
	"fmt"
)

// scanRoutineNames reads the Name column (index 1) out of a SHOW FUNCTION
// STATUS / SHOW PROCEDURE STATUS result set, which carries a driver-specific
// number of trailing columns we don't otherwise need.
func scanRoutineNames(rows *sql.Rows) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("unexpected routine status column count: %d", len(cols))
	}

	var names []string
	for rows.Next() {
		dest := make([]sql.RawBytes, len(cols))
		scanDest := make([]any, len(cols))
		for i := range dest {
			scanDest[i] = &dest[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("scan routine status row: %w", err)
		}
		names = append(names, string(dest[1]))
	}
	return names, rows.Err()
}

// showCreateRoutine runs SHOW CREATE FUNCTION/PROCEDURE and returns the
// CREATE text found in the given result column index (2 for both).
func (e *MySQLExtractor) showCreateRoutine(ctx context.Context, kind, name string, createColumn int) (string, error) {
	row := e.db.QueryRowContext(ctx, fmt.Sprintf("SHOW CREATE %s `%s`", kind, name))
	cols := routineShowCreateColumnCount(kind)
	dest := make([][]byte, cols)
	scanDest := make([]any, cols)
	for i := range dest {
		scanDest[i] = &dest[i]
	}
	if err := row.Scan(scanDest...); err != nil {
		return "", fmt.Errorf("show create %s %s: %w", kind, name, err)
	}
	return string(dest[createColumn]) + ";", nil
}

// routineShowCreateColumnCount mirrors MySQL's SHOW CREATE FUNCTION/PROCEDURE
// result shape: Name, sql_mode, Create <kind>, character_set_client,
// collation_connection, Database Collation -- 6 columns, CREATE text at
// index 2.
func routineShowCreateColumnCount(kind string) int {
	return 6
}

func (e *MySQLExtractor) listProcedures(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SHOW PROCEDURE STATUS WHERE Db = ?`, e.dbName)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	defer rows.Close()
	return scanRoutineNames(rows)
}

func (e *MySQLExtractor) listTriggers(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SHOW TRIGGERS`)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		dest := make([]sql.RawBytes, len(cols))
		scanDest := make([]any, len(cols))
		for i := range dest {
			scanDest[i] = &dest[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("scan trigger row: %w", err)
		}
		names = append(names, string(dest[0]))
	}
	return names, rows.Err()
}

func (e *MySQLExtractor) showCreateTrigger(ctx context.Context, name string) (string, error) {
	row := e.db.QueryRowContext(ctx, fmt.Sprintf("SHOW CREATE TRIGGER `%s`", name))
	dest := make([][]byte, 7)
	scanDest := make([]any, len(dest))
	for i := range dest {
		scanDest[i] = &dest[i]
	}
	if err := row.Scan(scanDest...); err != nil {
		return "", fmt.Errorf("show create trigger %s: %w", name, err)
	}
	return string(dest[2]) + ";", nil
}
