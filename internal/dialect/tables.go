package dialect

import (
	"context"
	"fmt"
	"strings"

	"backy/internal/depsort"
	"backy/internal/sqlvalue"
)

// sortedTables lists every base table, dependency-ordered by foreign key
// (child after referenced parent), grounded on
// original_source/databases/mysql_database.py's get_tables_sorted.
func (e *MySQLExtractor) sortedTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, e.dbName)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	fkRows, err := e.db.QueryContext(ctx, `
		SELECT TABLE_NAME, REFERENCED_TABLE_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`, e.dbName)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	defer fkRows.Close()

	deps := make(depsort.Graph)
	for _, n := range names {
		deps[n] = nil
	}
	for fkRows.Next() {
		var child, parent string
		if err := fkRows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		deps[child] = append(deps[child], parent)
	}
	if err := fkRows.Err(); err != nil {
		return nil, err
	}

	return depsort.SortOrdered(deps, names)
}

func (e *MySQLExtractor) showCreateTable(ctx context.Context, table string) (string, error) {
	row := e.db.QueryRowContext(ctx, fmt.Sprintf("SHOW CREATE TABLE `%s`", table))
	var name, createStmt string
	if err := row.Scan(&name, &createStmt); err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	return createStmt + ";", nil
}

// insertStatement streams every row of table into one INSERT statement.
// Rows are read and appended incrementally rather than buffered as a
// []map beforehand, bounding peak memory to one row plus the accumulated
// statement text. The statement is still held in memory as a single string:
// the container writer's payload argument is a []byte, not an io.Reader, so
// the full INSERT has to be assembled before it can be handed off.
func (e *MySQLExtractor) insertStatement(ctx context.Context, table string) (string, bool, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM `%s`", table))
	if err != nil {
		return "", false, fmt.Errorf("select * from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO `%s` VALUES\n", table)

	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		scanDest := make([]any, len(cols))
		for i := range values {
			scanDest[i] = &values[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return "", false, fmt.Errorf("scan row from %s: %w", table, err)
		}

		rowSQL, err := sqlvalue.EncodeRow(values)
		if err != nil {
			return "", false, fmt.Errorf("encode row from %s: %w", table, err)
		}

		if count > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("\t(")
		b.WriteString(rowSQL)
		b.WriteString(")")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	if count == 0 {
		return "", true, nil
	}
	b.WriteString(";")
	return b.String(), false, nil
}
