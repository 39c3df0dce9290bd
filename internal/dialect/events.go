package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"backy/internal/backyerrors"
)

var enableKeyword = regexp.MustCompile(`(?i)\bENABLE\b`)

// eventProducers builds the event producer chain: one per event's
// (now DISABLE'd) CREATE statement, followed by a trailer producer that
// re-enables every event that was originally enabled. Grounded on
// original_source/databases/mysql_database.py's create_events_statements.
func (e *MySQLExtractor) eventProducers(ctx context.Context) ([]producer, error) {
	rows, err := e.db.QueryContext(ctx, `SHOW EVENTS WHERE Db = ?`, e.dbName)
	if err != nil {
		return nil, backyerrors.NewExtractionFailed(string(FeatureEvents), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, backyerrors.NewExtractionFailed(string(FeatureEvents), err)
	}

	type eventRow struct {
		name   string
		status string
	}
	var events []eventRow
	for rows.Next() {
		dest := make([]sql.RawBytes, len(cols))
		scanDest := make([]any, len(cols))
		for i := range dest {
			scanDest[i] = &dest[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, backyerrors.NewExtractionFailed(string(FeatureEvents), err)
		}
		// SHOW EVENTS: Db, Name, Definer, Time zone, Type, Execute at,
		// Interval value, Interval field, Starts, Ends, Status, ...
		events = append(events, eventRow{name: string(dest[1]), status: string(dest[10])})
	}
	if err := rows.Err(); err != nil {
		return nil, backyerrors.NewExtractionFailed(string(FeatureEvents), err)
	}

	var producers []producer
	var enabledNames []string

	for _, ev := range events {
		ev := ev
		if ev.status == "ENABLED" {
			enabledNames = append(enabledNames, ev.name)
		}
		producers = append(producers, func(ctx context.Context) (Statement, error) {
			createStmt, err := e.showCreateEvent(ctx, ev.name)
			if err != nil {
				return Statement{}, backyerrors.NewExtractionFailed(string(FeatureEvents), err)
			}
			// Only the first ENABLE (the scheduling clause) is rewritten;
			// a definer or comment could legitimately contain the word too.
			disabled := replaceFirst(enableKeyword, createStmt, "DISABLE")
			return Statement{Feature: FeatureEvents, SQL: wrapDelimiter(disabled)}, nil
		})
	}

	if len(enabledNames) > 0 {
		names := enabledNames
		producers = append(producers, func(ctx context.Context) (Statement, error) {
			var sqlText string
			for _, name := range names {
				sqlText += fmt.Sprintf("ALTER EVENT `%s` ENABLE;\n", name)
			}
			return Statement{Feature: FeatureEvents, SQL: sqlText}, nil
		})
	}

	return producers, nil
}

func (e *MySQLExtractor) showCreateEvent(ctx context.Context, name string) (string, error) {
	row := e.db.QueryRowContext(ctx, fmt.Sprintf("SHOW CREATE EVENT `%s`", name))
	// Event, sql_mode, time_zone, Create Event, character_set_client,
	// collation_connection, Database Collation
	dest := make([][]byte, 7)
	scanDest := make([]any, len(dest))
	for i := range dest {
		scanDest[i] = &dest[i]
	}
	if err := row.Scan(scanDest...); err != nil {
		return "", fmt.Errorf("show create event %s: %w", name, err)
	}
	return string(dest[3]) + ";", nil
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
