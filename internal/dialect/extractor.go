// Package dialect implements C3, the MySQL dialect extractor: given a live
// connection and a set of enabled features, it emits a lazy sequence of
// (feature, SQL) statements in the fixed order tables -> data -> views ->
// functions -> procedures -> triggers -> events, ready for the chunk
// container (C5) to persist.
//
// Grounded on the teacher's internal/schema/extractor.go information-schema
// query idiom and original_source/databases/mysql_database.py for exact
// per-feature emission semantics (dependency mining, event rewrite,
// DELIMITER wrapping).
package dialect

import (
	"context"
	"database/sql"
	"fmt"

	"backy/internal/backyerrors"
)

// MySQLExtractor extracts DDL/DML for one database over an already-open
// *sql.DB.
type MySQLExtractor struct {
	db     *sql.DB
	dbName string
}

func NewMySQLExtractor(db *sql.DB, dbName string) *MySQLExtractor {
	return &MySQLExtractor{db: db, dbName: dbName}
}

// producer lazily materializes one Statement, run in the order the Iterator
// was built with.
type producer func(ctx context.Context) (Statement, error)

// Iterator is the lazy (feature, sql) sequence the extractor hands to its
// caller; Next returns ok=false once exhausted.
type Iterator struct {
	producers []producer
	pos       int
}

func (it *Iterator) Next(ctx context.Context) (Statement, bool, error) {
	if it.pos >= len(it.producers) {
		return Statement{}, false, nil
	}
	p := it.producers[it.pos]
	it.pos++
	s, err := p(ctx)
	if err != nil {
		return Statement{}, false, err
	}
	return s, true, nil
}

func literal(feature FeatureTag, sql string) producer {
	return func(ctx context.Context) (Statement, error) {
		return Statement{Feature: feature, SQL: sql}, nil
	}
}

func enabled(features []FeatureTag, want FeatureTag) bool {
	for _, f := range features {
		if f == want || f == FeatureFull {
			return true
		}
	}
	return false
}

func firstEnabled(features []FeatureTag) FeatureTag {
	for _, f := range AllFeatures {
		if enabled(features, f) {
			return f
		}
	}
	return ""
}

// Extract builds the lazy statement sequence for the enabled features.
// Per-object name lists (which tables/views/... exist, and their dependency
// order) are resolved eagerly here; the CREATE/INSERT text for each object
// is resolved lazily, one call to Next at a time, so an introspection
// failure partway through still surfaces as ExtractionFailed without having
// materialized later features.
func (e *MySQLExtractor) Extract(ctx context.Context, features []FeatureTag) (*Iterator, error) {
	it := &Iterator{}

	first := firstEnabled(features)
	if first == "" {
		return it, nil
	}
	it.producers = append(it.producers, literal(first,
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`;\nUSE `%s`;\n", e.dbName, e.dbName)))

	var tableOrder []string
	if enabled(features, FeatureTables) || enabled(features, FeatureData) {
		order, err := e.sortedTables(ctx)
		if err != nil {
			return nil, err
		}
		tableOrder = order
	}

	if enabled(features, FeatureTables) {
		for _, table := range tableOrder {
			table := table
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, err := e.showCreateTable(ctx, table)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureTables), err)
				}
				return Statement{Feature: FeatureTables, SQL: sqlText}, nil
			})
		}
	}

	if enabled(features, FeatureData) {
		for _, table := range tableOrder {
			table := table
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, empty, err := e.insertStatement(ctx, table)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureData), err)
				}
				if empty {
					return Statement{Feature: FeatureData, SQL: ""}, nil
				}
				return Statement{Feature: FeatureData, SQL: sqlText}, nil
			})
		}
	}

	if enabled(features, FeatureViews) {
		views, err := e.sortedViews(ctx)
		if err != nil {
			return nil, err
		}
		for _, view := range views {
			view := view
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, err := e.showCreateView(ctx, view)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureViews), err)
				}
				return Statement{Feature: FeatureViews, SQL: sqlText}, nil
			})
		}
	}

	if enabled(features, FeatureFunctions) {
		functions, err := e.sortedFunctions(ctx)
		if err != nil {
			return nil, err
		}
		for _, fn := range functions {
			fn := fn
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, err := e.showCreateRoutine(ctx, "FUNCTION", fn, 2)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureFunctions), err)
				}
				return Statement{Feature: FeatureFunctions, SQL: wrapDelimiter(sqlText)}, nil
			})
		}
	}

	if enabled(features, FeatureProcedures) {
		procs, err := e.listProcedures(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range procs {
			p := p
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, err := e.showCreateRoutine(ctx, "PROCEDURE", p, 2)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureProcedures), err)
				}
				return Statement{Feature: FeatureProcedures, SQL: wrapDelimiter(sqlText)}, nil
			})
		}
	}

	if enabled(features, FeatureTriggers) {
		triggers, err := e.listTriggers(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range triggers {
			t := t
			it.producers = append(it.producers, func(ctx context.Context) (Statement, error) {
				sqlText, err := e.showCreateTrigger(ctx, t)
				if err != nil {
					return Statement{}, backyerrors.NewExtractionFailed(string(FeatureTriggers), err)
				}
				return Statement{Feature: FeatureTriggers, SQL: wrapDelimiter(sqlText)}, nil
			})
		}
	}

	if enabled(features, FeatureEvents) {
		eventProducers, err := e.eventProducers(ctx)
		if err != nil {
			return nil, err
		}
		it.producers = append(it.producers, eventProducers...)
	}

	return it, nil
}

func wrapDelimiter(createStatement string) string {
	return fmt.Sprintf("DELIMITER ;;\n%s;;\nDELIMITER ;", createStatement)
}
