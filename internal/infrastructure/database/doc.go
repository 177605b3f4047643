// Package database opens the SQLite file behind the task journal and the
// admin event log, and applies the schema migrations embedded by the
// top-level migrations package.
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each one is applied in its own transaction
// and recorded in schema_migrations.
package database
