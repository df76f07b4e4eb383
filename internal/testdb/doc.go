// Package testdb provides a migrated Postgres database for integration tests.
// It uses the database named by LEDGER_TEST_DATABASE_URL when set, and
// otherwise starts a disposable container. Everything but this file is built
// only with the integration tag.
package testdb
