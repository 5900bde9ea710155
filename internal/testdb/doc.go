//go:build integration

// Package testdb provides PostgreSQL helpers for integration tests. Tests
// using it are built with the integration tag and skip themselves when
// DATABASE_URL is not set.
package testdb
