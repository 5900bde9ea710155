// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Two implementations exist: internal/platform/postgres for production and
// internal/platform/memory for local development and tests.
package store
