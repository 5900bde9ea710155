// Package memory provides in-process implementations of the store
// interfaces. They back the API when the database URL is "memory" and are
// used by handler and service tests. Data does not survive a restart.
package memory
