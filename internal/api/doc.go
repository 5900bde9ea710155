// Package api translates HTTP requests into service calls. Handlers decode
// and validate JSON bodies, resolve the authenticated user and map service
// errors to status codes and client-safe messages.
package api
