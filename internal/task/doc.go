// Package task manages background job queuing and processing. Generation
// sessions are turned into tasks that run on a bounded worker pool so that
// slow LLM calls never block HTTP request handling, and unfinished sessions
// are re-queued when the runner starts after a restart.
package task
