// Package generation defines the port between the application and the AI/LLM
// services that turn user-supplied text into flashcard suggestions.
//
// The Generator interface is implemented by the Gemini adapter in
// internal/platform/gemini and by function-field mocks in internal/mocks.
// Errors returned by implementations wrap the sentinels declared here so that
// callers can distinguish transient failures from blocked or malformed output.
package generation
