// Package gemini implements generation.Generator on top of Google's Gemini API
// (google.golang.org/genai).
//
// The generator renders an embedded prompt template around the user's input
// text, asks the model for a JSON document of cards, and converts the result
// into domain.Suggestion values. Transient API failures are retried with
// exponential backoff and jitter; safety blocks and malformed responses are
// reported immediately as permanent failures.
package gemini
