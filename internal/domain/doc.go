// Package domain defines the core business entities of the cards API:
// users, flashcards and AI generation sessions, together with the
// flashcard query algorithm that filters, sorts and pages a user's
// collection. It has no dependencies on storage or transport.
package domain
