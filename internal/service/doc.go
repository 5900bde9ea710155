// Package service contains the application use cases: creating and listing
// flashcards, registering and authenticating users, and running AI
// generation sessions whose suggestions users approve into flashcards.
//
// Services depend on the store interfaces and on domain types only. They
// receive their dependencies through constructors, apply transactional
// boundaries through store.Transactor when an operation spans several
// stores, and report expected conditions with sentinel errors that the API
// layer maps to HTTP responses.
package service
