package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateCardsFn allows test cases to mock the GenerateCards behavior
	GenerateCardsFn func(ctx context.Context, inputText string) ([]domain.Suggestion, error)

	// Default response values
	Suggestions []domain.Suggestion
	Err         error
	ModelName   string

	mu         sync.Mutex
	callCount  int
	inputTexts []string
}

var _ generation.Generator = (*MockGenerator)(nil)

// GenerateCards implements the generation.Generator interface
func (m *MockGenerator) GenerateCards(ctx context.Context, inputText string) ([]domain.Suggestion, error) {
	m.mu.Lock()
	m.callCount++
	m.inputTexts = append(m.inputTexts, inputText)
	m.mu.Unlock()

	if m.GenerateCardsFn != nil {
		return m.GenerateCardsFn(ctx, inputText)
	}
	return m.Suggestions, m.Err
}

// Model implements the generation.Generator interface
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// CallCount returns how many times GenerateCards was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// InputTexts returns the texts passed to GenerateCards, in call order.
func (m *MockGenerator) InputTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputTexts...)
}

// NewMockGeneratorWithSuggestions creates a MockGenerator returning one
// suggestion per front/back pair.
func NewMockGeneratorWithSuggestions(pairs ...[2]string) *MockGenerator {
	suggestions := make([]domain.Suggestion, 0, len(pairs))
	for _, p := range pairs {
		suggestions = append(suggestions, domain.NewSuggestion(p[0], p[1]))
	}
	return &MockGenerator{Suggestions: suggestions}
}

// NewMockGeneratorWithError creates a MockGenerator that returns the specified error
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}
