// Package mocks provides shared mock implementations for testing.
//
// Most mocks use function fields with in-memory defaults: set a Fn field to
// override one method and leave the rest alone. TestifyMockUserStore is the
// exception and is driven by testify/mock expectations.
//
//	gen := &mocks.MockGenerator{
//	    GenerateCardsFn: func(ctx context.Context, text string) ([]domain.Suggestion, error) {
//	        return nil, generation.ErrContentBlocked
//	    },
//	}
package mocks
