package gemini

import "errors"

// ErrEmptyInputText is returned when there is no text to generate from.
var ErrEmptyInputText = errors.New("input text cannot be empty")
