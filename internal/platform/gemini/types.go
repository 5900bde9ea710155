package gemini

// promptData is passed to the prompt template.
type promptData struct {
	InputText        string
	MaxContentLength int
}

// ResponseSchema is the JSON document the model is asked to return.
type ResponseSchema struct {
	Cards []CardSchema `json:"cards"`
}

// CardSchema is a single generated flashcard.
type CardSchema struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}
