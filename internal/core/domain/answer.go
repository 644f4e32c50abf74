package domain

type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Verdict is the judge pass result over a drafted answer.
type Verdict struct {
	IsGrounded  bool   `json:"is_grounded"`
	Confidence  int    `json:"confidence"`
	Explanation string `json:"explanation"`
}

type SourceRef struct {
	Source      string `json:"source"`
	TextPreview string `json:"text_preview"`
}

type VerifiedAnswer struct {
	Answer           string      `json:"answer"`
	Confidence       int         `json:"confidence"`
	IsGrounded       bool        `json:"is_grounded"`
	VerificationNote string      `json:"verification_note"`
	Sources          []SourceRef `json:"sources"`

	// Set when the judge response could not be parsed and the neutral
	// default verdict was used.
	VerificationInconclusive bool `json:"-"`
	GateTripped              bool `json:"-"`
}

type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type QueryResult struct {
	Answer           string      `json:"answer"`
	Confidence       int         `json:"confidence"`
	IsGrounded       bool        `json:"is_grounded"`
	VerificationNote string      `json:"verification_note,omitempty"`
	Sources          []SourceRef `json:"sources"`
	ConversationID   string      `json:"conversation_id"`
}
