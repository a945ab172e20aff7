package model

// SynthesisOutcome is the final rendered recommendation for a ticket.
// WordCount is always <= 500 after truncation. UsedFallback=true means the
// text was built directly from the gathered context without a backend call.
type SynthesisOutcome struct {
	Text         string `json:"text"`
	WordCount    int    `json:"word_count"`
	UsedFallback bool   `json:"used_fallback"`
	ModelTokens  int    `json:"model_tokens"`
}
