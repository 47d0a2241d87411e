package domain

// Verdict is the outcome of evaluating one message against a Policy.
// Reason is for logs only.
type Verdict struct {
	Forward bool     `json:"forward"`
	Matched []string `json:"matched"`
	Reason  string   `json:"reason"`
}
