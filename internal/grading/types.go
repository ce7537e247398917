// Package grading checks a learner's answer with a second LLM call.
package grading

// Request is an answer to check. Choices is set for multiple choice
// questions, with ExpectedAnswer holding the correct choice.
type Request struct {
	Question       string   `json:"question"`
	UserAnswer     string   `json:"userAnswer"`
	ExpectedAnswer string   `json:"expectedAnswer"`
	Choices        []string `json:"choices,omitempty"`
}

// Verdict is the grader's decision. Explanation is empty when the model
// gave none.
type Verdict struct {
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation,omitempty"`
}
