package grading

import "github.com/abhisek/lessonstream/internal/llm"

// VerdictSchema is the structured output of a grading call.
var VerdictSchema = &llm.Schema{
	Name:        "answer-verdict",
	Description: "Whether the student's answer is correct, with an explanation when it is not",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isCorrect": map[string]any{
				"type": "boolean",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the answer is incorrect. Empty when it is correct.",
			},
		},
		"required":             []any{"isCorrect", "explanation"},
		"additionalProperties": false,
	},
}
