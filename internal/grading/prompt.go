package grading

import (
	"fmt"
	"strings"
)

const systemPrompt = `Your task is to check the student's answer. If the answer is incorrect, please explain to the student why it is incorrect. At multiple-choice questions, decide if the student's answer is the closest to the correct answer from the choices available. If the answer is partially correct accept it as the correct answer.`

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The question was: %q\n", req.Question)
	fmt.Fprintf(&b, "The student answered: %q\n", req.UserAnswer)
	fmt.Fprintf(&b, "The correct answer is: %q\n", req.ExpectedAnswer)
	if len(req.Choices) > 0 {
		numbered := make([]string, len(req.Choices))
		for i, c := range req.Choices {
			numbered[i] = fmt.Sprintf("%d. %s", i+1, c)
		}
		b.WriteString("The choices were: " + strings.Join(numbered, ", "))
	}
	b.WriteString("\nIs the student's answer correct? If not, explain why.")
	return b.String()
}
