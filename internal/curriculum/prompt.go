package curriculum

import (
	"fmt"
	"strings"

	"github.com/abhisek/lessonstream/internal/llm"
)

// TokensPerSection is the default output budget per section.
const TokensPerSection = 120

// DefaultSections is the default curriculum length.
const DefaultSections = 12

// MaxSections bounds the curriculum length a caller may request.
const MaxSections = 50

func systemPrompt(total int) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant that helps users learn about a topic. ")
	b.WriteString("Create a sequential learning experience made of sections. ")
	b.WriteString("A paragraph_section teaches material. A short_answer_section asks a question answerable in a few words. ")
	b.WriteString("A multiple_choice_section asks a question with a list of choices, and correct_choice must be copied exactly from choices. ")
	b.WriteString("Use a mix of all the content types. ")
	b.WriteString("Always give a paragraph that teaches the material before asking questions about it. ")
	fmt.Fprintf(&b, "Produce exactly %d sections. ", total)
	fmt.Fprintf(&b, "Every section has n_sections_remaining, the number of sections after it: the first section has %d, ", total-1)
	b.WriteString("each following section has one less, and the last section is an end_section with n_sections_remaining 0.")
	return b.String()
}

func userPrompt(topic string) string {
	return "The user wants to learn about: " + topic
}

// buildRequest assembles the streaming request for a curriculum.
func buildRequest(topic string, total, tokensPerSection int, temperature float64) llm.Request {
	return llm.Request{
		System:      systemPrompt(total),
		Messages:    llm.UserMessage(userPrompt(topic)),
		Schema:      CurriculumSchema,
		MaxTokens:   total * tokensPerSection,
		Temperature: temperature,
	}
}
