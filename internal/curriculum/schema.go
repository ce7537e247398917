package curriculum

import (
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/lessonstream/internal/llm"
)

// variantSchema builds the schema for one tagged section object. Every
// property is required and nothing else is allowed, which keeps it usable
// in OpenAI strict mode.
func variantSchema(kind Kind, fields map[string]any, order []string) map[string]any {
	inner := map[string]any{
		"type":                 "object",
		"properties":           fields,
		"required":             order,
		"additionalProperties": false,
	}
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{string(kind): inner},
		"required":             []string{string(kind)},
		"additionalProperties": false,
	}
}

func sectionUnion() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	remaining := map[string]any{
		"type":        "integer",
		"minimum":     0,
		"description": "Number of sections that come after this one.",
	}

	return map[string]any{
		"anyOf": []any{
			variantSchema(KindParagraph, map[string]any{
				fieldTitle:     str("Short title of the paragraph."),
				fieldContent:   str("Teaching content, a few sentences."),
				fieldRemaining: remaining,
			}, []string{fieldTitle, fieldContent, fieldRemaining}),
			variantSchema(KindShortAnswer, map[string]any{
				fieldQuestion:  str("A question answerable in a few words."),
				fieldExpected:  str("The expected answer."),
				fieldRemaining: remaining,
			}, []string{fieldQuestion, fieldExpected, fieldRemaining}),
			variantSchema(KindMultipleChoice, map[string]any{
				fieldQuestion: str("The question."),
				fieldChoices: map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				fieldCorrectChoice: str("The correct choice, copied verbatim from choices."),
				fieldRemaining:     remaining,
			}, []string{fieldQuestion, fieldChoices, fieldCorrectChoice, fieldRemaining}),
			variantSchema(KindEnd, map[string]any{
				fieldRemaining: remaining,
			}, []string{fieldRemaining}),
		},
	}
}

// SectionSchema validates a single closed section object.
var SectionSchema = &llm.Schema{
	Name:        "curriculum-section",
	Description: "One section of a curriculum",
	Definition:  sectionUnion(),
}

// CurriculumSchema is the output schema sent to the model and used for the
// final whole-document check.
var CurriculumSchema = &llm.Schema{
	Name:        "curriculum",
	Description: "A sequential curriculum of teaching paragraphs and questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{
				"type":  "array",
				"items": sectionUnion(),
			},
		},
		"required":             []string{"sections"},
		"additionalProperties": false,
	},
}

func compiledSection() (*jsonschema.Schema, error) {
	return llm.CompileSchema(SectionSchema)
}

func compiledCurriculum() (*jsonschema.Schema, error) {
	return llm.CompileSchema(CurriculumSchema)
}
