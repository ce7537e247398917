// Package curriculum turns a streamed model response into an incrementally
// growing, validated list of lesson sections.
package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Kind tags a Section variant. The values double as the wire keys.
type Kind string

const (
	KindParagraph      Kind = "paragraph_section"
	KindShortAnswer    Kind = "short_answer_section"
	KindMultipleChoice Kind = "multiple_choice_section"
	KindEnd            Kind = "end_section"
)

// Kinds lists every variant in prompt order.
var Kinds = []Kind{KindParagraph, KindShortAnswer, KindMultipleChoice, KindEnd}

func (k Kind) valid() bool {
	return slices.Contains(Kinds, k)
}

// Wire field names.
const (
	fieldRemaining     = "n_sections_remaining"
	fieldTitle         = "paragraph_title"
	fieldContent       = "paragraph_content"
	fieldQuestion      = "question_content"
	fieldExpected      = "expected_answer"
	fieldChoices       = "choices"
	fieldCorrectChoice = "correct_choice"
)

// Section is one unit of the curriculum. Exactly one variant pointer is
// set, matching Kind.
type Section struct {
	Kind           Kind
	Paragraph      *Paragraph
	ShortAnswer    *ShortAnswer
	MultipleChoice *MultipleChoice
	End            *End
}

type Paragraph struct {
	Title     string `json:"paragraph_title"`
	Content   string `json:"paragraph_content"`
	Remaining int    `json:"n_sections_remaining"`
}

type ShortAnswer struct {
	Question       string `json:"question_content"`
	ExpectedAnswer string `json:"expected_answer"`
	Remaining      int    `json:"n_sections_remaining"`
}

type MultipleChoice struct {
	Question      string   `json:"question_content"`
	Choices       []string `json:"choices"`
	CorrectChoice string   `json:"correct_choice"`
	Remaining     int      `json:"n_sections_remaining"`
}

type End struct {
	Remaining int `json:"n_sections_remaining"`
}

// Remaining returns the variant's n_sections_remaining.
func (s Section) Remaining() int {
	switch s.Kind {
	case KindParagraph:
		return s.Paragraph.Remaining
	case KindShortAnswer:
		return s.ShortAnswer.Remaining
	case KindMultipleChoice:
		return s.MultipleChoice.Remaining
	case KindEnd:
		return s.End.Remaining
	}
	return -1
}

// Answerable reports whether the learner must answer the section to move on.
func (s Section) Answerable() bool {
	return s.Kind == KindShortAnswer || s.Kind == KindMultipleChoice
}

// Validate checks the variant-level invariants.
func (s Section) Validate() error {
	var set int
	for _, p := range []bool{s.Paragraph != nil, s.ShortAnswer != nil, s.MultipleChoice != nil, s.End != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("section must carry exactly one variant, has %d", set)
	}

	switch s.Kind {
	case KindParagraph:
		if s.Paragraph == nil {
			return errKindMismatch
		}
	case KindShortAnswer:
		if s.ShortAnswer == nil {
			return errKindMismatch
		}
	case KindMultipleChoice:
		mc := s.MultipleChoice
		if mc == nil {
			return errKindMismatch
		}
		if len(mc.Choices) == 0 {
			return errors.New("multiple choice section has no choices")
		}
		if !slices.Contains(mc.Choices, mc.CorrectChoice) {
			return fmt.Errorf("correct choice %q is not one of the choices", mc.CorrectChoice)
		}
	case KindEnd:
		if s.End == nil {
			return errKindMismatch
		}
		if s.End.Remaining != 0 {
			return fmt.Errorf("end section must have 0 sections remaining, has %d", s.End.Remaining)
		}
	default:
		return fmt.Errorf("unknown section kind %q", s.Kind)
	}

	if s.Remaining() < 0 {
		return fmt.Errorf("negative sections remaining: %d", s.Remaining())
	}
	return nil
}

var errKindMismatch = errors.New("section kind does not match its variant")

func (s Section) variant() any {
	switch s.Kind {
	case KindParagraph:
		return s.Paragraph
	case KindShortAnswer:
		return s.ShortAnswer
	case KindMultipleChoice:
		return s.MultipleChoice
	case KindEnd:
		return s.End
	}
	return nil
}

// MarshalJSON writes the tagged wire form, e.g.
// {"end_section":{"n_sections_remaining":0}}.
func (s Section) MarshalJSON() ([]byte, error) {
	if !s.Kind.valid() {
		return nil, fmt.Errorf("marshal section: unknown kind %q", s.Kind)
	}
	return json.Marshal(map[Kind]any{s.Kind: s.variant()})
}

// UnmarshalJSON reads the tagged wire form. Objects with zero or several
// tags are rejected. n_sections_remaining may be written as an integral
// float such as 3.0.
func (s *Section) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("section must have exactly one tag, has %d", len(tagged))
	}

	var out Section
	for tag, raw := range tagged {
		out.Kind = Kind(tag)
		var remaining struct {
			Remaining *float64 `json:"n_sections_remaining"`
		}
		if err := json.Unmarshal(raw, &remaining); err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
		if remaining.Remaining == nil {
			return fmt.Errorf("%s: missing %s", tag, fieldRemaining)
		}
		r := *remaining.Remaining
		if r != math.Trunc(r) {
			return fmt.Errorf("%s: %s must be an integer, got %v", tag, fieldRemaining, r)
		}

		var err error
		switch out.Kind {
		case KindParagraph:
			var v struct {
				Title   string `json:"paragraph_title"`
				Content string `json:"paragraph_content"`
			}
			err = json.Unmarshal(raw, &v)
			out.Paragraph = &Paragraph{Title: v.Title, Content: v.Content, Remaining: int(r)}
		case KindShortAnswer:
			var v struct {
				Question string `json:"question_content"`
				Expected string `json:"expected_answer"`
			}
			err = json.Unmarshal(raw, &v)
			out.ShortAnswer = &ShortAnswer{Question: v.Question, ExpectedAnswer: v.Expected, Remaining: int(r)}
		case KindMultipleChoice:
			var v struct {
				Question string   `json:"question_content"`
				Choices  []string `json:"choices"`
				Correct  string   `json:"correct_choice"`
			}
			err = json.Unmarshal(raw, &v)
			out.MultipleChoice = &MultipleChoice{Question: v.Question, Choices: v.Choices, CorrectChoice: v.Correct, Remaining: int(r)}
		case KindEnd:
			out.End = &End{Remaining: int(r)}
		default:
			return fmt.Errorf("unknown section kind %q", tag)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
	}
	*s = out
	return nil
}

// Equal reports deep equality of two sections.
func (s Section) Equal(o Section) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case KindParagraph:
		return *s.Paragraph == *o.Paragraph
	case KindShortAnswer:
		return *s.ShortAnswer == *o.ShortAnswer
	case KindMultipleChoice:
		a, b := s.MultipleChoice, o.MultipleChoice
		return a.Question == b.Question && a.CorrectChoice == b.CorrectChoice &&
			a.Remaining == b.Remaining && slices.Equal(a.Choices, b.Choices)
	case KindEnd:
		return *s.End == *o.End
	}
	return false
}

// Constructors, mostly for tests and fixtures.

func NewParagraph(title, content string, remaining int) Section {
	return Section{Kind: KindParagraph, Paragraph: &Paragraph{Title: title, Content: content, Remaining: remaining}}
}

func NewShortAnswer(question, expected string, remaining int) Section {
	return Section{Kind: KindShortAnswer, ShortAnswer: &ShortAnswer{Question: question, ExpectedAnswer: expected, Remaining: remaining}}
}

func NewMultipleChoice(question string, choices []string, correct string, remaining int) Section {
	return Section{Kind: KindMultipleChoice, MultipleChoice: &MultipleChoice{Question: question, Choices: choices, CorrectChoice: correct, Remaining: remaining}}
}

func NewEnd() Section {
	return Section{Kind: KindEnd, End: &End{}}
}
