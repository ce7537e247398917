package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DecodeError describes a section that failed validation and therefore
// never resolves. Index is -1 for document-level problems.
type DecodeError struct {
	Index  int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return "curriculum: " + e.Reason
	}
	return fmt.Sprintf("curriculum: section %d: %s", e.Index, e.Reason)
}

// interpretation is what one parse of the accumulated text says about the
// curriculum.
type interpretation struct {
	sections  []Section
	draft     *Draft
	violation *DecodeError

	// ended is set once an End section resolved; trailing counts the
	// items that followed it and were ignored.
	ended    bool
	trailing int

	// closed reports that the whole document, root object included, has
	// been read.
	closed bool
}

// interpret maps a parsed prefix onto sections for a curriculum of total
// sections. It stops at the first section that fails validation.
func interpret(root any, total int) (*interpretation, error) {
	in := &interpretation{}
	if root == nil {
		return in, nil
	}
	obj, ok := root.(*object)
	if !ok {
		return nil, errNotObject
	}
	in.closed = obj.closed

	raw, ok := obj.get("sections")
	if !ok {
		return in, nil
	}
	arr, ok := raw.(*array)
	if !ok {
		return nil, &DecodeError{Index: -1, Reason: "sections is not an array"}
	}

	for i, item := range arr.items {
		if arr.tailOpen && i == len(arr.items)-1 {
			in.draft = buildDraft(i, item)
			break
		}
		sec, err := resolveSection(item, i, total)
		if err != nil {
			in.violation = &DecodeError{Index: i, Reason: err.Error()}
			break
		}
		in.sections = append(in.sections, sec)
		if sec.Kind == KindEnd {
			in.ended = true
			in.trailing = len(arr.items) - i - 1
			if arr.tailOpen {
				in.trailing--
			}
			break
		}
	}
	return in, nil
}

// resolveSection validates a closed section object at index i.
func resolveSection(item any, i, total int) (Section, error) {
	obj, ok := item.(*object)
	if !ok {
		return Section{}, errors.New("section is not an object")
	}

	value := plain(obj)
	schema, err := compiledSection()
	if err != nil {
		return Section{}, err
	}
	if err := schema.Validate(value); err != nil {
		return Section{}, fmt.Errorf("schema validation failed: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Section{}, err
	}
	var sec Section
	if err := json.Unmarshal(data, &sec); err != nil {
		return Section{}, err
	}
	if err := sec.Validate(); err != nil {
		return Section{}, err
	}

	if want := total - 1 - i; sec.Remaining() != want {
		return Section{}, fmt.Errorf("%s is %d, want %d (the first of %d sections carries %d, counting down to 0 at %s)",
			fieldRemaining, sec.Remaining(), want, total, total-1, KindEnd)
	}
	if sec.Remaining() == 0 && sec.Kind != KindEnd {
		return Section{}, fmt.Errorf("last section must be %s, got %s", KindEnd, sec.Kind)
	}
	return sec, nil
}

var draftFields = map[Kind][]string{
	KindParagraph:      {fieldTitle, fieldContent, fieldRemaining},
	KindShortAnswer:    {fieldQuestion, fieldExpected, fieldRemaining},
	KindMultipleChoice: {fieldQuestion, fieldChoices, fieldCorrectChoice, fieldRemaining},
	KindEnd:            {fieldRemaining},
}

// buildDraft collects the fields of an unfinished section that are already
// complete and of the right type.
func buildDraft(i int, item any) *Draft {
	d := &Draft{Index: i, Fields: map[string]any{}}
	obj, ok := item.(*object)
	if !ok {
		return d
	}

	var tags []Kind
	for _, k := range obj.keys {
		if Kind(k).valid() {
			tags = append(tags, Kind(k))
		}
	}
	if len(tags) != 1 {
		return d
	}
	d.Kind = tags[0]

	inner, ok := obj.values[string(d.Kind)].(*object)
	if !ok {
		return d
	}
	for _, f := range draftFields[d.Kind] {
		v, ok := inner.get(f)
		if !ok {
			continue
		}
		switch f {
		case fieldRemaining:
			if n, ok := integer(v); ok {
				d.Fields[f] = n
			}
		case fieldChoices:
			a, ok := v.(*array)
			if !ok {
				continue
			}
			choices := []string{}
			for _, c := range a.items {
				if s, ok := c.(string); ok {
					choices = append(choices, s)
				}
			}
			d.Fields[f] = choices
		default:
			if s, ok := v.(string); ok {
				d.Fields[f] = s
			}
		}
	}
	return d
}

func integer(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
