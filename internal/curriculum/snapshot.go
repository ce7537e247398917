package curriculum

import (
	"maps"
	"slices"
)

// Draft is the provisional trailing section. Fields holds only values that
// are complete and correctly typed: strings, int for n_sections_remaining
// and []string for choices. Kind is empty until the tag is known.
type Draft struct {
	Index  int            `json:"index"`
	Kind   Kind           `json:"kind,omitempty"`
	Fields map[string]any `json:"fields"`
}

// Heading returns the paragraph title or question text once it has
// arrived.
func (d *Draft) Heading() (string, bool) {
	for _, f := range []string{fieldTitle, fieldQuestion} {
		if s, ok := d.Fields[f].(string); ok {
			return s, true
		}
	}
	return "", false
}

// covers reports whether d keeps everything old had.
func (d *Draft) covers(old *Draft) bool {
	if old.Kind != "" && d.Kind != old.Kind {
		return false
	}
	for k, v := range old.Fields {
		nv, ok := d.Fields[k]
		if !ok {
			return false
		}
		if oc, ok := v.([]string); ok {
			nc, ok := nv.([]string)
			if !ok || len(nc) < len(oc) || !slices.Equal(nc[:len(oc)], oc) {
				return false
			}
		}
	}
	return true
}

func (d *Draft) equal(o *Draft) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Index == o.Index && d.Kind == o.Kind && maps.EqualFunc(d.Fields, o.Fields, func(a, b any) bool {
		ac, aok := a.([]string)
		bc, bok := b.([]string)
		if aok || bok {
			return aok && bok && slices.Equal(ac, bc)
		}
		return a == b
	})
}

// Snapshot is an immutable view of the decoded curriculum. Sections is the
// resolved prefix; it only ever grows.
type Snapshot struct {
	Version  int       `json:"version"`
	Total    int       `json:"total"`
	Sections []Section `json:"sections"`
	Draft    *Draft    `json:"draft,omitempty"`
	Complete bool      `json:"complete"`
}

// Resolved returns the number of fully validated sections.
func (s *Snapshot) Resolved() int {
	return len(s.Sections)
}

// Section returns the resolved section at i.
func (s *Snapshot) Section(i int) (Section, bool) {
	if i < 0 || i >= len(s.Sections) {
		return Section{}, false
	}
	return s.Sections[i], true
}

// extendedBy reports whether replacing s with sections and draft keeps
// everything s already showed.
func (s *Snapshot) extendedBy(sections []Section, draft *Draft) bool {
	if len(sections) < len(s.Sections) {
		return false
	}
	for i, sec := range s.Sections {
		if !sec.Equal(sections[i]) {
			return false
		}
	}
	if s.Draft == nil || len(sections) > s.Draft.Index {
		return true
	}
	return draft != nil && draft.Index == s.Draft.Index && draft.covers(s.Draft)
}

// sameAs reports whether sections and draft describe exactly s.
func (s *Snapshot) sameAs(sections []Section, draft *Draft) bool {
	return len(sections) == len(s.Sections) && s.Draft.equal(draft)
}

func (s *Snapshot) next(sections []Section, draft *Draft) *Snapshot {
	return &Snapshot{
		Version:  s.Version + 1,
		Total:    s.Total,
		Sections: sections,
		Draft:    draft,
	}
}

// completed marks s final. A cancelled stream keeps its version: only the
// Complete flag changes, and no new content is published.
func (s *Snapshot) completed(cancelled bool) *Snapshot {
	out := *s
	if !cancelled {
		out.Version++
	}
	out.Complete = true
	return &out
}
