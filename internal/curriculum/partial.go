package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// The partial parser reads a JSON prefix. Containers that are still open
// keep their completed members; scalars that may still grow (strings,
// numbers, literals) are left out until they are terminated.

// object is a parsed JSON object, possibly still open.
type object struct {
	keys   []string
	values map[string]any
	closed bool
}

func (o *object) get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// array is a parsed JSON array, possibly still open. When tailOpen is set
// the last item is an unfinished container.
type array struct {
	items    []any
	closed   bool
	tailOpen bool
}

// SyntaxError reports text that can never become valid JSON, no matter
// what is appended to it.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("json syntax error at offset %d: %s", e.Offset, e.Msg)
}

type partialParser struct {
	s string
	i int
}

// parsePartial parses a JSON prefix. It returns nil without error when
// nothing has been resolved yet. A leading ```json fence is tolerated.
func parsePartial(text string) (any, error) {
	text = stripFence(text)
	p := &partialParser{s: text}
	v, complete, err := p.value()
	if err != nil {
		return nil, err
	}
	if complete {
		p.ws()
		rest := strings.TrimSpace(p.s[p.i:])
		if rest != "" && !strings.HasPrefix("```", rest) {
			return nil, p.errorf("unexpected trailing data")
		}
	}
	return v, nil
}

func stripFence(text string) string {
	t := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(t, "```") {
		// A fence that has not been fully written yet.
		if strings.HasPrefix("```", t) && t != "" {
			return ""
		}
		return text
	}
	t = t[3:]
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		// Still reading the info string.
		return ""
	}
	body := t[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

func (p *partialParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.i, Msg: fmt.Sprintf(format, args...)}
}

func (p *partialParser) eof() bool { return p.i >= len(p.s) }

func (p *partialParser) ws() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

// value parses the next value. complete is false when input ran out first;
// v is then either nil or an open container.
func (p *partialParser) value() (v any, complete bool, err error) {
	p.ws()
	if p.eof() {
		return nil, false, nil
	}
	switch c := p.s[p.i]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		s, ok, err := p.str()
		if err != nil || !ok {
			return nil, false, err
		}
		return s, true, nil
	case c == 't':
		return p.literal("true", true)
	case c == 'f':
		return p.literal("false", false)
	case c == 'n':
		return p.literal("null", nil)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return nil, false, p.errorf("unexpected character %q", c)
	}
}

func (p *partialParser) object() (any, bool, error) {
	p.i++ // {
	obj := &object{values: map[string]any{}}
	first := true
	for {
		p.ws()
		if p.eof() {
			return obj, false, nil
		}
		if p.s[p.i] == '}' {
			if !first {
				return nil, false, p.errorf("trailing comma in object")
			}
			p.i++
			obj.closed = true
			return obj, true, nil
		}
		if p.s[p.i] != '"' {
			return nil, false, p.errorf("expected object key")
		}
		key, ok, err := p.str()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return obj, false, nil
		}
		p.ws()
		if p.eof() {
			return obj, false, nil
		}
		if p.s[p.i] != ':' {
			return nil, false, p.errorf("expected ':' after object key")
		}
		p.i++
		v, complete, err := p.value()
		if err != nil {
			return nil, false, err
		}
		if !complete {
			if v != nil {
				obj.set(key, v)
			}
			return obj, false, nil
		}
		obj.set(key, v)

		p.ws()
		if p.eof() {
			return obj, false, nil
		}
		switch p.s[p.i] {
		case ',':
			p.i++
			first = false
		case '}':
			p.i++
			obj.closed = true
			return obj, true, nil
		default:
			return nil, false, p.errorf("expected ',' or '}' in object")
		}
	}
}

func (o *object) set(key string, v any) {
	if _, dup := o.values[key]; !dup {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (p *partialParser) array() (any, bool, error) {
	p.i++ // [
	arr := &array{}
	first := true
	for {
		p.ws()
		if p.eof() {
			return arr, false, nil
		}
		if p.s[p.i] == ']' {
			if !first {
				return nil, false, p.errorf("trailing comma in array")
			}
			p.i++
			arr.closed = true
			return arr, true, nil
		}
		v, complete, err := p.value()
		if err != nil {
			return nil, false, err
		}
		if !complete {
			if v != nil {
				arr.items = append(arr.items, v)
				arr.tailOpen = true
			}
			return arr, false, nil
		}
		arr.items = append(arr.items, v)

		p.ws()
		if p.eof() {
			return arr, false, nil
		}
		switch p.s[p.i] {
		case ',':
			p.i++
			first = false
		case ']':
			p.i++
			arr.closed = true
			return arr, true, nil
		default:
			return nil, false, p.errorf("expected ',' or ']' in array")
		}
	}
}

// str parses a string starting at the opening quote. ok is false when the
// closing quote has not arrived yet.
func (p *partialParser) str() (s string, ok bool, err error) {
	p.i++ // "
	var b strings.Builder
	for p.i < len(p.s) {
		c := p.s[p.i]
		switch {
		case c == '"':
			p.i++
			return b.String(), true, nil
		case c == '\\':
			if p.i+1 >= len(p.s) {
				return "", false, nil
			}
			esc := p.s[p.i+1]
			switch esc {
			case '"', '\\', '/':
				b.WriteByte(esc)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, n, ok, err := p.unicodeEscape()
				if err != nil || !ok {
					return "", false, err
				}
				b.WriteRune(r)
				p.i += n
				continue
			default:
				return "", false, p.errorf("invalid escape %q", esc)
			}
			p.i += 2
		case c < 0x20:
			return "", false, p.errorf("control character in string")
		default:
			r, size := utf8.DecodeRuneInString(p.s[p.i:])
			if r == utf8.RuneError && size == 1 {
				if !utf8.FullRuneInString(p.s[p.i:]) {
					// Multi-byte rune split across fragments.
					return "", false, nil
				}
				return "", false, p.errorf("invalid UTF-8")
			}
			b.WriteString(p.s[p.i : p.i+size])
			p.i += size
		}
	}
	return "", false, nil
}

// unicodeEscape decodes \uXXXX at p.i, joining surrogate pairs. n is the
// number of bytes consumed.
func (p *partialParser) unicodeEscape() (r rune, n int, ok bool, err error) {
	hex := func(at int) (rune, bool, error) {
		if at+6 > len(p.s) {
			return 0, false, nil
		}
		if p.s[at] != '\\' || p.s[at+1] != 'u' {
			return 0, true, p.errorf("expected \\u escape")
		}
		v, err := strconv.ParseUint(p.s[at+2:at+6], 16, 32)
		if err != nil {
			return 0, true, p.errorf("invalid \\u escape")
		}
		return rune(v), true, nil
	}

	r1, ok, err := hex(p.i)
	if err != nil || !ok {
		return 0, 0, ok, err
	}
	if !utf16.IsSurrogate(r1) {
		return r1, 6, true, nil
	}
	if p.i+7 >= len(p.s) {
		return 0, 0, false, nil
	}
	if p.s[p.i+6] != '\\' || p.s[p.i+7] != 'u' {
		return utf8.RuneError, 6, true, nil
	}
	r2, ok, err := hex(p.i + 6)
	if err != nil || !ok {
		return 0, 0, ok, err
	}
	if dec := utf16.DecodeRune(r1, r2); dec != utf8.RuneError {
		return dec, 12, true, nil
	}
	return utf8.RuneError, 6, true, nil
}

func (p *partialParser) literal(word string, v any) (any, bool, error) {
	rest := p.s[p.i:]
	if strings.HasPrefix(rest, word) {
		p.i += len(word)
		return v, true, nil
	}
	if strings.HasPrefix(word, rest) {
		p.i = len(p.s)
		return nil, false, nil
	}
	return nil, false, p.errorf("invalid literal")
}

func (p *partialParser) number() (any, bool, error) {
	start := p.i
	for p.i < len(p.s) && strings.IndexByte("+-0123456789.eE", p.s[p.i]) >= 0 {
		p.i++
	}
	if p.eof() {
		// More digits may follow.
		return nil, false, nil
	}
	lit := p.s[start:p.i]
	if !json.Valid([]byte(lit)) {
		return nil, false, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", lit)}
	}
	return json.Number(lit), true, nil
}

// plain converts a parsed tree into the encoding/json shape (map[string]any,
// []any, json.Number) expected by the schema validator. Open containers are
// converted as they stand.
func plain(v any) any {
	switch t := v.(type) {
	case *object:
		m := make(map[string]any, len(t.values))
		for k, val := range t.values {
			m[k] = plain(val)
		}
		return m
	case *array:
		out := make([]any, len(t.items))
		for i, item := range t.items {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

var errNotObject = errors.New("document is not a JSON object")
