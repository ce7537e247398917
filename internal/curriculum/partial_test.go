package curriculum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseObject(t *testing.T, text string) *object {
	t.Helper()
	v, err := parsePartial(text)
	require.NoError(t, err)
	obj, ok := v.(*object)
	require.True(t, ok, "expected object, got %T", v)
	return obj
}

func TestParsePartial_UnterminatedScalarsAreOmitted(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"string", `{"a":"hel`},
		{"string ending in escape", `{"a":"hel\`},
		{"partial unicode escape", `{"a":"\u00`},
		{"number", `{"a":12`},
		{"literal", `{"a":tr`},
		{"missing value", `{"a":`},
		{"key only", `{"a"`},
		{"partial key", `{"a`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := parseObject(t, tt.text)
			_, ok := obj.get("a")
			assert.False(t, ok)
			assert.False(t, obj.closed)
		})
	}
}

func TestParsePartial_OpenContainersKeepCompletedMembers(t *testing.T) {
	obj := parseObject(t, `{"done":{"x":"y"},"list":[1, "two", true, null, 4`)

	done, ok := obj.get("done")
	require.True(t, ok)
	assert.True(t, done.(*object).closed)

	list, ok := obj.get("list")
	require.True(t, ok)
	arr := list.(*array)
	assert.False(t, arr.closed)
	assert.False(t, arr.tailOpen)
	require.Len(t, arr.items, 4)
	assert.Equal(t, "two", arr.items[1])
	assert.Equal(t, true, arr.items[2])
	assert.Nil(t, arr.items[3])
	assert.Equal(t, []string{"done", "list"}, obj.keys)
}

func TestParsePartial_OpenTailItem(t *testing.T) {
	obj := parseObject(t, `{"s":[{"a":1},{"b":`)
	arr := obj.values["s"].(*array)
	require.Len(t, arr.items, 2)
	assert.True(t, arr.tailOpen)
	assert.True(t, arr.items[0].(*object).closed)
	assert.False(t, arr.items[1].(*object).closed)
}

func TestParsePartial_Escapes(t *testing.T) {
	obj := parseObject(t, `{"a":"line\nbreak é 😀 \"q\" \/"}`)
	assert.Equal(t, "line\nbreak é 😀 \"q\" /", obj.values["a"])
	assert.True(t, obj.closed)
}

func TestParsePartial_SplitSurrogatePairWaits(t *testing.T) {
	obj := parseObject(t, `{"a":"\ud83d`)
	_, ok := obj.get("a")
	assert.False(t, ok)
}

func TestParsePartial_SyntaxErrors(t *testing.T) {
	for _, text := range []string{
		`{"a" 1}`,
		`{"a":1,}`,
		`[1 2]`,
		`{"a":nope}`,
		`{"a":"\q"}`,
		`{"a":1}x`,
		`{1:2}`,
		`{"a":01}`,
		"{\"a\":\"raw\nnewline\"}",
	} {
		_, err := parsePartial(text)
		var syntaxErr *SyntaxError
		assert.True(t, errors.As(err, &syntaxErr), "text %q: got %v", text, err)
	}
}

func TestParsePartial_EmptyAndWhitespace(t *testing.T) {
	for _, text := range []string{"", "  \n", "`", "``", "```json"} {
		v, err := parsePartial(text)
		require.NoError(t, err, text)
		assert.Nil(t, v, text)
	}
}

func TestParsePartial_MarkdownFence(t *testing.T) {
	obj := parseObject(t, "```json\n{\"a\":\"b\"}\n```")
	assert.Equal(t, "b", obj.values["a"])
	assert.True(t, obj.closed)

	obj = parseObject(t, "```json\n{\"a\":\"b\",")
	assert.Equal(t, "b", obj.values["a"])
}

func TestParsePartial_EveryPrefixOfValidDocumentParses(t *testing.T) {
	doc := encode(t, parisSections())
	for i := 0; i <= len(doc); i++ {
		_, err := parsePartial(doc[:i])
		require.NoError(t, err, "prefix %q", doc[:i])
	}
}
