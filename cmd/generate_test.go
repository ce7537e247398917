package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/session"
)

func parisDoc(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string][]curriculum.Section{"sections": {
		curriculum.NewParagraph("France", "Paris is the capital of France.", 3),
		curriculum.NewShortAnswer("What is the capital of France?", "Paris", 2),
		curriculum.NewMultipleChoice("Which river flows through Paris?", []string{"Seine", "Thames"}, "Seine", 1),
		curriculum.NewEnd(),
	}})
	require.NoError(t, err)
	return string(data)
}

func TestPrintSections(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddTextStream(parisDoc(t), 9)
	dec := curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil)

	var out, errOut bytes.Buffer
	require.NoError(t, printSections(context.Background(), dec, &out, &errOut, "France", 4))

	text := out.String()
	assert.Contains(t, text, "── Section 1/4 ──\nFrance\nParis is the capital of France.")
	assert.Contains(t, text, "  1) Seine\n  2) Thames")
	assert.Contains(t, text, "── Section 4/4 ──\n(end of lesson)")
	assert.Contains(t, errOut.String(), "status: complete (4/4 sections)")
}

func TestPrintSections_ReportsFailure(t *testing.T) {
	doc := parisDoc(t)
	boom := errors.New("connection reset")
	mock := llm.NewMockProvider()
	mock.AddStream(llm.MockStream{
		Chunks: []string{doc[:strings.Index(doc, `{"short_answer_section"`)]},
		Err:    boom,
	})
	dec := curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil)

	var out, errOut bytes.Buffer
	err := printSections(context.Background(), dec, &out, &errOut, "France", 4)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, out.String(), "── Section 1/4 ──")
	assert.NotContains(t, out.String(), "Section 2/4")
	assert.Contains(t, errOut.String(), "status: failed (1/4 sections")
}

func TestRelayRaw(t *testing.T) {
	mock := llm.NewMockProvider()
	doc := parisDoc(t)
	mock.AddTextStream(doc, 13)
	dec := curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil)

	var out bytes.Buffer
	require.NoError(t, relayRaw(context.Background(), dec, &out, "France", 4))
	assert.Equal(t, doc+"\n", out.String())

	err := relayRaw(context.Background(), dec, &out, "  ", 4)
	assert.ErrorIs(t, err, curriculum.ErrEmptyTopic)
}

func TestPlayLines(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"isCorrect":false,"explanation":"London is in England."}`)},
		llm.MockResponse{Content: json.RawMessage(`{"isCorrect":true}`)},
		llm.MockResponse{Content: json.RawMessage(`{"isCorrect":true}`)},
	)
	mock.AddTextStream(parisDoc(t), 17)

	ctrl := session.NewController("cli", session.Config{TotalSections: 4}, session.Deps{
		Curriculum: curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil),
		Grader:     grading.NewService(mock, grading.DefaultConfig(), nil),
	})
	defer ctrl.Reset()

	in := strings.NewReader("\nLondon\nParis\n1\n\n")
	var out bytes.Buffer
	require.NoError(t, playLines(context.Background(), ctrl, in, &out, "France"))

	text := out.String()
	assert.Contains(t, text, "Not quite.")
	assert.Contains(t, text, "Explanation: London is in England.")
	assert.Equal(t, 2, strings.Count(text, "Correct!"))
	assert.Contains(t, text, "Done: 4/4 sections, 2 correct, 1 wrong answers.")
	assert.Equal(t, 4, mock.CallCount(), "one stream and three grading calls")
}

func TestPlayLines_InputClosed(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddTextStream(parisDoc(t), 17)
	ctrl := session.NewController("cli", session.Config{TotalSections: 4}, session.Deps{
		Curriculum: curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil),
		Grader:     grading.NewService(mock, grading.DefaultConfig(), nil),
	})
	defer ctrl.Reset()

	var out bytes.Buffer
	require.NoError(t, playLines(context.Background(), ctrl, strings.NewReader(""), &out, "France"))
	assert.Contains(t, out.String(), "(input closed)")
	assert.Equal(t, 0, ctrl.State().Position)
}

func TestSplitAddr(t *testing.T) {
	host, port, err := splitAddr("0.0.0.0:9000")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 9000, port)

	_, _, err = splitAddr("localhost")
	assert.Error(t, err)
	_, _, err = splitAddr("localhost:http")
	assert.Error(t, err)
}
