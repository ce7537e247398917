package curriculum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func parisSections() []Section {
	return []Section{
		NewParagraph("France", "Paris est la capitale de la France, très belle.", 3),
		NewShortAnswer("What is the capital of France?", "Paris", 2),
		NewMultipleChoice("Which river flows through Paris?", []string{"Seine", "Thames", "Danube"}, "Seine", 1),
		NewEnd(),
	}
}

func encode(t *testing.T, sections []Section) string {
	t.Helper()
	data, err := json.Marshal(map[string][]Section{"sections": sections})
	require.NoError(t, err)
	return string(data)
}
