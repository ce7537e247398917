package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate with a Request and receive structured JSON.
type Provider interface {
	// Generate sends a prompt to the LLM and returns a structured response.
	// When the request carries a Schema, the response Content is JSON that
	// has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// StreamProvider is a Provider that can also deliver its output as an
// incrementally growing text stream.
type StreamProvider interface {
	Provider

	// Stream opens a generation and returns a channel of text fragments.
	// An error is returned only when the stream could not be opened; later
	// failures arrive as a Chunk with Err set. The channel is closed after
	// the final chunk, or when ctx is cancelled.
	//
	// Streamed content is not schema-validated. Schema is still forwarded
	// so the provider constrains its output.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// Chunk is one fragment of a streamed generation.
type Chunk struct {
	// Text is the newly produced text. Concatenating every Text in order
	// yields the full response.
	Text string

	// Done marks the terminal chunk. Usage, Model and StopReason are only
	// populated on it.
	Done       bool
	Usage      Usage
	Model      string
	StopReason string

	// Err reports a failure after the stream was opened. A chunk carrying
	// Err is always the last one.
	Err error
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history. Curriculum and grading calls
	// are single-turn, so this is usually one user message.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil, the response Content is raw text as json.RawMessage.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage is shorthand for a single-turn user prompt.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema. Used as the schema name for OpenAI and
	// as the compiled-schema cache key. Kebab-case, e.g. "answer-verdict".
	Name string

	// Description is sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated output. With a Schema this is the validated
	// JSON object; without one it is the raw text.
	Content json.RawMessage

	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// sendChunk delivers c unless ctx is done first. It reports whether the
// chunk was delivered.
func sendChunk(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
