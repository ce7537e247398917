package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MockResponse is a canned response for MockProvider.Generate.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error

	// Wait, when set, blocks the call until it is closed or the request
	// context ends.
	Wait <-chan struct{}
}

// MockStream is a scripted stream for MockProvider.Stream.
type MockStream struct {
	// Chunks are emitted in order.
	Chunks []string

	// Source, when set, is drained after Chunks; the stream ends when it
	// is closed. Lets tests feed fragments one at a time.
	Source <-chan string

	// OpenErr fails the Stream call itself.
	OpenErr error

	// Err is delivered in-band after all fragments instead of a Done chunk.
	Err error
}

// MockProvider is a deterministic StreamProvider for testing.
// It returns canned responses and streams in FIFO order and records every
// request.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	streams   []MockStream
	Calls     []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if len(m.responses) == 0 {
		m.mu.Unlock()
		return nil, &ErrProviderUnavailable{}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	m.mu.Unlock()

	if resp.Wait != nil {
		select {
		case <-resp.Wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// Stream replays the next scripted stream or fails with
// ErrProviderUnavailable if none is queued.
func (m *MockProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if len(m.streams) == 0 {
		m.mu.Unlock()
		return nil, &ErrProviderUnavailable{}
	}
	script := m.streams[0]
	m.streams = m.streams[1:]
	m.mu.Unlock()

	if script.OpenErr != nil {
		return nil, script.OpenErr
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		var n int
		for _, text := range script.Chunks {
			n += len(text)
			if !sendChunk(ctx, out, Chunk{Text: text}) {
				return
			}
		}
		if script.Source != nil {
		drain:
			for {
				select {
				case text, ok := <-script.Source:
					if !ok {
						break drain
					}
					n += len(text)
					if !sendChunk(ctx, out, Chunk{Text: text}) {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}
		if script.Err != nil {
			sendChunk(ctx, out, Chunk{Err: script.Err})
			return
		}
		sendChunk(ctx, out, Chunk{
			Done:       true,
			Model:      "mock",
			StopReason: "end",
			Usage:      Usage{OutputTokens: n / 4, TotalTokens: n / 4},
		})
	}()
	return out, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned Generate response.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// AddStream appends a scripted stream.
func (m *MockProvider) AddStream(s MockStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, s)
}

// AddTextStream queues a stream that emits text split into pieces of at
// most size bytes.
func (m *MockProvider) AddTextStream(text string, size int) {
	m.AddStream(MockStream{Chunks: SplitText(text, size)})
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or the zero Request.
func (m *MockProvider) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}

// SplitText cuts s into consecutive pieces of at most size bytes.
func SplitText(s string, size int) []string {
	if size <= 0 {
		return []string{s}
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" || len(out) == 0 {
		out = append(out, s)
	}
	return out
}

// ReadAll drains a stream and returns the concatenated text together with
// the terminal chunk. It stops at the first error.
func ReadAll(ctx context.Context, ch <-chan Chunk) (string, Chunk, error) {
	var b strings.Builder
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return b.String(), Chunk{}, nil
			}
			if c.Err != nil {
				return b.String(), c, c.Err
			}
			b.WriteString(c.Text)
			if c.Done {
				return b.String(), c, nil
			}
		case <-ctx.Done():
			return b.String(), Chunk{}, ctx.Err()
		}
	}
}
