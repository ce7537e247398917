package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an
// event and a structured log line.
type LoggingProvider struct {
	inner     StreamProvider
	provider  string
	eventRepo store.EventRepo
	log       *logger.Logger
}

// WithLogging wraps a StreamProvider with event logging. repo may be nil.
func WithLogging(p StreamProvider, providerName string, repo store.EventRepo, log *logger.Logger) StreamProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{inner: p, provider: providerName, eventRepo: repo, log: log.Named("llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	data := l.baseEvent(ctx, req, start)
	data.Success = err == nil
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	l.record(ctx, data)
	return resp, err
}

// Stream records the event once the stream finishes, with the full
// accumulated text as the response body.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	start := time.Now()
	in, err := l.inner.Stream(ctx, req)
	if err != nil {
		data := l.baseEvent(ctx, req, start)
		data.ErrorMessage = err.Error()
		l.record(ctx, data)
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		var body strings.Builder
		data := l.baseEvent(ctx, req, start)
		data.ErrorMessage = "stream abandoned"
		defer func() {
			data.LatencyMs = time.Since(start).Milliseconds()
			data.ResponseBody = body.String()
			// The request context may already be cancelled here.
			l.record(context.WithoutCancel(ctx), data)
		}()

		for c := range in {
			body.WriteString(c.Text)
			switch {
			case c.Err != nil:
				data.ErrorMessage = c.Err.Error()
			case c.Done:
				data.Success = true
				data.ErrorMessage = ""
				data.Model = c.Model
				data.InputTokens = c.Usage.InputTokens
				data.OutputTokens = c.Usage.OutputTokens
			}
			if !sendChunk(ctx, out, c) {
				return
			}
		}
	}()
	return out, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) baseEvent(ctx context.Context, req Request, start time.Time) store.LLMRequestEventData {
	return store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		SessionID:   SessionFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		RequestBody: serializeRequest(req),
	}
}

func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData) {
	fields := []any{
		"provider", data.Provider,
		"model", data.Model,
		"purpose", data.Purpose,
		"latency_ms", data.LatencyMs,
		"input_tokens", data.InputTokens,
		"output_tokens", data.OutputTokens,
	}
	if data.SessionID != "" {
		fields = append(fields, "session_id", data.SessionID)
	}
	if data.Success {
		l.log.Debug("llm request", fields...)
	} else {
		l.log.Warn("llm request failed", append(fields, "error", data.ErrorMessage)...)
	}

	if l.eventRepo == nil {
		return
	}
	if err := l.eventRepo.AppendLLMRequest(ctx, data); err != nil {
		l.log.Warn("failed to record llm request event", "error", err)
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", req.Schema.Name, def)
		}
	}
	return b.String()
}
