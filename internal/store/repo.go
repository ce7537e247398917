package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	From      time.Time // timestamp >= From
	Purpose   string    // LLM events only
	SessionID string
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	SessionID    string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// Session event actions.
const (
	SessionStarted   = "started"
	SessionAnswered  = "answered"
	SessionSkipped   = "skipped"
	SessionStreamEnd = "stream_end"
	SessionFinished  = "finished"
	SessionReset     = "reset"
)

// SessionEventData captures one learner-session lifecycle step.
type SessionEventData struct {
	SessionID string
	Action    string
	Topic     string
	Position  int
	Total     int
	Detail    string
}

// SessionEvent is a stored session event.
type SessionEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	SessionEventData
}

// UsageStats aggregates LLM usage for one purpose or model.
type UsageStats struct {
	Key          string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append access to audit events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	AppendSessionEvent(ctx context.Context, data SessionEventData) error
}
