package session

import (
	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
)

// Phase is where a session stands. It is derived from the position and the
// decoder's snapshot rather than stored.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStreaming  Phase = "streaming"
	PhasePresenting Phase = "presenting"
	PhaseFinished   Phase = "finished"
)

// Outcome is the result of a learner action.
type Outcome string

const (
	// OutcomeAdvanced moved the position forward by one.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeIncorrect means the grader rejected the answer.
	OutcomeIncorrect Outcome = "incorrect"
	// OutcomeUngraded means grading failed or timed out.
	OutcomeUngraded Outcome = "ungraded"
	// OutcomeIgnored means a grading call for this position is in flight.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeStale means the position moved while grading.
	OutcomeStale Outcome = "stale"
	// OutcomeNoop means there was nothing to act on.
	OutcomeNoop Outcome = "noop"
)

// UngradedMessage is shown when an answer could not be checked.
const UngradedMessage = "could not check your answer, try again"

// State is the learner-owned part of a session.
type State struct {
	Position int    `json:"position"`
	Input    string `json:"input"`
}

// Result reports what a SubmitAnswer or Skip did.
type Result struct {
	Outcome  Outcome          `json:"outcome"`
	Verdict  *grading.Verdict `json:"verdict,omitempty"`
	Message  string           `json:"message,omitempty"`
	Position int              `json:"position"`
}

// Progress holds the two independent ratios shown to the learner: how much
// of the curriculum has arrived and how far the learner has got.
type Progress struct {
	Resolved int `json:"resolved"`
	Position int `json:"position"`
	Total    int `json:"total"`
}

// StreamRatio is resolved/total.
func (p Progress) StreamRatio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Resolved) / float64(p.Total)
}

// PositionRatio is position/total.
func (p Progress) PositionRatio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Position) / float64(p.Total)
}

// Feedback is the last message for the current position.
type Feedback struct {
	Outcome     Outcome `json:"outcome"`
	Message     string  `json:"message"`
	Explanation string  `json:"explanation,omitempty"`
}

// View is a consistent read of everything a client renders.
type View struct {
	ID       string              `json:"id"`
	Phase    Phase               `json:"phase"`
	Topic    string              `json:"topic,omitempty"`
	State    State               `json:"state"`
	Progress Progress            `json:"progress"`
	Current  *curriculum.Section `json:"current,omitempty"`
	Grading  bool                `json:"grading"`
	Feedback *Feedback           `json:"feedback,omitempty"`

	// Stream is set once the curriculum stream has ended.
	Stream *StreamInfo `json:"stream,omitempty"`
}

// StreamInfo summarizes a finished curriculum stream.
type StreamInfo struct {
	Status   curriculum.Status `json:"status"`
	Degraded bool              `json:"degraded"`
	Problems []string          `json:"problems,omitempty"`
	Error    string            `json:"error,omitempty"`
}
