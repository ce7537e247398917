package curriculum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/logger"
)

var (
	ErrEmptyTopic          = errors.New("curriculum: topic is empty")
	ErrInvalidSectionCount = fmt.Errorf("curriculum: section count must be between 1 and %d", MaxSections)
)

// Config tunes curriculum generation.
type Config struct {
	TokensPerSection int     `yaml:"tokens_per_section"`
	Temperature      float64 `yaml:"temperature"`
}

// DefaultConfig returns the generation defaults.
func DefaultConfig() Config {
	return Config{
		TokensPerSection: TokensPerSection,
		Temperature:      0.7,
	}
}

// Decoder starts curriculum streams and decodes them as they arrive.
type Decoder struct {
	provider llm.StreamProvider
	cfg      Config
	log      *logger.Logger
	tracer   trace.Tracer
}

func NewDecoder(provider llm.StreamProvider, cfg Config, log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TokensPerSection <= 0 {
		cfg.TokensPerSection = TokensPerSection
	}
	return &Decoder{
		provider: provider,
		cfg:      cfg,
		log:      log.Named("curriculum"),
		tracer:   otel.Tracer("github.com/abhisek/lessonstream/internal/curriculum"),
	}
}

// Start requests a curriculum of total sections about topic and returns
// immediately. The stream is consumed in the background until it ends, ctx
// is cancelled or the handle is cancelled.
func (d *Decoder) Start(ctx context.Context, topic string, total int) (*Handle, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if total < 1 || total > MaxSections {
		return nil, ErrInvalidSectionCount
	}

	ctx, cancel := context.WithCancel(llm.WithPurpose(ctx, llm.PurposeCurriculum))
	h := newHandle(topic, total, cancel, d.log)
	req := buildRequest(topic, total, d.cfg.TokensPerSection, d.cfg.Temperature)
	go h.run(ctx, d, req)
	return h, nil
}

// OpenRaw opens the same stream Start would, without decoding it. Callers
// relay the model text as is.
func (d *Decoder) OpenRaw(ctx context.Context, topic string, total int) (<-chan llm.Chunk, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if total < 1 || total > MaxSections {
		return nil, ErrInvalidSectionCount
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeCurriculum)
	return d.provider.Stream(ctx, buildRequest(topic, total, d.cfg.TokensPerSection, d.cfg.Temperature))
}

// Status is the outcome of a finished stream.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result summarizes a finished stream. The resolved prefix stays available
// from the handle whatever the status.
type Result struct {
	Status Status

	// Degraded is set when the curriculum is shorter than requested or
	// broke the output contract.
	Degraded bool
	Problems []string

	// DecodeErrors counts fragments whose reinterpretation was rejected.
	DecodeErrors int

	// Err is the stream failure, if any.
	Err error

	Model string
	Usage llm.Usage
}

// Handle tracks one curriculum stream.
type Handle struct {
	topic  string
	total  int
	cancel context.CancelFunc
	log    *logger.Logger

	mu           sync.RWMutex
	snap         *Snapshot
	changed      chan struct{}
	done         chan struct{}
	stopped      bool
	result       Result
	raw          strings.Builder
	decodeErrors int

	// Written only by the run goroutine.
	lastRoot  any
	last      *interpretation
	syntaxErr error
	violation *DecodeError
}

func newHandle(topic string, total int, cancel context.CancelFunc, log *logger.Logger) *Handle {
	return &Handle{
		topic:   topic,
		total:   total,
		cancel:  cancel,
		snap:    &Snapshot{Total: total},
		changed: make(chan struct{}),
		done:    make(chan struct{}),
		log:     log.With("topic", topic, "total", total),
	}
}

func (h *Handle) Topic() string { return h.topic }

func (h *Handle) Total() int { return h.total }

// Snapshot returns the latest accepted snapshot. The value is never
// mutated; later updates replace it.
func (h *Handle) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Complete reports whether the stream has terminated.
func (h *Handle) Complete() bool {
	return h.Snapshot().Complete
}

// Changed returns a channel that is closed at the next accepted update.
// Once the stream is complete the returned channel is already closed.
func (h *Handle) Changed() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.changed
}

// Done is closed when the stream has terminated and Result is final.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel stops consuming the stream. No update is accepted afterwards; the
// final snapshot has the same version and sections with Complete set.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Result returns the completion report, or a streaming status while the
// stream is still running.
func (h *Handle) Result() Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.snap.Complete {
		return Result{Status: StatusStreaming, DecodeErrors: h.decodeErrors}
	}
	return h.result
}

// Text returns the raw model output received so far.
func (h *Handle) Text() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.raw.String()
}

func (h *Handle) run(ctx context.Context, d *Decoder, req llm.Request) {
	defer h.cancel()

	ctx, span := d.tracer.Start(ctx, "curriculum.stream", trace.WithAttributes(
		attribute.Int("curriculum.total_sections", h.total),
		attribute.String("llm.model", d.provider.ModelID()),
	))
	defer span.End()

	res := h.consume(ctx, d.provider, req)

	snap := h.Snapshot()
	span.SetAttributes(
		attribute.String("curriculum.status", string(res.Status)),
		attribute.Int("curriculum.resolved_sections", snap.Resolved()),
		attribute.Int("curriculum.decode_errors", res.DecodeErrors),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	log := h.log.With("status", res.Status, "resolved", snap.Resolved(), "decode_errors", res.DecodeErrors)
	switch res.Status {
	case StatusComplete:
		log.Info("curriculum stream complete")
	case StatusCancelled:
		log.Debug("curriculum stream cancelled")
	case StatusFailed:
		log.Warn("curriculum stream failed", "error", res.Err)
	default:
		log.Warn("curriculum stream degraded", "problems", res.Problems)
	}
}

// consume reads the stream to its end and completes the handle.
func (h *Handle) consume(ctx context.Context, p llm.StreamProvider, req llm.Request) Result {
	ch, err := p.Stream(ctx, req)
	if err != nil {
		return h.finish(h.failure(ctx, fmt.Errorf("open curriculum stream: %w", err)))
	}

	for {
		select {
		case c, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return h.finish(Result{Status: StatusCancelled, Err: ctx.Err()})
				}
				return h.finish(h.validate(llm.Chunk{}))
			}
			if c.Err != nil {
				return h.finish(h.failure(ctx, fmt.Errorf("curriculum stream: %w", c.Err)))
			}
			if c.Text != "" {
				h.feed(c.Text)
			}
			if c.Done {
				return h.finish(h.validate(c))
			}
		case <-ctx.Done():
			return h.finish(Result{Status: StatusCancelled, Err: ctx.Err()})
		}
	}
}

func (h *Handle) failure(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		return Result{Status: StatusCancelled, Err: ctx.Err()}
	}
	res := h.validate(llm.Chunk{})
	res.Status = StatusFailed
	res.Degraded = true
	res.Err = err
	return res
}

// feed appends a fragment and tries to publish the new interpretation.
func (h *Handle) feed(text string) {
	h.mu.Lock()
	h.raw.WriteString(text)
	full := h.raw.String()
	h.mu.Unlock()

	root, err := parsePartial(full)
	if err != nil {
		if h.syntaxErr == nil {
			h.log.Warn("curriculum output is malformed", "error", err)
		}
		h.syntaxErr = err
		h.rejected()
		return
	}
	in, err := interpret(root, h.total)
	if err != nil {
		h.log.Debug("curriculum output rejected", "error", err)
		h.rejected()
		return
	}
	if in.violation != nil && h.violation == nil {
		h.violation = in.violation
		h.log.Warn("curriculum section rejected", "index", in.violation.Index, "reason", in.violation.Reason)
	}
	h.lastRoot, h.last = root, in

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.snap.Complete {
		return
	}
	if !h.snap.extendedBy(in.sections, in.draft) {
		h.decodeErrors++
		return
	}
	if h.snap.sameAs(in.sections, in.draft) {
		return
	}
	h.publish(h.snap.next(in.sections, in.draft))
}

func (h *Handle) rejected() {
	h.mu.Lock()
	h.decodeErrors++
	h.mu.Unlock()
}

// publish installs s and wakes everyone waiting on Changed. Callers hold mu.
func (h *Handle) publish(s *Snapshot) {
	h.snap = s
	close(h.changed)
	if s.Complete {
		return
	}
	h.changed = make(chan struct{})
}

// validate runs the end-of-stream checks against what has been decoded.
func (h *Handle) validate(final llm.Chunk) Result {
	res := Result{Status: StatusComplete, Model: final.Model, Usage: final.Usage}

	var problems []string
	switch {
	case h.syntaxErr != nil:
		problems = append(problems, "malformed output: "+h.syntaxErr.Error())
	case h.last == nil || !h.last.closed:
		problems = append(problems, "output ended before the curriculum was complete")
	default:
		if err := validateDocument(h.lastRoot); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if h.violation != nil {
		problems = append(problems, h.violation.Error())
	}

	snap := h.Snapshot()
	if n := snap.Resolved(); n < h.total {
		problems = append(problems, fmt.Sprintf("resolved %d of %d sections", n, h.total))
	}
	if h.last != nil && h.last.trailing > 0 {
		problems = append(problems, fmt.Sprintf("ignored %d sections after the end section", h.last.trailing))
	}
	if final.StopReason == "max_tokens" {
		problems = append(problems, "output was cut off at the token limit")
	}

	if len(problems) > 0 {
		res.Status = StatusDegraded
		res.Degraded = true
		res.Problems = problems
	}
	return res
}

func validateDocument(root any) error {
	schema, err := compiledCurriculum()
	if err != nil {
		return err
	}
	if err := schema.Validate(plain(root)); err != nil {
		return fmt.Errorf("curriculum does not match its schema: %w", err)
	}
	return nil
}

// finish freezes the snapshot and records res. Waiters on Changed are
// always woken, including after Cancel.
func (h *Handle) finish(res Result) Result {
	h.mu.Lock()
	res.DecodeErrors = h.decodeErrors
	h.result = res
	h.stopped = true
	h.publish(h.snap.completed(res.Status == StatusCancelled))
	h.mu.Unlock()

	close(h.done)
	return res
}
