package call

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Config holds per-session tunables.
type Config struct {
	// SystemPrompt is the pinned system preamble.
	SystemPrompt string

	// Greeting is the pinned opening assistant message, spoken as
	// soon as the stream starts.
	Greeting string

	// MemoryLimit bounds conversation history entries. 0 selects the
	// default.
	MemoryLimit int

	// BargeInMinRunes is the interim-utterance length threshold for
	// barge-in. 0 selects the default.
	BargeInMinRunes int

	// SummaryAfterTurns is how many completed turns must pass before
	// per-turn call summaries start. 0 selects the default.
	SummaryAfterTurns int
}

// Deps are the session's collaborators. All are required except Sink,
// which may be a no-op.
type Deps struct {
	Transport   Transport
	Transcriber Transcriber
	Synthesizer Synthesizer
	Generator   Generator
	Sink        Sink
	Logger      *slog.Logger

	// NewLabel mints acknowledgment labels for audio units.
	NewLabel func() string
}

type turnDone struct {
	turn    int
	text    string
	aborted bool
}

// Session orchestrates the pipeline for one active call. Exactly one
// Session exists per call; nothing is shared across calls. All
// mutable turn state is owned by the Run loop; collaborator adapters
// called from other goroutines (HandleMedia, HandleMark) touch only
// thread-safe components.
type Session struct {
	id     string
	callID string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	memory     *Memory
	playback   *Playback
	bargeIn    *BargeIn
	dispatcher *Dispatcher
	extractor  *Extractor

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	// Run-loop owned.
	turnID     int
	completed  int
	turnCancel context.CancelFunc

	units    chan AudioUnit
	turnDone chan turnDone
}

// NewSession creates the session for one call. Prior conversation
// state, if any, belongs to a different Session and is never carried
// over.
func NewSession(sessionID, callID string, cfg Config, deps Deps) (*Session, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Sink == nil {
		deps.Sink = NoopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewLabel == nil {
		return nil, fmt.Errorf("label generator is required")
	}

	logger := deps.Logger.With("call_id", callID, "session_id", sessionID)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       sessionID,
		callID:   callID,
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		memory:   NewMemory(cfg.MemoryLimit),
		ctx:      ctx,
		cancel:   cancel,
		units:    make(chan AudioUnit, 8),
		turnDone: make(chan turnDone, 4),
	}
	s.playback = NewPlayback(deps.Transport, logger)
	s.bargeIn = NewBargeIn(s.playback, deps.Transport, cfg.BargeInMinRunes, logger)
	s.dispatcher = NewDispatcher(deps.Synthesizer, deps.NewLabel, logger)
	s.extractor = NewExtractor(deps.Sink, deps.Generator, cfg.SummaryAfterTurns, logger)

	if cfg.SystemPrompt != "" {
		s.memory.Pin(RoleSystem, cfg.SystemPrompt)
	}
	if cfg.Greeting != "" {
		s.memory.Pin(RoleAssistant, cfg.Greeting)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CallID returns the call identifier.
func (s *Session) CallID() string { return s.callID }

// Turns returns the number of completed user->assistant exchanges.
// Used for log correlation only, never ordering.
func (s *Session) Turns() int { return s.completed }

// PendingMarks reports outstanding, unacknowledged audio labels.
func (s *Session) PendingMarks() int { return s.playback.PendingCount() }

// Run drives the session until the call ends or the transport fails.
// Non-transport errors never unwind the session; only a transport
// write failure is returned.
func (s *Session) Run() error {
	defer s.cancel()

	s.logger.Info("session started")

	// The opening greeting goes through the same segment/synthesize/
	// playback pipeline as a normal turn.
	if s.cfg.Greeting != "" {
		gctx, gcancel := context.WithCancel(s.ctx)
		s.turnCancel = gcancel
		stream := newStaticStream(greetingFragments(s.cfg.Greeting)...)
		go s.runPipeline(gctx, gcancel, 0, stream, false)
	}

	results := s.deps.Transcriber.Results()
	for {
		select {
		case <-s.ctx.Done():
			return nil

		case res, ok := <-results:
			if !ok {
				// STT ended; keep delivering any outstanding audio.
				s.logger.Warn("transcription stream ended")
				results = nil
				continue
			}
			if !res.Final {
				s.bargeIn.OnInterim(res.Text)
				continue
			}
			text := strings.TrimSpace(res.Text)
			if text == "" {
				continue
			}
			s.startTurn(text)

		case u := <-s.units:
			if u.Turn != s.turnID {
				// Unit from a preempted turn.
				continue
			}
			if err := s.playback.Enqueue(u); err != nil {
				return fmt.Errorf("transport: %w", err)
			}

		case td := <-s.turnDone:
			if td.turn != s.turnID {
				continue
			}
			s.playback.Drain()
			if td.turn > 0 && !td.aborted && td.text != "" {
				s.completed++
				s.logger.Info("turn completed", "turn", s.completed)
				s.extractor.AfterTurn(s.ctx, s.callID, s.completed, td.text, s.memory.Snapshot())
			}
		}
	}
}

// startTurn commits a final user transcript and launches the response
// pipeline, preempting whatever the previous turn still had in
// flight.
func (s *Session) startTurn(userText string) {
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	// No unit of the new turn may go out while marks from the old one
	// are outstanding.
	if s.playback.PendingCount() > 0 {
		s.playback.Flush()
		if err := s.deps.Transport.Clear(); err != nil {
			s.logger.Warn("clear command failed", "error", err)
		}
	}

	s.turnID++
	turn := s.turnID
	s.memory.Append(RoleUser, userText)
	history := s.memory.Snapshot()

	tctx, cancel := context.WithCancel(s.ctx)
	s.turnCancel = cancel

	s.logger.Info("user turn committed", "turn", turn, "chars", len(userText))

	go func() {
		stream, err := s.deps.Generator.Stream(tctx, history)
		if err != nil {
			if tctx.Err() == nil {
				s.logger.Warn("generation request failed", "turn", turn, "error", err)
			}
			s.finishTurn(turnDone{turn: turn, aborted: true})
			return
		}
		s.runPipeline(tctx, cancel, turn, stream, true)
	}()
}

// runPipeline wires one turn: fragments -> segmenter -> dispatcher ->
// session loop. On a mid-stream generation failure the turn is
// aborted and nothing further is surfaced to the caller.
func (s *Session) runPipeline(ctx context.Context, cancel context.CancelFunc, turn int, stream FragmentStream, record bool) {
	defer stream.Close()

	fragments := make(chan string, 16)
	segments := make(chan Segment, 8)
	units := make(chan AudioUnit, 8)

	go NewSegmenter(turn).Run(ctx, fragments, segments)
	go s.dispatcher.Run(ctx, segments, units)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for u := range units {
			select {
			case s.units <- u:
			case <-s.ctx.Done():
				return
			}
		}
	}()

	var full strings.Builder
	aborted := false
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("generation stream failed, aborting turn", "turn", turn, "error", err)
			}
			// Cut the pipeline so no further audio surfaces.
			cancel()
			aborted = true
			break
		}
		full.WriteString(frag)
		select {
		case fragments <- frag:
		case <-ctx.Done():
			aborted = true
		}
		if aborted {
			break
		}
	}
	close(fragments)
	<-forwarded

	text := strings.TrimSpace(full.String())
	if record && !aborted && text != "" {
		s.memory.Append(RoleAssistant, text)
	}
	s.finishTurn(turnDone{turn: turn, text: text, aborted: aborted})
}

func (s *Session) finishTurn(td turnDone) {
	select {
	case s.turnDone <- td:
	case <-s.ctx.Done():
	}
}

// HandleMedia forwards a raw inbound audio frame to transcription.
func (s *Session) HandleMedia(data []byte) {
	if s.closed.Load() {
		return
	}
	if err := s.deps.Transcriber.SendAudio(data); err != nil {
		s.logger.Warn("forward audio failed", "error", err)
	}
}

// HandleMark processes a transport acknowledgment for a played unit.
func (s *Session) HandleMark(label, sequence string) {
	s.playback.Ack(label)
	s.logger.Debug("mark acknowledged", "label", label, "sequence", sequence)
}

// End tears the session down: cancels in-flight generation,
// synthesis, and summary work, then releases all state. Idempotent.
func (s *Session) End() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	if err := s.deps.Transcriber.Close(); err != nil {
		s.logger.Warn("close transcriber failed", "error", err)
	}
	s.extractor.Wait()
	s.playback.Flush()
	s.logger.Info("session ended", "turns", s.completed)
}

// greetingFragments splits the greeting after each pause marker so it
// flows through the segmenter the same way streamed generation output
// does.
func greetingFragments(text string) []string {
	var out []string
	rest := text
	for {
		i := strings.IndexRune(rest, PauseMarker)
		if i < 0 {
			if rest != "" {
				out = append(out, rest)
			}
			return out
		}
		cut := i + len(string(PauseMarker))
		out = append(out, rest[:cut])
		rest = rest[cut:]
	}
}

// staticStream replays fixed fragments, used for the opening
// greeting.
type staticStream struct {
	parts []string
	i     int
}

func newStaticStream(parts ...string) *staticStream {
	return &staticStream{parts: parts}
}

func (s *staticStream) Next() (string, error) {
	if s.i >= len(s.parts) {
		return "", io.EOF
	}
	p := s.parts[s.i]
	s.i++
	return p, nil
}

func (s *staticStream) Close() error { return nil }

// NoopSink discards side effects; used when no persistence backend is
// configured.
type NoopSink struct{}

func (NoopSink) RecordAppointment(context.Context, Appointment) error { return nil }

func (NoopSink) RecordSummary(context.Context, string, string) error { return nil }
