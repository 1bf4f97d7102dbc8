package call

import (
	"context"
	"strings"
)

// PauseMarker is the character the generation prompt asks the model to
// insert at natural pauses. It is a content heuristic, not a protocol
// guarantee: only a trailing marker (after trimming whitespace) cuts a
// segment.
const PauseMarker = '•'

// Segmenter turns a live fragment stream into ordered speakable
// segments without waiting for the full reply. State is per turn:
// indexes restart at 0 for every new Segmenter.
type Segmenter struct {
	turnID int
	next   int
	buf    strings.Builder
}

// NewSegmenter creates a segmenter for one assistant turn.
func NewSegmenter(turnID int) *Segmenter {
	return &Segmenter{turnID: turnID}
}

// Run consumes fragments from in and emits segments on out, closing
// out when in is closed or ctx is cancelled. A buffer whose trimmed
// tail is the pause marker is cut immediately; whatever remains when
// the stream ends is flushed as the final segment. Empty buffers are
// never emitted.
func (s *Segmenter) Run(ctx context.Context, in <-chan string, out chan<- Segment) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case frag, ok := <-in:
			if !ok {
				s.flush(ctx, out)
				return
			}
			s.buf.WriteString(frag)
			trimmed := strings.TrimRight(s.buf.String(), " \t\r\n")
			if trimmed != "" && strings.HasSuffix(trimmed, string(PauseMarker)) {
				if !s.emit(ctx, out) {
					return
				}
			}
		}
	}
}

func (s *Segmenter) flush(ctx context.Context, out chan<- Segment) {
	s.emit(ctx, out)
}

// emit sends the trimmed buffer as the next segment and resets it.
// Returns false if the context was cancelled.
func (s *Segmenter) emit(ctx context.Context, out chan<- Segment) bool {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" {
		return true
	}
	seg := Segment{Turn: s.turnID, Index: s.next, Text: text}
	select {
	case out <- seg:
		s.next++
		return true
	case <-ctx.Done():
		return false
	}
}
