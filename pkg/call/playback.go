package call

import (
	"fmt"
	"log/slog"
	"sync"
)

// PlaybackState is the per-turn delivery state.
type PlaybackState int

const (
	// PlaybackIdle means no audio is queued or awaiting acknowledgment.
	PlaybackIdle PlaybackState = iota
	// PlaybackStreaming means units are being enqueued for the turn.
	PlaybackStreaming
	// PlaybackDraining means the last unit was enqueued and marks are
	// still outstanding.
	PlaybackDraining
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "IDLE"
	case PlaybackStreaming:
		return "STREAMING"
	case PlaybackDraining:
		return "DRAINING"
	default:
		return "UNKNOWN"
	}
}

// Playback delivers audio units to the transport in order and tracks
// outstanding acknowledgment labels. The pending set is the sole
// signal for barge-in decisions: it holds exactly the labels sent but
// not yet acknowledged or cleared.
type Playback struct {
	mu        sync.Mutex
	transport Transport
	logger    *slog.Logger
	pending   []string
	state     PlaybackState
}

// NewPlayback creates a scheduler writing to transport.
func NewPlayback(transport Transport, logger *slog.Logger) *Playback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Playback{transport: transport, logger: logger}
}

// Enqueue registers the unit's label as pending, then sends the audio
// followed by its mark request. Must be called in unit order; the
// dispatcher upstream guarantees it.
func (p *Playback) Enqueue(u AudioUnit) error {
	p.mu.Lock()
	p.pending = append(p.pending, u.Label)
	p.state = PlaybackStreaming
	p.mu.Unlock()

	if err := p.transport.SendAudio(u.Payload); err != nil {
		return fmt.Errorf("send audio (turn %d index %d): %w", u.Turn, u.Index, err)
	}
	if err := p.transport.SendMark(u.Label); err != nil {
		return fmt.Errorf("send mark %s: %w", u.Label, err)
	}
	return nil
}

// Ack removes an acknowledged label from the pending set. Unknown
// labels (already cleared by barge-in) are ignored.
func (p *Playback) Ack(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.pending {
		if l == label {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			break
		}
	}
	if len(p.pending) == 0 && p.state == PlaybackDraining {
		p.state = PlaybackIdle
	}
}

// Drain marks the turn's last unit as enqueued. Once the pending set
// empties the scheduler returns to idle.
func (p *Playback) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		p.state = PlaybackIdle
		return
	}
	p.state = PlaybackDraining
}

// Flush empties the pending set immediately without waiting for
// transport acknowledgments. Used on barge-in and turn preemption.
func (p *Playback) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = p.pending[:0]
	p.state = PlaybackIdle
}

// PendingCount reports how many labels were sent but not yet
// acknowledged or cleared.
func (p *Playback) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// State returns the current delivery state.
func (p *Playback) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
