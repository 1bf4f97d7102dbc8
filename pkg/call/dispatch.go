package call

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultSynthInFlight bounds concurrent synthesis requests per turn.
const DefaultSynthInFlight = 4

// Dispatcher converts segments to audio units. Synthesis latency
// varies per segment, so several requests may be in flight at once;
// a unit that finishes out of order is held until every lower-indexed
// unit of the same turn has been forwarded. A failed segment is
// skipped with a warning and playback continues with the next one.
type Dispatcher struct {
	synth      Synthesizer
	newLabel   func() string
	logger     *slog.Logger
	maxInFlight int
}

// NewDispatcher creates a dispatcher. newLabel mints acknowledgment
// labels for the produced units.
func NewDispatcher(synth Synthesizer, newLabel func() string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		synth:       synth,
		newLabel:    newLabel,
		logger:      logger,
		maxInFlight: DefaultSynthInFlight,
	}
}

type synthResult struct {
	seg     Segment
	payload []byte
	err     error
}

// Run consumes one turn's segments from in and emits audio units on
// out in strictly increasing Index order, closing out when all
// segments are resolved. Run holds only local state and may be called
// once per turn on the same Dispatcher.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Segment, out chan<- AudioUnit) {
	defer close(out)

	results := make(chan synthResult, d.maxInFlight*2)
	sem := make(chan struct{}, d.maxInFlight)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case seg, ok := <-in:
				if !ok {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				wg.Add(1)
				go func(seg Segment) {
					defer wg.Done()
					defer func() { <-sem }()
					payload, err := d.synth.Synthesize(ctx, seg.Text)
					select {
					case results <- synthResult{seg: seg, payload: payload, err: err}:
					case <-ctx.Done():
					}
				}(seg)
			}
		}
	}()

	// Reorder buffer: forward index next only once all lower indexes
	// for this turn have been forwarded (or skipped on failure).
	held := make(map[int]synthResult)
	next := 0
	for res := range results {
		held[res.seg.Index] = res
		for {
			r, ok := held[next]
			if !ok {
				break
			}
			delete(held, next)
			next++
			if r.err != nil {
				d.logger.Warn("synthesis failed, skipping segment",
					"turn", r.seg.Turn, "index", r.seg.Index, "error", r.err)
				continue
			}
			unit := AudioUnit{
				Turn:    r.seg.Turn,
				Index:   r.seg.Index,
				Label:   d.newLabel(),
				Payload: r.payload,
			}
			select {
			case out <- unit:
			case <-ctx.Done():
				return
			}
		}
	}
}
