package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSynth returns the text bytes as the payload, optionally failing
// or delaying specific inputs to force out-of-order completion.
type fakeSynth struct {
	mu    sync.Mutex
	fail  map[string]error
	delay map[string]time.Duration
	calls []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	fail := f.fail[text]
	delay := f.delay[text]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	return []byte(text), nil
}

func runDispatcher(t *testing.T, synth Synthesizer, segments []Segment) []AudioUnit {
	t.Helper()
	var n int
	d := NewDispatcher(synth, func() string {
		n++
		return fmt.Sprintf("label_%d", n)
	}, nil)
	in := make(chan Segment, len(segments))
	out := make(chan AudioUnit, 16)
	for _, seg := range segments {
		in <- seg
	}
	close(in)
	go d.Run(context.Background(), in, out)
	var got []AudioUnit
	for u := range out {
		got = append(got, u)
	}
	return got
}

func makeSegments(turn int, texts ...string) []Segment {
	segs := make([]Segment, len(texts))
	for i, s := range texts {
		segs[i] = Segment{Turn: turn, Index: i, Text: s}
	}
	return segs
}

func TestDispatcher_PreservesOrderUnderVariedLatency(t *testing.T) {
	synth := &fakeSynth{delay: map[string]time.Duration{
		"alpha": 40 * time.Millisecond,
		"beta":  5 * time.Millisecond,
	}}
	got := runDispatcher(t, synth, makeSegments(1, "alpha", "beta", "gamma"))
	if len(got) != 3 {
		t.Fatalf("units=%v, want 3", got)
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if string(got[i].Payload) != want {
			t.Fatalf("unit[%d]=%q, want %q", i, got[i].Payload, want)
		}
		if got[i].Index != i {
			t.Fatalf("unit[%d] index=%d, want %d", i, got[i].Index, i)
		}
	}
}

func TestDispatcher_SkipsFailedSegment(t *testing.T) {
	synth := &fakeSynth{fail: map[string]error{
		"third": errors.New("tts unavailable"),
	}}
	got := runDispatcher(t, synth, makeSegments(1, "first", "second", "third", "fourth"))
	want := []string{"first", "second", "fourth"}
	if len(got) != len(want) {
		t.Fatalf("units=%v, want %d", got, len(want))
	}
	for i, w := range want {
		if string(got[i].Payload) != w {
			t.Fatalf("unit[%d]=%q, want %q", i, got[i].Payload, w)
		}
	}
	// Indexes keep their original values; only delivery order matters.
	if got[2].Index != 3 {
		t.Fatalf("surviving unit index=%d, want 3", got[2].Index)
	}
}

func TestDispatcher_LabelsAreUnique(t *testing.T) {
	synth := &fakeSynth{}
	got := runDispatcher(t, synth, makeSegments(1, "a", "b", "c"))
	seen := make(map[string]bool)
	for _, u := range got {
		if u.Label == "" {
			t.Fatalf("unit has empty label: %+v", u)
		}
		if seen[u.Label] {
			t.Fatalf("duplicate label %q", u.Label)
		}
		seen[u.Label] = true
	}
}

func TestDispatcher_ClosesOutOnEmptyInput(t *testing.T) {
	got := runDispatcher(t, &fakeSynth{}, nil)
	if len(got) != 0 {
		t.Fatalf("units=%v, want none", got)
	}
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	synth := &fakeSynth{delay: map[string]time.Duration{"slow": time.Second}}
	d := NewDispatcher(synth, func() string { return "l" }, nil)
	in := make(chan Segment, 1)
	out := make(chan AudioUnit, 1)
	in <- Segment{Turn: 1, Index: 0, Text: "slow"}
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, in, out)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
