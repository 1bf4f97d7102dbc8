package telephony

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingWS struct {
	mu      sync.Mutex
	frames  [][]byte
	entered chan struct{}
	gate    chan struct{}
	writeErr error
}

func (f *recordingWS) SetWriteDeadline(time.Time) error { return nil }

func (f *recordingWS) WriteMessage(_ int, data []byte) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *recordingWS) WriteControl(int, []byte, time.Time) error { return nil }

func (f *recordingWS) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, frame := range f.frames {
		var env struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		out = append(out, env.Event)
	}
	return out
}

func waitForFrames(t *testing.T, ws *recordingWS, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ws.mu.Lock()
		got := len(ws.frames)
		ws.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %v", n, ws.events(t))
}

func TestStream_WritesFramesInOrder(t *testing.T) {
	ws := &recordingWS{}
	s := NewStream(ws, "MZ1", StreamConfig{}, nil)
	defer s.Close()

	if err := s.SendAudio([]byte("abc")); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := s.SendMark("mark_1"); err != nil {
		t.Fatalf("send mark: %v", err)
	}
	waitForFrames(t, ws, 2)

	got := ws.events(t)
	if got[0] != "media" || got[1] != "mark" {
		t.Fatalf("events=%v, want [media mark]", got)
	}
}

func TestStream_ClearPreemptsQueuedAudio(t *testing.T) {
	ws := &recordingWS{
		entered: make(chan struct{}, 8),
		gate:    make(chan struct{}),
	}
	s := NewStream(ws, "MZ1", StreamConfig{}, nil)
	defer s.Close()

	// First frame is picked up and blocks mid-write.
	if err := s.SendAudio([]byte("first")); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	<-ws.entered

	// These queue up behind the blocked write, then the clear drops
	// them.
	if err := s.SendAudio([]byte("stale")); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := s.SendMark("stale_mark"); err != nil {
		t.Fatalf("send mark: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	ws.gate <- struct{}{}
	<-ws.entered
	ws.gate <- struct{}{}
	waitForFrames(t, ws, 2)

	got := ws.events(t)
	if len(got) != 2 || got[0] != "media" || got[1] != "clear" {
		t.Fatalf("events=%v, want [media clear]", got)
	}
}

func TestStream_EnqueueFailsAfterClose(t *testing.T) {
	ws := &recordingWS{}
	s := NewStream(ws, "MZ1", StreamConfig{}, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.SendAudio([]byte("late")); err == nil {
		t.Fatal("want error on closed stream")
	}
}

func TestStream_WriteFailureStopsStream(t *testing.T) {
	ws := &recordingWS{writeErr: errors.New("broken pipe")}
	s := NewStream(ws, "MZ1", StreamConfig{}, nil)
	defer s.Close()

	_ = s.SendAudio([]byte("abc"))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Err() != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stream did not surface write failure")
}
