package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

func TestUtteranceAssembler(t *testing.T) {
	type step struct {
		text        string
		isFinal     bool
		speechFinal bool
		want        *call.TranscriptResult
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "interim passes through",
			steps: []step{
				{text: "hel", want: &call.TranscriptResult{Text: "hel"}},
				{text: "hello th", want: &call.TranscriptResult{Text: "hello th"}},
			},
		},
		{
			name: "finals buffer until end of speech",
			steps: []step{
				{text: "hello there", isFinal: true, want: nil},
				{text: "how are you", isFinal: true, speechFinal: true,
					want: &call.TranscriptResult{Text: "hello there how are you", Final: true}},
			},
		},
		{
			name: "empty frames are dropped",
			steps: []step{
				{text: "  ", want: nil},
				{text: "", isFinal: true, speechFinal: true, want: nil},
			},
		},
		{
			name: "buffer resets between utterances",
			steps: []step{
				{text: "first", isFinal: true, speechFinal: true,
					want: &call.TranscriptResult{Text: "first", Final: true}},
				{text: "second", isFinal: true, speechFinal: true,
					want: &call.TranscriptResult{Text: "second", Final: true}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var asm utteranceAssembler
			for i, s := range tt.steps {
				got, ok := asm.feed(s.text, s.isFinal, s.speechFinal)
				if s.want == nil {
					if ok {
						t.Fatalf("step %d: unexpected result %+v", i, got)
					}
					continue
				}
				if !ok {
					t.Fatalf("step %d: want %+v, got none", i, *s.want)
				}
				if got != *s.want {
					t.Fatalf("step %d: got %+v, want %+v", i, got, *s.want)
				}
			}
		})
	}
}

func TestDialDeepgram_StreamsResults(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("authorization=%q", got)
		}
		q := r.URL.Query()
		if q.Get("encoding") != "mulaw" || q.Get("sample_rate") != "8000" {
			t.Errorf("query=%v", q)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// One audio frame in, then a scripted transcription exchange.
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.BinaryMessage {
			received <- frame
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"Results","channel":{"alternatives":[{"transcript":"book me"}]},"is_final":false}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"Results","channel":{"alternatives":[{"transcript":"book me an appointment"}]},"is_final":true,"speech_final":true}`))

		// Hold the socket open until the client closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sess, err := DialDeepgram(ctx, DeepgramConfig{
		APIKey:  "test-key",
		BaseURL: "ws" + strings.TrimPrefix(server.URL, "http"),
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	if err := sess.SendAudio([]byte{0x7f, 0x7f}); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	select {
	case frame := <-received:
		if len(frame) != 2 {
			t.Fatalf("server got frame %v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received audio")
	}

	var got []call.TranscriptResult
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case res, ok := <-sess.Results():
			if !ok {
				t.Fatalf("results closed early, have %v", got)
			}
			got = append(got, res)
		case <-timeout:
			t.Fatalf("timed out, have %v", got)
		}
	}
	if got[0].Final || got[0].Text != "book me" {
		t.Fatalf("interim=%+v", got[0])
	}
	if !got[1].Final || got[1].Text != "book me an appointment" {
		t.Fatalf("final=%+v", got[1])
	}
}

func TestDialDeepgram_RequiresAPIKey(t *testing.T) {
	_, err := DialDeepgram(context.Background(), DeepgramConfig{})
	if err == nil {
		t.Fatal("want error without api key")
	}
}
