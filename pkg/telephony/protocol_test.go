package telephony

import (
	"encoding/json"
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev any, err error)
	}{
		{
			name:  "connected",
			frame: `{"event":"connected","protocol":"Call"}`,
			check: func(t *testing.T, ev any, err error) {
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				if _, ok := ev.(ConnectedEvent); !ok {
					t.Fatalf("ev=%T", ev)
				}
			},
		},
		{
			name:  "start",
			frame: `{"event":"start","start":{"streamSid":"MZ123","callSid":"CA456"}}`,
			check: func(t *testing.T, ev any, err error) {
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				start, ok := ev.(StartEvent)
				if !ok {
					t.Fatalf("ev=%T", ev)
				}
				if start.StreamSID != "MZ123" || start.CallSID != "CA456" {
					t.Fatalf("start=%+v", start)
				}
			},
		},
		{
			name:  "start without streamSid",
			frame: `{"event":"start","start":{}}`,
			check: func(t *testing.T, ev any, err error) {
				if err == nil {
					t.Fatal("want error")
				}
			},
		},
		{
			name:  "media",
			frame: `{"event":"media","media":{"payload":"aGVsbG8="}}`,
			check: func(t *testing.T, ev any, err error) {
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				media, ok := ev.(MediaEvent)
				if !ok {
					t.Fatalf("ev=%T", ev)
				}
				if string(media.Payload) != "hello" {
					t.Fatalf("payload=%q", media.Payload)
				}
			},
		},
		{
			name:  "media with bad base64",
			frame: `{"event":"media","media":{"payload":"!!!"}}`,
			check: func(t *testing.T, ev any, err error) {
				if err == nil {
					t.Fatal("want error")
				}
			},
		},
		{
			name:  "mark",
			frame: `{"event":"mark","sequenceNumber":"4","mark":{"name":"mark_7"}}`,
			check: func(t *testing.T, ev any, err error) {
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				mark, ok := ev.(MarkEvent)
				if !ok {
					t.Fatalf("ev=%T", ev)
				}
				if mark.Label != "mark_7" || mark.Sequence != "4" {
					t.Fatalf("mark=%+v", mark)
				}
			},
		},
		{
			name:  "stop",
			frame: `{"event":"stop","stop":{}}`,
			check: func(t *testing.T, ev any, err error) {
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				if _, ok := ev.(StopEvent); !ok {
					t.Fatalf("ev=%T", ev)
				}
			},
		},
		{
			name:  "unknown event",
			frame: `{"event":"dtmf"}`,
			check: func(t *testing.T, ev any, err error) {
				if err == nil {
					t.Fatal("want error")
				}
			},
		},
		{
			name:  "not json",
			frame: `garbage`,
			check: func(t *testing.T, ev any, err error) {
				if err == nil {
					t.Fatal("want error")
				}
				if _, ok := err.(*DecodeError); !ok {
					t.Fatalf("err type=%T", err)
				}
			},
		},
		{
			name:  "missing event",
			frame: `{}`,
			check: func(t *testing.T, ev any, err error) {
				if err == nil {
					t.Fatal("want error")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.frame))
			tt.check(t, ev, err)
		})
	}
}

func TestEncodeOutboundFrames(t *testing.T) {
	media, err := encodeMedia("MZ123", []byte("hello"))
	if err != nil {
		t.Fatalf("encode media: %v", err)
	}
	var gotMedia map[string]any
	if err := json.Unmarshal(media, &gotMedia); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gotMedia["event"] != "media" || gotMedia["streamSid"] != "MZ123" {
		t.Fatalf("media frame=%v", gotMedia)
	}
	if gotMedia["media"].(map[string]any)["payload"] != "aGVsbG8=" {
		t.Fatalf("media frame=%v", gotMedia)
	}

	mark, err := encodeMark("MZ123", "mark_1")
	if err != nil {
		t.Fatalf("encode mark: %v", err)
	}
	var gotMark map[string]any
	if err := json.Unmarshal(mark, &gotMark); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gotMark["event"] != "mark" || gotMark["mark"].(map[string]any)["name"] != "mark_1" {
		t.Fatalf("mark frame=%v", gotMark)
	}

	clear, err := encodeClear("MZ123")
	if err != nil {
		t.Fatalf("encode clear: %v", err)
	}
	if string(clear) != `{"event":"clear","streamSid":"MZ123"}` {
		t.Fatalf("clear frame=%s", clear)
	}
}

func TestDecodeError_Error(t *testing.T) {
	err := badRequest("bad frame", "payload")
	if got := err.Error(); got != "bad frame (payload)" {
		t.Fatalf("error=%q", got)
	}
	err = badRequest("bad frame", "")
	if got := err.Error(); got != "bad frame" {
		t.Fatalf("error=%q", got)
	}
}
