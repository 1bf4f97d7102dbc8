// Package telephony speaks the media-stream websocket protocol of the
// phone carrier: decoding inbound call events and encoding outbound
// audio, mark, and clear commands, one connection per call.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ConnectedEvent is the first frame on a new media stream.
type ConnectedEvent struct{}

// StartEvent opens a media stream for one call.
type StartEvent struct {
	StreamSID string
	CallSID   string
}

// MediaEvent carries one inbound audio frame, already decoded from
// its base64 wire form.
type MediaEvent struct {
	Payload []byte
}

// MarkEvent acknowledges that the audio preceding the named mark has
// finished playing.
type MarkEvent struct {
	Label    string
	Sequence string
}

// StopEvent ends the media stream.
type StopEvent struct{}

// DecodeEvent parses one inbound websocket frame into its typed
// event. Unknown event names and malformed frames return a
// *DecodeError.
func DecodeEvent(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, badRequest("missing event", "event")
	}

	switch event {
	case "connected":
		return ConnectedEvent{}, nil
	case "start":
		var msg struct {
			Start struct {
				StreamSID string `json:"streamSid"`
				CallSID   string `json:"callSid"`
			} `json:"start"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame", "")
		}
		if strings.TrimSpace(msg.Start.StreamSID) == "" {
			return nil, badRequest("start.streamSid is required", "streamSid")
		}
		return StartEvent{StreamSID: msg.Start.StreamSID, CallSID: msg.Start.CallSID}, nil
	case "media":
		var msg struct {
			Media struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid media frame", "")
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			return nil, badRequest("media.payload is not valid base64", "payload")
		}
		return MediaEvent{Payload: payload}, nil
	case "mark":
		var msg struct {
			Mark struct {
				Name string `json:"name"`
			} `json:"mark"`
			SequenceNumber string `json:"sequenceNumber"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid mark frame", "")
		}
		if strings.TrimSpace(msg.Mark.Name) == "" {
			return nil, badRequest("mark.name is required", "name")
		}
		return MarkEvent{Label: msg.Mark.Name, Sequence: msg.SequenceNumber}, nil
	case "stop":
		return StopEvent{}, nil
	default:
		return nil, badRequest("unknown event "+event, "event")
	}
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundMark struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

func encodeMedia(streamSID string, payload []byte) ([]byte, error) {
	frame := outboundMedia{Event: "media", StreamSID: streamSID}
	frame.Media.Payload = base64.StdEncoding.EncodeToString(payload)
	return json.Marshal(frame)
}

func encodeMark(streamSID, label string) ([]byte, error) {
	frame := outboundMark{Event: "mark", StreamSID: streamSID}
	frame.Mark.Name = label
	return json.Marshal(frame)
}

func encodeClear(streamSID string) ([]byte, error) {
	return json.Marshal(outboundClear{Event: "clear", StreamSID: streamSID})
}
