// Package call implements the real-time conversational pipeline for a
// single telephone call: it sequences transcription, incremental
// language generation, speech synthesis, and ordered playback into one
// interruptible outbound audio stream.
package call

import "context"

// Message roles in conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of conversation history. Immutable once
// appended; insertion order is the prompt order sent to the
// generation service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Segment is a speakable slice of one assistant turn, emitted by the
// Segmenter. Index is monotonically increasing per turn, starting at 0.
type Segment struct {
	Turn  int
	Index int
	Text  string
}

// AudioUnit is a synthesized Segment. Label is the acknowledgment
// token the transport echoes back once the audio finished playing.
// Units must reach the transport in increasing Index order per turn.
type AudioUnit struct {
	Turn    int
	Index   int
	Label   string
	Payload []byte
}

// TranscriptResult is a speech-to-text update. Final results commit a
// user turn; interim results feed barge-in detection.
type TranscriptResult struct {
	Text  string
	Final bool
}

// Appointment is the structured directive payload extracted from a
// finished assistant turn: exactly seven fields in fixed order.
type Appointment struct {
	Name             string
	MembershipNumber string
	AppointmentType  string
	Date             string
	Time             string
	Phone            string
	Email            string
}

// Fields returns the appointment as its ordered seven-field tuple.
func (a Appointment) Fields() [7]string {
	return [7]string{a.Name, a.MembershipNumber, a.AppointmentType, a.Date, a.Time, a.Phone, a.Email}
}

// Transport carries outbound commands to the telephony stream.
// Implementations must be safe for use from multiple goroutines.
type Transport interface {
	// SendAudio queues an audio payload for the caller.
	SendAudio(payload []byte) error

	// SendMark queues a mark request; the transport echoes the label
	// back once the preceding audio finished playing.
	SendMark(label string) error

	// Clear discards the transport's queued, not-yet-played audio.
	// Best effort: a clear on an empty queue is a no-op downstream.
	Clear() error
}

// Transcriber is a live speech-to-text session for one call.
type Transcriber interface {
	// SendAudio forwards a raw inbound audio frame.
	SendAudio(data []byte) error

	// Results yields interim and final transcription updates. The
	// channel is closed when the session ends.
	Results() <-chan TranscriptResult

	Close() error
}

// Synthesizer converts one text segment to an audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// FragmentStream is an iterator over streamed generation text.
// Next returns io.EOF after the end-of-turn signal.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// Generator is the language-generation collaborator.
type Generator interface {
	// Stream requests a streamed reply to the given ordered history.
	Stream(ctx context.Context, history []Message) (FragmentStream, error)

	// Complete requests a full, non-streamed reply. Used for call
	// summaries.
	Complete(ctx context.Context, history []Message) (string, error)
}

// Sink records structured side effects. Both operations are
// fire-and-forget from the pipeline's perspective: failures are
// logged by the caller and never affect call audio.
type Sink interface {
	RecordAppointment(ctx context.Context, appt Appointment) error
	RecordSummary(ctx context.Context, callID, summary string) error
}
