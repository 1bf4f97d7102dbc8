package call

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Directive wire format: a single delimited tag with exactly seven
// comma-separated fields in fixed order:
//
//	[[APPOINTMENT: name, membership number, type, date, time, phone, email]]
//
// The schema is a versioned contract; a field-count mismatch is
// discarded, never guessed at.
var directivePattern = regexp.MustCompile(`\[\[APPOINTMENT:([^\]]*)\]\]`)

const appointmentFieldCount = 7

const summaryPrompt = "Summarize this call in two or three short sentences: " +
	"the caller's request, any appointment made, and the outcome."

// ParseAppointment scans text for an embedded appointment directive.
// Returns false when no directive is present or the field count does
// not match the schema exactly.
func ParseAppointment(text string) (Appointment, bool) {
	m := directivePattern.FindStringSubmatch(text)
	if m == nil {
		return Appointment{}, false
	}
	parts := strings.Split(m[1], ",")
	if len(parts) != appointmentFieldCount {
		return Appointment{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return Appointment{
		Name:             parts[0],
		MembershipNumber: parts[1],
		AppointmentType:  parts[2],
		Date:             parts[3],
		Time:             parts[4],
		Phone:            parts[5],
		Email:            parts[6],
	}, true
}

// Extractor forwards structured side effects from finished turns to
// the persistence sink. All work is fire-and-forget: failures are
// logged and never reach the audio pipeline.
type Extractor struct {
	sink      Sink
	generator Generator
	logger    *slog.Logger

	// Turns after which per-turn call summaries start.
	summaryAfter int

	wg sync.WaitGroup
}

// NewExtractor creates an extractor. summaryAfter <= 0 selects the
// default of two completed turns.
func NewExtractor(sink Sink, generator Generator, summaryAfter int, logger *slog.Logger) *Extractor {
	if summaryAfter <= 0 {
		summaryAfter = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{sink: sink, generator: generator, logger: logger, summaryAfter: summaryAfter}
}

// AfterTurn processes one finished assistant turn: it records an
// embedded appointment directive if the field count matches the
// schema, and once more than summaryAfter turns have completed it
// asynchronously requests a call summary and records it under callID.
// The passed context should be the session context so teardown
// cancels in-flight work.
func (e *Extractor) AfterTurn(ctx context.Context, callID string, completedTurns int, assistantText string, history []Message) {
	if m := directivePattern.FindStringSubmatch(assistantText); m != nil {
		appt, ok := ParseAppointment(assistantText)
		if !ok {
			e.logger.Warn("appointment directive field count mismatch, discarding",
				"call_id", callID, "turn", completedTurns)
		} else {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				if err := e.sink.RecordAppointment(ctx, appt); err != nil {
					e.logger.Warn("record appointment failed", "call_id", callID, "error", err)
				}
			}()
		}
	}

	if completedTurns > e.summaryAfter {
		snapshot := make([]Message, len(history))
		copy(snapshot, history)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.summarize(ctx, callID, snapshot)
		}()
	}
}

func (e *Extractor) summarize(ctx context.Context, callID string, history []Message) {
	prompt := append(history, Message{Role: RoleUser, Content: summaryPrompt})
	summary, err := e.generator.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("summary generation failed", "call_id", callID, "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	if err := e.sink.RecordSummary(ctx, callID, summary); err != nil {
		e.logger.Warn("record summary failed", "call_id", callID, "error", err)
	}
}

// Wait blocks until all in-flight side-effect work has finished.
func (e *Extractor) Wait() {
	e.wg.Wait()
}
