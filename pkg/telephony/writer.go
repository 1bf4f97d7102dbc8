package telephony

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// StreamConfig tunes the outbound writer.
type StreamConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	QueueSize    int
}

var errStreamClosed = errors.New("media stream closed")

// Stream is the outbound half of one media-stream connection. A
// single writer goroutine owns the socket writes; audio and mark
// frames queue on the normal channel while clear commands take a
// priority channel so a barge-in cut never waits behind buffered
// audio. Safe for use from multiple goroutines.
type Stream struct {
	streamSID string
	ws        wsWriter
	logger    *slog.Logger
	cfg       StreamConfig

	priority chan []byte
	normal   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	errOnce sync.Once
	werr    error
}

// NewStream starts the writer for one call's media stream.
func NewStream(ws wsWriter, streamSID string, cfg StreamConfig, logger *slog.Logger) *Stream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		streamSID: streamSID,
		ws:        ws,
		logger:    logger,
		cfg:       cfg,
		priority:  make(chan []byte, 8),
		normal:    make(chan []byte, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// SendAudio queues one audio payload for the caller.
func (s *Stream) SendAudio(payload []byte) error {
	frame, err := encodeMedia(s.streamSID, payload)
	if err != nil {
		return err
	}
	return s.enqueue(s.normal, frame)
}

// SendMark queues a mark request after the previously queued audio.
func (s *Stream) SendMark(label string) error {
	frame, err := encodeMark(s.streamSID, label)
	if err != nil {
		return err
	}
	return s.enqueue(s.normal, frame)
}

// Clear discards queued-but-unwritten audio and issues the clear
// command on the priority channel. Frames enqueued after Clear
// returns are written after the clear. Best effort: a frame already
// in flight may still reach the carrier first.
func (s *Stream) Clear() error {
	for {
		select {
		case <-s.normal:
			continue
		default:
		}
		break
	}
	frame, err := encodeClear(s.streamSID)
	if err != nil {
		return err
	}
	return s.enqueue(s.priority, frame)
}

// Close stops the writer and waits for it to finish.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return s.werr
}

// Err reports the write failure that stopped the stream, if any.
func (s *Stream) Err() error {
	select {
	case <-s.ctx.Done():
		if s.werr != nil {
			return s.werr
		}
		return errStreamClosed
	default:
		return nil
	}
}

func (s *Stream) enqueue(ch chan []byte, frame []byte) error {
	select {
	case ch <- frame:
		return nil
	case <-s.ctx.Done():
		if s.werr != nil {
			return s.werr
		}
		return errStreamClosed
	}
}

func (s *Stream) fail(err error) {
	s.errOnce.Do(func() { s.werr = err })
	s.cancel()
}

func (s *Stream) run() {
	defer close(s.done)

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		// Hard priority: a queued clear goes out before anything
		// buffered.
		select {
		case frame := <-s.priority:
			if err := s.write(frame); err != nil {
				s.fail(err)
				return
			}
			continue
		default:
		}

		select {
		case <-s.ctx.Done():
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case frame := <-s.priority:
			if err := s.write(frame); err != nil {
				s.fail(err)
				return
			}
		case frame := <-s.normal:
			if err := s.write(frame); err != nil {
				s.fail(err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

func (s *Stream) write(frame []byte) error {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if err := s.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, frame)
}
