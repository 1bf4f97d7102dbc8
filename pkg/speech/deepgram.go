// Package speech provides the live speech-to-text and text-to-speech
// collaborators for the call pipeline.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

const deepgramDefaultWSBase = "wss://api.deepgram.com/v1/listen"

// DeepgramConfig configures one live transcription session.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	Encoding   string
	SampleRate int

	// BaseURL overrides the websocket endpoint, for tests.
	BaseURL string

	Logger *slog.Logger
}

// DeepgramSession is a live transcription stream over one call's
// audio. Implements the Transcriber contract: binary audio in, typed
// interim and final results out.
type DeepgramSession struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	results chan call.TranscriptResult

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialDeepgram opens a live transcription socket and starts reading
// results.
func DialDeepgram(ctx context.Context, cfg DeepgramConfig) (*DeepgramSession, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = deepgramDefaultWSBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("deepgram url: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "mulaw"
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 8000
	}

	q := u.Query()
	q.Set("model", model)
	q.Set("encoding", encoding)
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", "200")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &DeepgramSession{
		conn:    conn,
		logger:  logger,
		results: make(chan call.TranscriptResult, 16),
	}
	go s.readLoop()
	return s, nil
}

// SendAudio forwards one raw audio frame. Safe for concurrent use
// with Close.
func (s *DeepgramSession) SendAudio(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Results yields transcript updates until the socket closes.
func (s *DeepgramSession) Results() <-chan call.TranscriptResult {
	return s.results
}

// Close signals end of audio and tears the socket down. The results
// channel closes once the read loop exits.
func (s *DeepgramSession) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
	return nil
}

type deepgramMessage struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

func (s *DeepgramSession) readLoop() {
	defer close(s.results)
	var asm utteranceAssembler
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("transcription socket closed", "error", err)
			}
			return
		}
		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("undecodable transcription frame", "error", err)
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		res, ok := asm.feed(msg.Channel.Alternatives[0].Transcript, msg.IsFinal, msg.SpeechFinal)
		if !ok {
			continue
		}
		select {
		case s.results <- res:
		default:
			s.logger.Warn("transcript result dropped, consumer too slow")
		}
	}
}

// utteranceAssembler folds transcription updates into utterances: a
// final chunk is buffered until the service marks the end of speech,
// then the buffered chunks join into one final transcription.
// Non-final chunks pass through as interim updates.
type utteranceAssembler struct {
	parts []string
}

func (a *utteranceAssembler) feed(text string, isFinal, speechFinal bool) (call.TranscriptResult, bool) {
	text = strings.TrimSpace(text)
	if !isFinal {
		if text == "" {
			return call.TranscriptResult{}, false
		}
		return call.TranscriptResult{Text: text}, true
	}
	if text != "" {
		a.parts = append(a.parts, text)
	}
	if !speechFinal {
		return call.TranscriptResult{}, false
	}
	full := strings.Join(a.parts, " ")
	a.parts = nil
	if full == "" {
		return call.TranscriptResult{}, false
	}
	return call.TranscriptResult{Text: full, Final: true}, true
}
