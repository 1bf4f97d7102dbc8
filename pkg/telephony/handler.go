package telephony

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

// SessionFactory builds the conversational pipeline for one call once
// its media stream has started.
type SessionFactory func(streamSID, callSID string, transport call.Transport) (*call.Session, error)

// HealthHandler answers the liveness probe.
type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("voice assistant is live\n"))
}

// IncomingHandler answers the carrier's incoming-call webhook with
// instructions to connect the call audio to the websocket endpoint.
type IncomingHandler struct {
	PublicHost string
	Logger     *slog.Logger
}

func (h IncomingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := ConnectStreamTwiML(h.PublicHost)
	if err != nil {
		logger.Error("render connect response failed", "error", err)
		fallback, ferr := SayTwiML("Sorry, an error occurred. Goodbye.")
		if ferr != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(fallback)
		return
	}

	logger.Info("incoming call", "remote", r.RemoteAddr)
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}

// ConnectionHandler owns one media-stream websocket per call: it
// decodes inbound events, runs the session, and tears everything down
// when the stream stops or the socket drops.
type ConnectionHandler struct {
	Stream     StreamConfig
	NewSession SessionFactory
	Logger     *slog.Logger

	MaxMessageBytes int64
}

func (h ConnectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	maxBytes := h.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	conn.SetReadLimit(maxBytes)

	var (
		sess   *call.Session
		stream *Stream
	)
	teardown := func() {
		if sess != nil {
			sess.End()
			sess = nil
		}
		if stream != nil {
			_ = stream.Close()
			stream = nil
		}
	}
	defer teardown()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("media stream read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			logger.Warn("undecodable stream frame", "error", err)
			continue
		}

		switch ev := ev.(type) {
		case ConnectedEvent:
			logger.Debug("media stream connected")

		case StartEvent:
			// A new start on the same socket discards any prior call
			// state entirely.
			teardown()
			stream = NewStream(conn, ev.StreamSID, h.Stream, logger)
			s, err := h.NewSession(ev.StreamSID, ev.CallSID, stream)
			if err != nil {
				logger.Error("start session failed", "stream_sid", ev.StreamSID, "error", err)
				return
			}
			sess = s
			go func(s *call.Session) {
				if err := s.Run(); err != nil {
					logger.Error("session terminated", "error", err)
				}
			}(s)
			logger.Info("media stream started", "stream_sid", ev.StreamSID, "call_sid", ev.CallSID)

		case MediaEvent:
			if sess != nil {
				sess.HandleMedia(ev.Payload)
			}

		case MarkEvent:
			if sess != nil {
				sess.HandleMark(ev.Label, ev.Sequence)
			}

		case StopEvent:
			logger.Info("media stream ended")
			teardown()
		}
	}
}

// NewMux wires the call-facing routes.
func NewMux(incoming IncomingHandler, connection ConnectionHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", HealthHandler{})
	mux.Handle("/incoming", incoming)
	mux.Handle("/connection", connection)
	return mux
}
