package call

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// DefaultBargeInMinRunes is the interim-utterance length above which
// caller speech counts as a barge-in rather than noise.
const DefaultBargeInMinRunes = 5

// BargeIn watches interim transcriptions while audio is outstanding
// and cuts playback when the caller starts talking over the
// assistant.
type BargeIn struct {
	minRunes  int
	playback  *Playback
	transport Transport
	logger    *slog.Logger
}

// NewBargeIn creates a coordinator. minRunes <= 0 selects the default
// threshold.
func NewBargeIn(playback *Playback, transport Transport, minRunes int, logger *slog.Logger) *BargeIn {
	if minRunes <= 0 {
		minRunes = DefaultBargeInMinRunes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BargeIn{minRunes: minRunes, playback: playback, transport: transport, logger: logger}
}

// OnInterim handles an in-progress utterance. If it is long enough to
// reject noise and audio is still pending, the pending-marks set is
// emptied immediately and a clear command is issued to the transport.
// The clear is best effort: no acknowledgment is awaited, and racing
// with audio that already finished playing is harmless. Reports
// whether a clear was issued.
func (b *BargeIn) OnInterim(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= b.minRunes {
		return false
	}
	if b.playback.PendingCount() == 0 {
		return false
	}
	b.playback.Flush()
	if err := b.transport.Clear(); err != nil {
		b.logger.Warn("clear command failed", "error", err)
	}
	b.logger.Info("barge-in: cleared outstanding playback")
	return true
}
