package stream

import (
	"encoding/binary"
	"log/slog"
	"net/http"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/audio"
)

// HTTPHandler serves the live briefing audio as a chunked WAV stream. The
// header advertises an effectively unbounded data chunk; listeners stop
// when they disconnect.
type HTTPHandler struct {
	broadcaster *Broadcaster
	sampleRate  int
	logger      *slog.Logger
}

func NewHTTPHandler(b *Broadcaster, sampleRate int, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		broadcaster: b,
		sampleRate:  sampleRate,
		logger:      logger.With(slog.String("component", "stream")),
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if _, err := w.Write(wavHeader(h.sampleRate)); err != nil {
		return
	}
	flusher.Flush()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.logger.Info("stream listener connected", slog.Int("total", h.broadcaster.ListenerCount()))
	defer h.logger.Info("stream listener disconnected")

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if _, err := w.Write(audio.ToPCM16(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// wavHeader builds a 44-byte PCM16 mono RIFF header with a maximal data
// size, the usual trick for live streams of unknown length.
func wavHeader(sampleRate int) []byte {
	const (
		bitsPerSample = 16
		channels      = 1
	)
	byteRate := sampleRate * channels * bitsPerSample / 8

	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 0xFFFFFFFF)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], channels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], 0xFFFFFFFF)
	return h
}
