// Package clipsync keeps the host system clipboard and a guest stream in
// sync. It is the embedding-layer answer to guest clipboard requests: the
// bridge core never answers them itself, so the syncer keeps the guest
// current by pushing every local change through the stream's push path.
package clipsync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.klb.dev/spicebridge/internal/clip"
	"go.klb.dev/spicebridge/internal/stream"
)

// Syncer bridges one clip.Backend and one Stream. Local clipboard changes
// are pushed to the guest; guest deliveries are written to the local
// clipboard. The delivery sequence number plus content comparison stop the
// two directions from echoing into each other.
type Syncer struct {
	s       *stream.Stream
	backend clip.Backend

	mu       sync.Mutex
	lastSeq  uint64
	lastData []byte // last payload applied in either direction
}

// New creates a Syncer and attaches the guest-delivery callback to the
// stream, so no delivery between construction and Run is lost.
func New(s *stream.Stream, backend clip.Backend) *Syncer {
	sy := &Syncer{s: s, backend: backend}
	s.SetClipboardFunc(sy.onGuestClipboard)
	return sy
}

// Run watches the local clipboard until ctx is cancelled, then detaches the
// guest-delivery callback. It always returns ctx.Err(). The stream must
// outlive the Run call.
func (sy *Syncer) Run(ctx context.Context) error {
	defer sy.s.SetClipboardFunc(nil)

	slog.Info("clipboard sync started", "backend", sy.backend.Name())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sy.backend.Watch():
			sy.pushLocal()
		}
	}
}

// onGuestClipboard applies one guest delivery to the local clipboard.
func (sy *Syncer) onGuestClipboard(cb stream.ClipboardData) {
	sy.mu.Lock()
	if cb.Sequence <= sy.lastSeq {
		// Stale or duplicate delivery.
		sy.mu.Unlock()
		return
	}
	sy.lastSeq = cb.Sequence
	if bytes.Equal(cb.Data, sy.lastData) {
		sy.mu.Unlock()
		return
	}
	// The delivery buffer is only valid for the duration of the callback.
	data := append([]byte(nil), cb.Data...)
	sy.lastData = data
	sy.mu.Unlock()

	item := clip.Item{MIME: mimeFor(cb.Format), Data: data}
	if err := sy.backend.Write([]clip.Item{item}); err != nil {
		slog.Error("local clipboard write failed", "err", err)
		return
	}
	slog.Debug("local clipboard updated from guest", "seq", cb.Sequence, "bytes", len(data))
}

// pushLocal reads the local clipboard and pushes the first supported item
// to the guest.
func (sy *Syncer) pushLocal() {
	items, err := sy.backend.Read()
	if err != nil {
		slog.Error("local clipboard read failed", "err", err)
		return
	}
	if len(items) == 0 {
		return
	}
	it := items[0]

	sy.mu.Lock()
	if bytes.Equal(it.Data, sy.lastData) {
		sy.mu.Unlock()
		return
	}
	sy.lastData = append([]byte(nil), it.Data...)
	sy.mu.Unlock()

	err = sy.s.SendClipboard(&stream.ClipboardData{
		Format: formatFor(it.MIME),
		Data:   it.Data,
	})
	switch {
	case errors.Is(err, stream.ErrNoMainChannel):
		// Normal while the session is still discovering channels.
		slog.Debug("main channel not ready, clipboard push skipped")
	case err != nil:
		slog.Error("clipboard push failed", "err", err)
	default:
		slog.Debug("local clipboard pushed to guest", "mime", it.MIME, "bytes", len(it.Data))
	}
}

func mimeFor(f stream.ClipboardFormat) string {
	if f == stream.FormatPNG {
		return clip.MIMEPNG
	}
	return clip.MIMEText
}

func formatFor(mime string) stream.ClipboardFormat {
	if mime == clip.MIMEPNG {
		return stream.FormatPNG
	}
	return stream.FormatText
}
