package stream

import (
	"log/slog"

	"go.klb.dev/spicebridge/internal/spice"
)

// formatToSpice maps a host clipboard format onto the protocol's limited
// type set. RTF, HTML, and file URLs degrade to UTF-8 text (sent in their
// literal textual form); TIFF degrades to BMP. The downgrades are lossy on
// purpose: guest agents only understand this table.
func formatToSpice(f ClipboardFormat) spice.ClipboardType {
	switch f {
	case FormatText, FormatRTF, FormatHTML, FormatFileURL:
		return spice.ClipboardUTF8Text
	case FormatPNG:
		return spice.ClipboardImagePNG
	case FormatTIFF:
		return spice.ClipboardImageBMP
	default:
		return spice.ClipboardUTF8Text
	}
}

// spiceToFormat maps a protocol clipboard type back to a host format.
// BMP deliveries are reported as PNG, the nearest local image format.
func spiceToFormat(t spice.ClipboardType) ClipboardFormat {
	switch t {
	case spice.ClipboardUTF8Text:
		return FormatText
	case spice.ClipboardImagePNG, spice.ClipboardImageBMP:
		return FormatPNG
	default:
		return FormatText
	}
}

// clipboardHandler reacts to guest clipboard events delivered on the
// protocol client's dispatch goroutine. Each handler locks, mutates,
// snapshots what it needs, unlocks, and only then calls out — the
// application callback must never run under the stream mutex.
type clipboardHandler struct {
	s *Stream
}

// ClipboardGrabbed implements spice.ClipboardHandler. The guest announced
// new clipboard content; pick one type and ask for its data. An exact text
// type wins immediately; a PNG seen during the scan is remembered as the
// fallback; failing both, the first advertised type is used.
func (h *clipboardHandler) ClipboardGrabbed(sel spice.Selection, types []spice.ClipboardType) {
	s := h.s
	if len(types) == 0 {
		return
	}

	preferred := types[0]
scan:
	for _, t := range types {
		switch t {
		case spice.ClipboardUTF8Text:
			preferred = t
			break scan
		case spice.ClipboardImagePNG:
			preferred = t
			// Keep scanning in case text shows up later.
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.main != nil {
		s.main.ClipboardRequest(sel, preferred)
	}
}

// ClipboardData implements spice.ClipboardHandler. The sequence counter is
// bumped under the mutex even when no callback is set, so an application
// attaching a callback late never observes a stale or repeated number.
func (h *clipboardHandler) ClipboardData(sel spice.Selection, typ spice.ClipboardType, data []byte) {
	s := h.s
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	s.clipboardSeq++
	seq := s.clipboardSeq
	fn := s.clipboardFn
	s.mu.Unlock()

	if fn != nil {
		fn(ClipboardData{
			Format:   spiceToFormat(typ),
			Data:     data,
			Sequence: seq,
		})
	}
}

// ClipboardRequested implements spice.ClipboardHandler. The guest wants
// host clipboard data; the bridge does not monitor the local clipboard, so
// the request is acknowledged but never answered here. Callers keep the
// guest current via the push path instead (SendClipboard, or clipsync).
func (h *clipboardHandler) ClipboardRequested(sel spice.Selection, typ spice.ClipboardType) {
	slog.Debug("guest requested host clipboard, push path only",
		"window", h.s.windowID,
		"type", typ,
	)
}

// ClipboardReleased implements spice.ClipboardHandler. No state to drop.
func (h *clipboardHandler) ClipboardReleased(sel spice.Selection) {}

// SendClipboard pushes host clipboard content to the guest with the
// two-step handshake: grab the selection advertising exactly the one format
// being sent, then notify with the bytes.
func (s *Stream) SendClipboard(cb *ClipboardData) error {
	if s == nil {
		return ErrNilStream
	}
	if cb == nil || cb.Data == nil {
		return ErrNilClipboard
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	main := s.main
	if main == nil {
		return ErrNoMainChannel
	}

	typ := formatToSpice(cb.Format)
	main.ClipboardGrab(spice.SelectionClipboard, []spice.ClipboardType{typ})
	main.ClipboardNotify(spice.SelectionClipboard, typ, cb.Data)
	return nil
}

// RequestClipboard asks the guest for its clipboard data in the given
// format. The data arrives later through the clipboard callback, never
// synchronously.
func (s *Stream) RequestClipboard(format ClipboardFormat) error {
	if s == nil {
		return ErrNilStream
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.main == nil {
		return ErrNoMainChannel
	}
	s.main.ClipboardRequest(spice.SelectionClipboard, formatToSpice(format))
	return nil
}
