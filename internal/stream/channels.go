package stream

import (
	"log/slog"

	"go.klb.dev/spicebridge/internal/spice"
)

// channelListener reacts to the protocol client announcing new channels.
// Announcements arrive on the client's dispatch goroutine and may repeat
// after a reconnect, so every binding is mutex-guarded and a rebind always
// releases the stale reference first.
type channelListener struct {
	s *Stream
}

// ChannelNew implements spice.ChannelListener.
func (l *channelListener) ChannelNew(ch spice.Channel) {
	s := l.s

	switch c := ch.(type) {
	case spice.InputsChannel:
		s.mu.Lock()
		if s.inputs != nil {
			s.inputs.Unref()
		}
		c.Ref()
		s.inputs = c
		s.mu.Unlock()
		slog.Debug("inputs channel bound", "window", s.windowID)

	case spice.MainChannel:
		s.mu.Lock()
		if s.main != nil {
			// Detach clipboard events from the stale channel so a late
			// delivery on it cannot race the rebind.
			s.main.SetClipboardHandler(nil)
			s.main.Unref()
		}
		c.Ref()
		c.SetClipboardHandler(s.clip)
		s.main = c
		s.mu.Unlock()
		slog.Debug("main channel bound", "window", s.windowID)

	default:
		// Display, cursor, record, etc. are not handled by the bridge.
	}
}
