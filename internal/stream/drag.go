package stream

import (
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/spicebridge/internal/spice"
)

var errEmptyDragPath = errors.New("stream: drag file with empty path")

// dragTransfer owns the per-transfer file sources from submission until the
// completion callback fires. Nothing else touches it once handed to
// FileCopyAsync.
type dragTransfer struct {
	sources []spice.FileSource
}

func (t *dragTransfer) release() {
	for _, src := range t.sources {
		src.Release()
	}
	t.sources = nil
}

// SendDrag handles one drag-and-drop event. Enter, move, and leave are
// visual-only (cursor feedback rides the inputs channel) and produce no
// protocol traffic; a drop with files submits one asynchronous multi-file
// copy. File resolution is all-or-nothing: if any path fails to resolve,
// everything resolved so far is released and no transfer is started.
func (s *Stream) SendDrag(ev *DragEvent) error {
	if s == nil {
		return ErrNilStream
	}
	if ev == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	main := s.main
	if main == nil {
		return ErrNoMainChannel
	}

	if ev.Type != DragDrop || len(ev.Files) == 0 {
		return nil
	}

	t := &dragTransfer{sources: make([]spice.FileSource, 0, len(ev.Files))}
	for _, f := range ev.Files {
		if f.HostPath == "" {
			t.release()
			return errEmptyDragPath
		}
		src, err := s.session.NewFileSource(f.HostPath)
		if err != nil {
			t.release()
			return fmt.Errorf("stream: resolve drag file %s: %w", f.HostPath, err)
		}
		t.sources = append(t.sources, src)
	}

	windowID := s.windowID
	main.FileCopyAsync(t.sources,
		func(current, total int64) {
			// Progress is accepted but not surfaced to the application.
		},
		func(err error) {
			if err != nil {
				// Transfer failures are absorbed here; only the resources
				// are reclaimed.
				slog.Debug("drag file copy failed", "window", windowID, "err", err)
			}
			t.release()
		},
	)
	return nil
}
