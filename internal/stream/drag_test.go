package stream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/spicebridge/internal/spice/spicetest"
)

// openDragStream opens a stream whose session verifies drag paths on disk.
func openDragStream(t *testing.T) (*Stream, *spicetest.Session) {
	t.Helper()

	f := &spicetest.Factory{StatFiles: true}
	s, err := OpenTCP("guest.local", 5900, false, Config{
		Factory:       f,
		FrameInterval: testFrameInterval,
	})
	require.NoError(t, err)
	return s, f.Sessions()[0]
}

func writeDragFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	return path
}

func TestDropSubmitsOneCopy(t *testing.T) {
	t.Parallel()

	s, sess := openDragStream(t)
	defer s.Close()
	_, mc := bindChannels(t, sess)

	dir := t.TempDir()
	ev := &DragEvent{
		Type: DragDrop,
		Files: []DragFile{
			{HostPath: writeDragFile(t, dir, "a.txt")},
			{HostPath: writeDragFile(t, dir, "b.txt")},
		},
	}
	require.NoError(t, s.SendDrag(ev))

	copies := mc.Copies()
	require.Len(t, copies, 1)
	require.Len(t, copies[0].Sources, 2)

	// Nothing released while the transfer is in flight.
	for _, src := range copies[0].Sources {
		require.Zero(t, src.(*spicetest.FileSource).Released())
	}

	// Completion releases every source exactly once.
	copies[0].Done(nil)
	for _, src := range copies[0].Sources {
		require.Equal(t, 1, src.(*spicetest.FileSource).Released())
	}
}

func TestDropFailureStillReleasesSources(t *testing.T) {
	t.Parallel()

	s, sess := openDragStream(t)
	defer s.Close()
	_, mc := bindChannels(t, sess)

	dir := t.TempDir()
	ev := &DragEvent{
		Type:  DragDrop,
		Files: []DragFile{{HostPath: writeDragFile(t, dir, "a.txt")}},
	}
	require.NoError(t, s.SendDrag(ev))

	copies := mc.Copies()
	require.Len(t, copies, 1)
	copies[0].Done(errors.New("guest agent rejected transfer"))
	require.Equal(t, 1, copies[0].Sources[0].(*spicetest.FileSource).Released())
}

func TestDropMissingFileAbortsWholeTransfer(t *testing.T) {
	t.Parallel()

	s, sess := openDragStream(t)
	defer s.Close()
	_, mc := bindChannels(t, sess)

	dir := t.TempDir()
	ev := &DragEvent{
		Type: DragDrop,
		Files: []DragFile{
			{HostPath: writeDragFile(t, dir, "a.txt")},
			{HostPath: filepath.Join(dir, "missing.txt")},
		},
	}
	require.Error(t, s.SendDrag(ev))

	// No partial transfer, and the source resolved before the failure was
	// released again.
	require.Empty(t, mc.Copies())
	resolved := sess.FileSources()
	require.Len(t, resolved, 1)
	require.Equal(t, 1, resolved[0].Released())
}

func TestDropEmptyPathAborts(t *testing.T) {
	t.Parallel()

	s, sess := openDragStream(t)
	defer s.Close()
	_, mc := bindChannels(t, sess)

	ev := &DragEvent{Type: DragDrop, Files: []DragFile{{}}}
	require.Error(t, s.SendDrag(ev))
	require.Empty(t, mc.Copies())
}

func TestDragVisualPhasesProduceNoTraffic(t *testing.T) {
	t.Parallel()

	s, sess := openDragStream(t)
	defer s.Close()
	_, mc := bindChannels(t, sess)

	for _, typ := range []DragEventType{DragEnter, DragMove, DragLeave} {
		require.NoError(t, s.SendDrag(&DragEvent{Type: typ, X: 10, Y: 10}))
	}
	// A drop with no files is visual-only as well.
	require.NoError(t, s.SendDrag(&DragEvent{Type: DragDrop}))

	require.Empty(t, mc.Copies())
	require.Empty(t, sess.FileSources())
}

func TestSendDragGuards(t *testing.T) {
	t.Parallel()

	var nilStream *Stream
	require.ErrorIs(t, nilStream.SendDrag(&DragEvent{}), ErrNilStream)

	s, _ := openDragStream(t)
	defer s.Close()

	require.ErrorIs(t, s.SendDrag(nil), ErrNilEvent)
	// The main-channel check applies to every drag phase.
	require.ErrorIs(t, s.SendDrag(&DragEvent{Type: DragEnter}), ErrNoMainChannel)
}
