package stream

import (
	"math/rand"
	"time"
)

const (
	defaultFrameInterval = 33 * time.Millisecond
	frameSize            = 1024
)

func (s *Stream) startWorker() {
	go s.runWorker()
}

// runWorker is the background frame worker: one metadata announcement, then
// periodic synthetic frames while the run flag holds, then exactly one
// closed notification. It never touches the mutex-guarded fields — only the
// atomic run flag and the open-time callbacks. Real decoded frames will
// replace the synthetic feed once the display channel is wired up; the
// callback contract stays the same.
func (s *Stream) runWorker() {
	defer close(s.workerDone)

	if s.metadataFn != nil {
		s.metadataFn(WindowMetadata{
			WindowID:    s.windowID,
			X:           100,
			Y:           100,
			Width:       800,
			Height:      600,
			ScaleFactor: 1.0,
			Resizable:   true,
			Title:       "Spice Window",
		})
	}

	tick := time.NewTicker(s.frameInterval)
	defer tick.Stop()

	buf := make([]byte, frameSize)
	for s.running.Load() {
		if s.frameFn != nil {
			for i := range buf {
				buf[i] = byte(rand.Intn(255))
			}
			s.frameFn(buf)
		}
		<-tick.C
	}

	if s.closedFn != nil {
		s.closedFn(CloseReasonRemote, "Stream closed")
	}
}
