// Package stream implements the session bridge between a local display
// client and a SPICE guest.
//
// A Stream owns one logical connection: it claims the inputs and main
// channels as the protocol client discovers them, translates local
// mouse/keyboard/clipboard/drag events into channel operations, and delivers
// guest frames, window metadata, clipboard updates, and the closed
// notification back to the embedding application through the Config
// callbacks.
//
// Everything mutable on a Stream is guarded by one mutex. The protocol
// client's dispatch goroutine, the background frame worker, and any number
// of caller goroutines may touch a Stream concurrently; no callback into
// the application is ever made while the mutex is held.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/spicebridge/internal/spice"
)

// Config carries the parameters common to both open paths. Factory is
// required; the callbacks are optional and immutable after open (the
// clipboard callback is the exception, see SetClipboardFunc).
type Config struct {
	// WindowID identifies the guest window this stream backs.
	WindowID uint64

	// Factory constructs the protocol-client session.
	Factory spice.Factory

	// Ticket is the session password; empty means no auth.
	Ticket string

	// Frame receives raw frame bytes on the worker goroutine.
	Frame FrameFunc

	// Metadata receives the single window-metadata announcement.
	Metadata MetadataFunc

	// Closed receives the single closed notification after Close.
	Closed ClosedFunc

	// FrameInterval overrides the synthetic frame period. Zero means the
	// default of 33ms.
	FrameInterval time.Duration
}

// Stream is one open remote-display connection. Open it with OpenTCP or
// OpenFD and close it exactly once with Close; a closed Stream must not be
// reused.
type Stream struct {
	windowID      uint64
	frameFn       FrameFunc
	metadataFn    MetadataFunc
	closedFn      ClosedFunc
	frameInterval time.Duration

	running    atomic.Bool
	workerDone chan struct{}

	listener *channelListener
	clip     *clipboardHandler

	mu           sync.Mutex
	buttons      spice.ButtonMask
	clipboardSeq uint64
	clipboardFn  ClipboardFunc
	session      spice.Session
	inputs       spice.InputsChannel
	main         spice.MainChannel
}

func newStream(cfg Config) *Stream {
	s := &Stream{
		windowID:      cfg.WindowID,
		frameFn:       cfg.Frame,
		metadataFn:    cfg.Metadata,
		closedFn:      cfg.Closed,
		frameInterval: cfg.FrameInterval,
		workerDone:    make(chan struct{}),
	}
	if s.frameInterval <= 0 {
		s.frameInterval = defaultFrameInterval
	}
	s.listener = &channelListener{s: s}
	s.clip = &clipboardHandler{s: s}
	s.running.Store(true)
	return s
}

// OpenTCP opens a stream to host:port, optionally over TLS. The channel
// listener is subscribed before Connect so a channel announced during
// connection setup cannot be missed. On any failure every partially
// constructed resource is released before returning.
func OpenTCP(host string, port uint16, useTLS bool, cfg Config) (*Stream, error) {
	if cfg.Factory == nil {
		return nil, errors.New("stream: nil session factory")
	}

	s := newStream(cfg)
	sess, err := cfg.Factory.NewSession(spice.SessionConfig{
		Host:   host,
		Port:   port,
		TLS:    useTLS,
		Ticket: cfg.Ticket,
	})
	if err != nil {
		return nil, fmt.Errorf("stream: create session: %w", err)
	}
	s.session = sess

	sess.Subscribe(s.listener)
	if err := sess.Connect(); err != nil {
		sess.Unsubscribe(s.listener)
		sess.Close()
		return nil, fmt.Errorf("stream: connect %s:%d: %w", host, port, err)
	}

	s.startWorker()
	slog.Info("stream opened",
		"window", cfg.WindowID,
		"host", host,
		"port", port,
		"tls", useTLS,
	)
	return s, nil
}

// OpenFD opens a stream over a pre-connected descriptor, as used with
// shared-memory transports. A negative descriptor is rejected before
// anything is allocated.
func OpenFD(fd int, cfg Config) (*Stream, error) {
	if fd < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}
	if cfg.Factory == nil {
		return nil, errors.New("stream: nil session factory")
	}

	s := newStream(cfg)
	sess, err := cfg.Factory.NewSession(spice.SessionConfig{Ticket: cfg.Ticket})
	if err != nil {
		return nil, fmt.Errorf("stream: create session: %w", err)
	}
	s.session = sess

	sess.Subscribe(s.listener)
	if err := sess.OpenFD(fd); err != nil {
		sess.Unsubscribe(s.listener)
		sess.Close()
		return nil, fmt.Errorf("stream: open descriptor %d: %w", fd, err)
	}

	s.startWorker()
	slog.Info("stream opened", "window", cfg.WindowID, "fd", fd)
	return s, nil
}

// Close stops the worker, waits for the closed notification to fire, then
// unbinds the channels and releases the session. Close on a nil Stream is a
// no-op. Close must be called at most once per Stream, and never from a
// Config callback (the worker join would deadlock).
func (s *Stream) Close() {
	if s == nil {
		return
	}

	s.running.Store(false)
	<-s.workerDone

	s.mu.Lock()
	sess := s.session
	if sess != nil {
		sess.Unsubscribe(s.listener)
	}
	if s.main != nil {
		s.main.SetClipboardHandler(nil)
		s.main.Unref()
		s.main = nil
	}
	if s.inputs != nil {
		s.inputs.Unref()
		s.inputs = nil
	}
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	slog.Info("stream closed", "window", s.windowID)
}

// SetClipboardFunc sets or replaces the guest-clipboard delivery callback.
// Unlike the open-time callbacks it may be changed at any point in the
// stream's life.
func (s *Stream) SetClipboardFunc(fn ClipboardFunc) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.clipboardFn = fn
	s.mu.Unlock()
}
