// Package spicetest provides in-memory doubles for the spice boundary.
//
// The doubles record every call and count references, so tests can assert
// the bridge's binding, release, and handshake invariants without a real
// protocol client. The demo CLI also runs against them: a Factory with
// AutoChannels announces an inputs and a main channel as soon as a session
// connects, which is enough to exercise the whole bridge surface.
package spicetest

import (
	"fmt"
	"os"
	"sync"

	"go.klb.dev/spicebridge/internal/spice"
)

// Factory creates fake sessions and records them for inspection.
type Factory struct {
	// NewSessionErr, when set, makes NewSession fail.
	NewSessionErr error

	// ConnectErr / OpenFDErr are copied onto every created session.
	ConnectErr error
	OpenFDErr  error

	// AutoChannels makes every session announce a fresh inputs and main
	// channel immediately after Connect or OpenFD succeeds.
	AutoChannels bool

	// StatFiles makes NewFileSource verify paths with os.Stat.
	StatFiles bool

	mu       sync.Mutex
	sessions []*Session
}

// NewSession implements spice.Factory.
func (f *Factory) NewSession(cfg spice.SessionConfig) (spice.Session, error) {
	if f.NewSessionErr != nil {
		return nil, f.NewSessionErr
	}
	s := &Session{
		Cfg:        cfg,
		ConnectErr: f.ConnectErr,
		OpenFDErr:  f.OpenFDErr,
		auto:       f.AutoChannels,
		statFiles:  f.StatFiles,
		fd:         -1,
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

// Sessions returns every session the factory has created so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Session is a fake spice.Session. Tests drive channel discovery by calling
// Announce; AutoChannels sessions do it themselves on connect.
type Session struct {
	Cfg spice.SessionConfig

	// ConnectErr / OpenFDErr, when set, make the respective call fail.
	ConnectErr error
	OpenFDErr  error

	auto      bool
	statFiles bool

	mu        sync.Mutex
	listeners []spice.ChannelListener
	connected bool
	closed    bool
	fd        int
	files     []*FileSource

	// Inputs and Main are set when AutoChannels announced them.
	Inputs *InputsChannel
	Main   *MainChannel
}

// Subscribe implements spice.Session.
func (s *Session) Subscribe(l spice.ChannelListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Unsubscribe implements spice.Session.
func (s *Session) Unsubscribe(l spice.ChannelListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.listeners {
		if x == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Connect implements spice.Session.
func (s *Session) Connect() error {
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	if s.auto {
		s.announceDefaults()
	}
	return nil
}

// OpenFD implements spice.Session.
func (s *Session) OpenFD(fd int) error {
	if s.OpenFDErr != nil {
		return s.OpenFDErr
	}
	if fd < 0 {
		return fmt.Errorf("spicetest: negative descriptor %d", fd)
	}
	s.mu.Lock()
	s.connected = true
	s.fd = fd
	s.mu.Unlock()
	if s.auto {
		s.announceDefaults()
	}
	return nil
}

func (s *Session) announceDefaults() {
	in := NewInputsChannel()
	main := NewMainChannel()
	s.mu.Lock()
	s.Inputs = in
	s.Main = main
	s.mu.Unlock()
	s.Announce(in)
	s.Announce(main)
}

// Announce delivers ch to every subscribed listener, like the client
// library's channel-new signal. Safe to call from any goroutine.
func (s *Session) Announce(ch spice.Channel) {
	s.mu.Lock()
	ls := append([]spice.ChannelListener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l.ChannelNew(ch)
	}
}

// NewFileSource implements spice.Session.
func (s *Session) NewFileSource(path string) (spice.FileSource, error) {
	if s.statFiles {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("spicetest: resolve %s: %w", path, err)
		}
	}
	fs := &FileSource{path: path, refs: 1}
	s.mu.Lock()
	s.files = append(s.files, fs)
	s.mu.Unlock()
	return fs, nil
}

// Close implements spice.Session.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Connected reports whether Connect or OpenFD succeeded.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FD returns the descriptor passed to OpenFD, or -1.
func (s *Session) FD() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// Listeners returns the number of currently subscribed listeners.
func (s *Session) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// FileSources returns every file source the session has resolved.
func (s *Session) FileSources() []*FileSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FileSource(nil), s.files...)
}

// refCounted implements spice.Channel with observable counters.
type refCounted struct {
	mu     sync.Mutex
	refs   int
	unrefs int
}

// Ref implements spice.Channel.
func (c *refCounted) Ref() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

// Unref implements spice.Channel.
func (c *refCounted) Unref() {
	c.mu.Lock()
	c.refs--
	c.unrefs++
	c.mu.Unlock()
}

// Refs returns the current reference count.
func (c *refCounted) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// Unrefs returns the total number of Unref calls.
func (c *refCounted) Unrefs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unrefs
}

// InputOp is one recorded inputs-channel operation.
type InputOp struct {
	Kind     string // "position", "press", "release", "key-press", "key-release"
	X, Y     int
	Display  int
	Button   spice.Button
	Held     spice.ButtonMask
	Scancode uint32
}

// InputsChannel is a fake spice.InputsChannel recording every operation.
type InputsChannel struct {
	refCounted

	opMu sync.Mutex
	ops  []InputOp
}

// NewInputsChannel returns an inputs channel holding one library reference.
func NewInputsChannel() *InputsChannel {
	c := &InputsChannel{}
	c.refs = 1
	return c
}

func (c *InputsChannel) record(op InputOp) {
	c.opMu.Lock()
	c.ops = append(c.ops, op)
	c.opMu.Unlock()
}

// Position implements spice.InputsChannel.
func (c *InputsChannel) Position(x, y, display int, held spice.ButtonMask) {
	c.record(InputOp{Kind: "position", X: x, Y: y, Display: display, Held: held})
}

// ButtonPress implements spice.InputsChannel.
func (c *InputsChannel) ButtonPress(b spice.Button, held spice.ButtonMask) {
	c.record(InputOp{Kind: "press", Button: b, Held: held})
}

// ButtonRelease implements spice.InputsChannel.
func (c *InputsChannel) ButtonRelease(b spice.Button, held spice.ButtonMask) {
	c.record(InputOp{Kind: "release", Button: b, Held: held})
}

// KeyPress implements spice.InputsChannel.
func (c *InputsChannel) KeyPress(scancode uint32) {
	c.record(InputOp{Kind: "key-press", Scancode: scancode})
}

// KeyRelease implements spice.InputsChannel.
func (c *InputsChannel) KeyRelease(scancode uint32) {
	c.record(InputOp{Kind: "key-release", Scancode: scancode})
}

// Ops returns a snapshot of all recorded operations.
func (c *InputsChannel) Ops() []InputOp {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return append([]InputOp(nil), c.ops...)
}

// Reset discards recorded operations.
func (c *InputsChannel) Reset() {
	c.opMu.Lock()
	c.ops = nil
	c.opMu.Unlock()
}

// Notify is one recorded clipboard-notify call.
type Notify struct {
	Sel  spice.Selection
	Type spice.ClipboardType
	Data []byte
}

// FileCopy is one recorded FileCopyAsync submission.
type FileCopy struct {
	Sources  []spice.FileSource
	Progress spice.ProgressFunc
	Done     spice.CompleteFunc
}

// MainChannel is a fake spice.MainChannel.
type MainChannel struct {
	refCounted

	// AutoCompleteCopies makes FileCopyAsync invoke done(nil) synchronously.
	AutoCompleteCopies bool

	opMu     sync.Mutex
	handler  spice.ClipboardHandler
	grabs    [][]spice.ClipboardType
	notifies []Notify
	requests []spice.ClipboardType
	copies   []*FileCopy
}

// NewMainChannel returns a main channel holding one library reference.
func NewMainChannel() *MainChannel {
	c := &MainChannel{}
	c.refs = 1
	return c
}

// SetClipboardHandler implements spice.MainChannel.
func (c *MainChannel) SetClipboardHandler(h spice.ClipboardHandler) {
	c.opMu.Lock()
	c.handler = h
	c.opMu.Unlock()
}

// Handler returns the currently attached clipboard handler, or nil. Tests
// use it to emit guest clipboard events at the bridge.
func (c *MainChannel) Handler() spice.ClipboardHandler {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.handler
}

// ClipboardGrab implements spice.MainChannel.
func (c *MainChannel) ClipboardGrab(sel spice.Selection, types []spice.ClipboardType) {
	c.opMu.Lock()
	c.grabs = append(c.grabs, append([]spice.ClipboardType(nil), types...))
	c.opMu.Unlock()
}

// ClipboardNotify implements spice.MainChannel.
func (c *MainChannel) ClipboardNotify(sel spice.Selection, typ spice.ClipboardType, data []byte) {
	c.opMu.Lock()
	c.notifies = append(c.notifies, Notify{Sel: sel, Type: typ, Data: append([]byte(nil), data...)})
	c.opMu.Unlock()
}

// ClipboardRequest implements spice.MainChannel.
func (c *MainChannel) ClipboardRequest(sel spice.Selection, typ spice.ClipboardType) {
	c.opMu.Lock()
	c.requests = append(c.requests, typ)
	c.opMu.Unlock()
}

// FileCopyAsync implements spice.MainChannel.
func (c *MainChannel) FileCopyAsync(sources []spice.FileSource, progress spice.ProgressFunc, done spice.CompleteFunc) {
	fc := &FileCopy{
		Sources:  append([]spice.FileSource(nil), sources...),
		Progress: progress,
		Done:     done,
	}
	c.opMu.Lock()
	c.copies = append(c.copies, fc)
	auto := c.AutoCompleteCopies
	c.opMu.Unlock()
	if auto && done != nil {
		done(nil)
	}
}

// Grabs returns every recorded clipboard grab.
func (c *MainChannel) Grabs() [][]spice.ClipboardType {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return append([][]spice.ClipboardType(nil), c.grabs...)
}

// Notifies returns every recorded clipboard notify.
func (c *MainChannel) Notifies() []Notify {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return append([]Notify(nil), c.notifies...)
}

// Requests returns every recorded clipboard request type.
func (c *MainChannel) Requests() []spice.ClipboardType {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return append([]spice.ClipboardType(nil), c.requests...)
}

// Copies returns every recorded file-copy submission.
func (c *MainChannel) Copies() []*FileCopy {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return append([]*FileCopy(nil), c.copies...)
}

// FileSource is a fake spice.FileSource counting releases.
type FileSource struct {
	path string

	mu       sync.Mutex
	refs     int
	released int
}

// Path implements spice.FileSource.
func (f *FileSource) Path() string { return f.path }

// Release implements spice.FileSource.
func (f *FileSource) Release() {
	f.mu.Lock()
	f.refs--
	f.released++
	f.mu.Unlock()
}

// Released returns how many times Release was called.
func (f *FileSource) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
