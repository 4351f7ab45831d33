// Package clip provides access to the host system clipboard. Build
// constraints select the implementation:
//
//	clip_darwin.go   — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  — Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	clip_linux.go    — Linux via golang.design/x/clipboard, polling only
//	clip_other.go    — headless / container stub
//
// The bridge core never touches this package; clipsync uses it to keep the
// host clipboard and a guest stream in sync.
package clip

// Well-known MIME types the backends read and write.
const (
	MIMEText = "text/plain"
	MIMEPNG  = "image/png"
)

// Item is one clipboard representation with a MIME type.
type Item struct {
	MIME string
	Data []byte
}

// Backend is the interface all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents as typed items.
	// Returns nil, nil when the clipboard is empty or holds only
	// unsupported types.
	Read() ([]Item, error)

	// Write sets the clipboard contents to the provided items.
	Write(items []Item) error

	// Watch returns a channel that receives a signal whenever the
	// clipboard changes. The channel is never closed. On platforms
	// without native change notification this is implemented by polling.
	// Call Read when the channel fires.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// headlessBackend is the no-op backend for environments without a display
// server. It never produces Watch events and silently discards writes.
type headlessBackend struct {
	watchCh chan struct{}
}

func (b *headlessBackend) Name() string { return "headless (no-op)" }
func (b *headlessBackend) Read() ([]Item, error) { return nil, nil }
func (b *headlessBackend) Write(_ []Item) error { return nil }
func (b *headlessBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *headlessBackend) Close() {}
