// Package spice defines the boundary to the SPICE protocol-client library.
//
// The bridge core never touches the wire: session construction, transport
// and TLS negotiation, authentication, and channel multiplexing all live
// behind these interfaces. A real implementation wraps a SPICE client
// (e.g. a libspice-client binding); spicetest provides in-memory doubles
// for tests and the demo CLI.
//
// Channels are discovered asynchronously: the client library announces each
// new channel to every subscribed ChannelListener, on whatever goroutine its
// event dispatch runs on. Listeners must therefore do their own locking and
// must be subscribed before Connect so no announcement is missed.
//
// Channel and FileSource objects are reference counted by the library.
// Holding a binding to a channel means holding one counted reference:
// Ref when storing, Unref when replacing or dropping.
package spice

// Button identifies a pointer button in the SPICE inputs protocol.
type Button int

// SPICE pointer buttons. Up and Down are the scroll-wheel steps.
const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
	ButtonUp     Button = 4
	ButtonDown   Button = 5
)

// ButtonMask is the bitmask of currently held pointer buttons, as carried
// by position and button messages.
type ButtonMask int

// Mask bits corresponding to the Button values.
const (
	MaskLeft   ButtonMask = 1 << 0
	MaskMiddle ButtonMask = 1 << 1
	MaskRight  ButtonMask = 1 << 2
	MaskUp     ButtonMask = 1 << 3
	MaskDown   ButtonMask = 1 << 4
)

// ClipboardType is a VD-agent clipboard data type.
type ClipboardType uint32

// VD-agent clipboard types.
const (
	ClipboardNone      ClipboardType = 0
	ClipboardUTF8Text  ClipboardType = 1
	ClipboardImagePNG  ClipboardType = 2
	ClipboardImageBMP  ClipboardType = 3
	ClipboardImageTIFF ClipboardType = 4
	ClipboardImageJPG  ClipboardType = 5
)

// Selection identifies which clipboard selection a message refers to.
type Selection uint8

// SelectionClipboard is the primary clipboard selection. The X11 PRIMARY
// and SECONDARY selections are not used by the bridge.
const (
	SelectionClipboard Selection = 0
	SelectionPrimary   Selection = 1
	SelectionSecondary Selection = 2
)

// SessionConfig carries the connection parameters handed to the client
// library at session construction. Port is ignored when the session is
// opened over a pre-connected descriptor.
type SessionConfig struct {
	Host   string
	Port   uint16
	TLS    bool
	Ticket string // session password; empty means no auth
}

// Factory constructs sessions. It is the single entry point an embedding
// application needs to supply.
type Factory interface {
	// NewSession creates an unconnected session. The caller subscribes its
	// ChannelListener and then calls either Connect or OpenFD.
	NewSession(cfg SessionConfig) (Session, error)
}

// ChannelListener is notified of every channel created on a session.
// Announcements may arrive on any goroutine, including before the
// subscribing call to Connect has returned.
type ChannelListener interface {
	ChannelNew(ch Channel)
}

// Session is the client library's connection object. It owns its channels;
// the bridge only ever holds counted references handed out via ChannelNew.
type Session interface {
	// Subscribe registers l for channel announcements. Must be called
	// before Connect or OpenFD to avoid missing early channels.
	Subscribe(l ChannelListener)

	// Unsubscribe removes a previously subscribed listener.
	Unsubscribe(l ChannelListener)

	// Connect starts connecting to the host/port from the SessionConfig.
	// Channel announcements follow asynchronously.
	Connect() error

	// OpenFD starts the session over a pre-connected descriptor, as used
	// with shared-memory transports. fd must be non-negative.
	OpenFD(fd int) error

	// NewFileSource resolves a host-side path into a transferable file
	// object. The returned source holds one reference; Release it when the
	// transfer that owns it completes.
	NewFileSource(path string) (FileSource, error)

	// Close disconnects and releases the session.
	Close()
}

// Channel is one sub-connection of a session. Concrete channels also
// implement InputsChannel or MainChannel; the bridge ignores other kinds.
type Channel interface {
	// Ref takes an additional counted reference on the channel.
	Ref()
	// Unref drops one counted reference.
	Unref()
}

// InputsChannel carries pointer and keyboard traffic to the guest.
// All methods enqueue without blocking on I/O.
type InputsChannel interface {
	Channel

	// Position reports an absolute pointer position on the given display
	// together with the currently held button mask.
	Position(x, y int, display int, held ButtonMask)

	// ButtonPress reports button going down; held includes the button.
	ButtonPress(b Button, held ButtonMask)

	// ButtonRelease reports button going up; held is the pre-release mask.
	ButtonRelease(b Button, held ButtonMask)

	// KeyPress sends a key-down for a PC scan code. Extended keys carry
	// the 0xE0 prefix as bit 8 of the code.
	KeyPress(scancode uint32)

	// KeyRelease sends the matching key-up.
	KeyRelease(scancode uint32)
}

// ClipboardHandler receives guest clipboard events from a main channel.
// Calls arrive on the library's dispatch goroutine.
type ClipboardHandler interface {
	// ClipboardGrabbed: the guest announced new clipboard content in the
	// given types, in the guest's preference order.
	ClipboardGrabbed(sel Selection, types []ClipboardType)

	// ClipboardData: the guest delivered clipboard bytes, in response to a
	// prior request or push. data is only valid for the duration of the call.
	ClipboardData(sel Selection, typ ClipboardType, data []byte)

	// ClipboardRequested: the guest wants host clipboard data of typ.
	ClipboardRequested(sel Selection, typ ClipboardType)

	// ClipboardReleased: the guest dropped clipboard ownership.
	ClipboardReleased(sel Selection)
}

// ProgressFunc reports file-copy progress as transferred/total bytes.
type ProgressFunc func(current, total int64)

// CompleteFunc reports file-copy completion. err is nil on success.
type CompleteFunc func(err error)

// MainChannel is the control channel: clipboard handshake and file transfer.
type MainChannel interface {
	Channel

	// SetClipboardHandler attaches h to the channel's clipboard events,
	// replacing any previous handler. nil detaches.
	SetClipboardHandler(h ClipboardHandler)

	// ClipboardGrab announces host clipboard content in the given types.
	ClipboardGrab(sel Selection, types []ClipboardType)

	// ClipboardNotify delivers host clipboard bytes of typ to the guest.
	ClipboardNotify(sel Selection, typ ClipboardType, data []byte)

	// ClipboardRequest asks the guest for its clipboard data of typ; the
	// bytes arrive later via ClipboardHandler.ClipboardData.
	ClipboardRequest(sel Selection, typ ClipboardType)

	// FileCopyAsync submits an asynchronous multi-file copy to the guest.
	// done is invoked exactly once when the whole transfer finishes or
	// fails; progress may be nil.
	FileCopyAsync(sources []FileSource, progress ProgressFunc, done CompleteFunc)
}

// FileSource is a resolved host file queued for transfer to the guest.
type FileSource interface {
	// Path returns the host-side path the source was resolved from.
	Path() string
	// Release drops the reference held by the resolver or transfer owner.
	Release()
}
