package stream

// MouseEventType selects the kind of pointer event.
type MouseEventType int

const (
	MouseMove MouseEventType = iota
	MousePress
	MouseRelease
	MouseScroll
)

// MouseButton is a pointer button as reported by the embedding application.
type MouseButton int

// Extra1 and Extra2 are side buttons; they reuse the scroll-step protocol
// buttons, which is how extra buttons are conventionally carried to guests.
const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
	ButtonExtra1
	ButtonExtra2
)

// MouseEvent is one pointer event. X and Y are absolute coordinates in the
// guest display's space. Scroll deltas are in wheel steps; fractional parts
// are truncated.
type MouseEvent struct {
	Type    MouseEventType
	Button  MouseButton
	X, Y    float64
	ScrollX float64
	ScrollY float64
}

// KeyEventType selects key down or key up.
type KeyEventType int

const (
	KeyDown KeyEventType = iota
	KeyUp
)

// KeyboardEvent is one key event. ScanCode is the hardware scan code; when
// zero, KeyCode is used as a lower-fidelity fallback. Extended marks keys
// carrying the 0xE0 prefix (right-side modifiers, navigation cluster,
// keypad Enter and divide).
type KeyboardEvent struct {
	Type     KeyEventType
	ScanCode uint32
	KeyCode  uint32
	Extended bool
}

// DragEventType selects the phase of a drag-and-drop gesture.
type DragEventType int

const (
	DragEnter DragEventType = iota
	DragMove
	DragLeave
	DragDrop
)

// DragFile names one dragged file by its host-side path.
type DragFile struct {
	HostPath string
}

// DragEvent is one drag-and-drop event. Only DragDrop with a non-empty
// Files list produces protocol traffic; the other phases are visual-only.
type DragEvent struct {
	Type  DragEventType
	X, Y  float64
	Files []DragFile
}

// ClipboardFormat is a clipboard data format on the host side.
type ClipboardFormat int

const (
	FormatText ClipboardFormat = iota
	FormatRTF
	FormatHTML
	FormatPNG
	FormatTIFF
	FormatFileURL
)

// ClipboardData is a clipboard payload crossing the bridge. Sequence is set
// on guest-originated deliveries and lets the application discard stale or
// duplicate updates; it is ignored on SendClipboard.
type ClipboardData struct {
	Format   ClipboardFormat
	Data     []byte
	Sequence uint64
}

// WindowMetadata describes the guest window backing a stream.
type WindowMetadata struct {
	WindowID    uint64
	X, Y        float64
	Width       float64
	Height      float64
	ScaleFactor float64
	Resizable   bool
	Title       string
}

// CloseReason explains why a stream ended.
type CloseReason int

const (
	CloseReasonRemote CloseReason = iota
	CloseReasonTransport
	CloseReasonAuthentication
)

// String returns a short name for the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonRemote:
		return "remote"
	case CloseReasonTransport:
		return "transport"
	case CloseReasonAuthentication:
		return "authentication"
	default:
		return "unknown"
	}
}

// FrameFunc receives raw frame bytes. The slice is only valid for the
// duration of the call.
type FrameFunc func(data []byte)

// MetadataFunc receives the initial window metadata announcement.
type MetadataFunc func(meta WindowMetadata)

// ClosedFunc receives the single closed notification.
type ClosedFunc func(reason CloseReason, message string)

// ClipboardFunc receives guest clipboard deliveries. Data is only valid for
// the duration of the call; copy it if it must outlive the callback.
type ClipboardFunc func(cb ClipboardData)
