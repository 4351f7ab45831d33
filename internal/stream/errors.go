package stream

import "errors"

// Sentinel errors returned by the send operations. ErrNoInputsChannel and
// ErrNoMainChannel are normal transient conditions while the session is
// still discovering channels; callers typically retry on the next event
// rather than treating them as failures.
var (
	ErrNilStream       = errors.New("stream: nil stream")
	ErrNilEvent        = errors.New("stream: nil event")
	ErrNilClipboard    = errors.New("stream: nil clipboard data")
	ErrNoInputsChannel = errors.New("stream: inputs channel not bound")
	ErrNoMainChannel   = errors.New("stream: main channel not bound")
	ErrUnknownEvent    = errors.New("stream: unknown event type")
	ErrBadDescriptor   = errors.New("stream: invalid shared-memory descriptor")
)
