package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.klb.dev/spicebridge/internal/spice/spicetest"
)

const testFrameInterval = 2 * time.Millisecond

// openTestStream opens a stream against a fresh fake factory. The caller is
// responsible for Close unless it registers its own cleanup.
func openTestStream(t *testing.T, cfg Config) (*Stream, *spicetest.Session) {
	t.Helper()

	f := &spicetest.Factory{}
	cfg.Factory = f
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = testFrameInterval
	}

	s, err := OpenTCP("guest.local", 5900, false, cfg)
	require.NoError(t, err)

	sessions := f.Sessions()
	require.Len(t, sessions, 1)
	return s, sessions[0]
}

// bindChannels announces a fresh inputs and main channel on the session,
// the way the protocol client would after connecting.
func bindChannels(t *testing.T, sess *spicetest.Session) (*spicetest.InputsChannel, *spicetest.MainChannel) {
	t.Helper()

	in := spicetest.NewInputsChannel()
	mc := spicetest.NewMainChannel()
	sess.Announce(in)
	sess.Announce(mc)
	return in, mc
}

func TestOpenEmitsMetadataBeforeFrames(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		metas    []WindowMetadata
		frames   int
		firstWas string
		closes   []CloseReason
	)

	s, _ := openTestStream(t, Config{
		WindowID: 42,
		Metadata: func(m WindowMetadata) {
			mu.Lock()
			defer mu.Unlock()
			metas = append(metas, m)
			if firstWas == "" {
				firstWas = "metadata"
			}
		},
		Frame: func(data []byte) {
			mu.Lock()
			defer mu.Unlock()
			frames++
			if firstWas == "" {
				firstWas = "frame"
			}
		},
		Closed: func(reason CloseReason, msg string) {
			mu.Lock()
			defer mu.Unlock()
			closes = append(closes, reason)
		},
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return frames >= 3
	}, time.Second, time.Millisecond)

	s.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "metadata", firstWas)
	require.Len(t, metas, 1)
	require.Equal(t, uint64(42), metas[0].WindowID)
	require.Equal(t, 800.0, metas[0].Width)
	require.Equal(t, 600.0, metas[0].Height)
	require.Equal(t, 1.0, metas[0].ScaleFactor)
	require.True(t, metas[0].Resizable)
	require.Equal(t, "Spice Window", metas[0].Title)

	// Close joins the worker, so the closed notification has already fired
	// exactly once by the time Close returns.
	require.Equal(t, []CloseReason{CloseReasonRemote}, closes)
}

func TestCloseReleasesEverything(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	in, mc := bindChannels(t, sess)

	// Binding took one reference on each channel.
	require.Equal(t, 2, in.Refs())
	require.Equal(t, 2, mc.Refs())
	require.NotNil(t, mc.Handler())

	s.Close()

	require.Equal(t, 1, in.Refs())
	require.Equal(t, 1, mc.Refs())
	require.Equal(t, 1, in.Unrefs())
	require.Equal(t, 1, mc.Unrefs())
	require.Nil(t, mc.Handler())
	require.True(t, sess.Closed())
	require.Zero(t, sess.Listeners())
}

func TestRebindReleasesStaleChannels(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()

	in1, mc1 := bindChannels(t, sess)
	in2, mc2 := bindChannels(t, sess)

	require.Equal(t, 1, in1.Unrefs())
	require.Equal(t, 1, mc1.Unrefs())
	require.Zero(t, in2.Unrefs())
	require.Zero(t, mc2.Unrefs())

	// The clipboard handler moved with the binding.
	require.Nil(t, mc1.Handler())
	require.NotNil(t, mc2.Handler())
}

func TestOpenFD(t *testing.T) {
	t.Parallel()

	f := &spicetest.Factory{}
	s, err := OpenFD(7, Config{Factory: f, FrameInterval: testFrameInterval})
	require.NoError(t, err)
	defer s.Close()

	sessions := f.Sessions()
	require.Len(t, sessions, 1)
	require.Equal(t, 7, sessions[0].FD())
	require.True(t, sessions[0].Connected())
}

func TestOpenFDRejectsNegativeDescriptor(t *testing.T) {
	t.Parallel()

	f := &spicetest.Factory{}
	s, err := OpenFD(-1, Config{Factory: f})
	require.ErrorIs(t, err, ErrBadDescriptor)
	require.Nil(t, s)

	// Rejected before anything was allocated.
	require.Empty(t, f.Sessions())
}

func TestOpenTCPConnectFailureTearsDown(t *testing.T) {
	t.Parallel()

	f := &spicetest.Factory{ConnectErr: errors.New("refused")}
	s, err := OpenTCP("guest.local", 5900, true, Config{Factory: f})
	require.Error(t, err)
	require.Nil(t, s)

	sessions := f.Sessions()
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].Closed())
	require.Zero(t, sessions[0].Listeners())
}

func TestOpenRequiresFactory(t *testing.T) {
	t.Parallel()

	s, err := OpenTCP("guest.local", 5900, false, Config{})
	require.Error(t, err)
	require.Nil(t, s)

	s, err = OpenFD(3, Config{})
	require.Error(t, err)
	require.Nil(t, s)
}

func TestCloseNilStream(t *testing.T) {
	t.Parallel()

	var s *Stream
	s.Close() // no-op, must not panic
}

func TestSessionConfigPlumbing(t *testing.T) {
	t.Parallel()

	f := &spicetest.Factory{}
	s, err := OpenTCP("h", 5900, true, Config{
		Factory:       f,
		Ticket:        "secret",
		FrameInterval: testFrameInterval,
	})
	require.NoError(t, err)
	defer s.Close()

	cfg := f.Sessions()[0].Cfg
	require.Equal(t, "h", cfg.Host)
	require.Equal(t, uint16(5900), cfg.Port)
	require.True(t, cfg.TLS)
	require.Equal(t, "secret", cfg.Ticket)
}
